// Package chunker 递归字符切分：按 段落 > 换行 > 句号 > 空格 的优先级切分，
// 相邻 chunk 之间保留重叠，避免条款上下文在边界处丢失。
// 每个 chunk 都是原文的连续子串，携带 [start,end) 偏移，切分结果确定。
package chunker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

// 元数据 key
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkStart = "chunk_start"
	MetaChunkEnd   = "chunk_end"
)

// Config 切分配置
type Config struct {
	ChunkSize  int      // 单个 chunk 最大字节数
	Overlap    int      // 相邻 chunk 的最大重叠字节数
	Separators []string // 切分符，按优先级递归使用，保留在片段末尾
}

// DefaultConfig 缺省配置
func DefaultConfig() Config {
	return Config{
		ChunkSize:  1500,
		Overlap:    150,
		Separators: []string{"\n\n", "\n", ".", " "},
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("ChunkSize 必须为正数, got %d", c.ChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("Overlap 不能为负数, got %d", c.Overlap)
	}
	if c.Overlap >= c.ChunkSize {
		return fmt.Errorf("Overlap (%d) 必须小于 ChunkSize (%d)", c.Overlap, c.ChunkSize)
	}
	return nil
}

// Chunk 一个切分片段，Content == 原文[Start:End]
type Chunk struct {
	Index   int
	Start   int
	End     int
	Content string
}

// Splitter 递归字符切分器
type Splitter struct {
	cfg Config
}

// NewSplitter 创建切分器，配置非法时返回 error
func NewSplitter(cfg Config) (*Splitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// MustNewSplitter 配置已知合法时使用
func MustNewSplitter(cfg Config) *Splitter {
	s, err := NewSplitter(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// NewDefaultSplitter 使用缺省配置
func NewDefaultSplitter() *Splitter {
	return MustNewSplitter(DefaultConfig())
}

// Split 切分文本
// 短于 ChunkSize 的文本切出恰好一个与原文相等的 chunk；空文本返回 nil
func (s *Splitter) Split(text string) []Chunk {
	n := len(text)
	if n == 0 {
		return nil
	}
	if n <= s.cfg.ChunkSize {
		return []Chunk{{Index: 0, Start: 0, End: n, Content: text}}
	}

	// 先求出所有片段终点：相邻终点之间的片段长度都不超过 ChunkSize
	bounds := s.segmentEnds(text, 0, n, 0)

	var chunks []Chunk
	start := 0
	for {
		end := s.furthestEnd(text, bounds, start, n)
		// 保证每轮都有推进，否则回退为零重叠继续
		if len(chunks) > 0 && end <= chunks[len(chunks)-1].End {
			start = chunks[len(chunks)-1].End
			end = s.furthestEnd(text, bounds, start, n)
		}
		chunks = append(chunks, Chunk{
			Index:   len(chunks),
			Start:   start,
			End:     end,
			Content: text[start:end],
		})
		if end >= n {
			break
		}
		start = s.nextStart(text, bounds, start, end)
	}
	return chunks
}

// furthestEnd 从 start 起，取 ChunkSize 窗口内最远的片段终点
func (s *Splitter) furthestEnd(text string, bounds []int, start, n int) int {
	i := sort.SearchInts(bounds, start+1)
	end := -1
	for i < len(bounds) && bounds[i]-start <= s.cfg.ChunkSize {
		end = bounds[i]
		i++
	}
	if end == -1 {
		// 窗口内没有片段终点（起点落在超长片段中间），硬切
		end = start + s.cfg.ChunkSize
		if end > n {
			end = n
		}
		end = alignRuneDown(text, end, start)
	}
	return end
}

// nextStart 下一个 chunk 的起点：回退不超过 Overlap，且优先对齐到片段终点
func (s *Splitter) nextStart(text string, bounds []int, start, end int) int {
	target := end - s.cfg.Overlap
	if target < 0 {
		target = 0
	}
	i := sort.SearchInts(bounds, target)
	for i < len(bounds) && bounds[i] <= end {
		if bounds[i] > start {
			return bounds[i]
		}
		i++
	}
	// 没有可用的片段终点，直接按字节回退
	next := target
	if next <= start {
		next = start + 1
	}
	for next < len(text) && !utf8.RuneStart(text[next]) {
		next++
	}
	if next >= end {
		return end
	}
	return next
}

// segmentEnds 递归切分 [lo,hi)，返回升序的片段终点列表，末尾必为 hi
// 分隔符保留在片段末尾，因此片段拼接可完整还原原文
func (s *Splitter) segmentEnds(text string, lo, hi, sepIdx int) []int {
	if hi-lo <= s.cfg.ChunkSize {
		return []int{hi}
	}
	if sepIdx >= len(s.cfg.Separators) {
		// 所有分隔符都用尽，硬切
		var out []int
		prev := lo
		for {
			p := prev + s.cfg.ChunkSize
			if p >= hi {
				out = append(out, hi)
				return out
			}
			p = alignRuneDown(text, p, prev)
			out = append(out, p)
			prev = p
		}
	}

	sep := s.cfg.Separators[sepIdx]
	var out []int
	pieceStart := lo
	for pieceStart < hi {
		var pieceEnd int
		if idx := strings.Index(text[pieceStart:hi], sep); idx < 0 {
			pieceEnd = hi
		} else {
			pieceEnd = pieceStart + idx + len(sep)
		}
		if pieceEnd-pieceStart <= s.cfg.ChunkSize {
			out = append(out, pieceEnd)
		} else {
			out = append(out, s.segmentEnds(text, pieceStart, pieceEnd, sepIdx+1)...)
		}
		pieceStart = pieceEnd
	}
	return out
}

// alignRuneDown 把硬切位置向前对齐到 rune 边界，避免切断多字节字符
func alignRuneDown(text string, p, lo int) int {
	for p > lo+1 && !utf8.RuneStart(text[p]) {
		p--
	}
	return p
}

// Transform 实现 eino document.Transformer，便于接入 eino 的文档处理链路
func (s *Splitter) Transform(ctx context.Context, docs []*schema.Document, _ ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range docs {
		for _, ck := range s.Split(doc.Content) {
			meta := make(map[string]any, len(doc.MetaData)+3)
			for k, v := range doc.MetaData {
				meta[k] = v
			}
			meta[MetaChunkIndex] = ck.Index
			meta[MetaChunkStart] = ck.Start
			meta[MetaChunkEnd] = ck.End
			out = append(out, &schema.Document{
				ID:       fmt.Sprintf("%s_%d", doc.ID, ck.Index),
				Content:  ck.Content,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

// GetType 组件类型标识
func (s *Splitter) GetType() string {
	return "RecursiveSplitter"
}
