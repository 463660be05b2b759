package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"text/template"

	"dca-scanner/logic/chunker"
	"dca-scanner/types"
	"dca-scanner/vars"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RuleRetriever 规则最近邻检索（k=1）
type RuleRetriever interface {
	Nearest(ctx context.Context, query string) (*types.PolicyRule, error)
}

// ChunkOutcome 单个 chunk 的处理结果
// 失败的 chunk 被显式记录并跳过，整体审查不会因为单个 chunk 失败而失败
type ChunkOutcome struct {
	ChunkIndex   int    `json:"chunk_index"`
	FindingCount int    `json:"finding_count"`
	Skipped      bool   `json:"skipped"`
	Reason       string `json:"reason,omitempty"`
}

// Analyzer 合规审查核心：切分 -> 规则检索 -> 结构化生成 -> 校验聚合
// 逐 chunk 串行处理，无重试、无并发、不做跨 chunk 去重
type Analyzer struct {
	chatModel model.ToolCallingChatModel
	rules     RuleRetriever
	splitter  *chunker.Splitter
	auditTmpl *template.Template
}

// NewAnalyzer 构造函数：依赖注入
func NewAnalyzer(chatModel model.ToolCallingChatModel, rules RuleRetriever, splitter *chunker.Splitter) *Analyzer {
	return &Analyzer{
		chatModel: chatModel,
		rules:     rules,
		splitter:  splitter,
		auditTmpl: template.Must(template.New("audit").Parse(vars.AUDIT)),
	}
}

// Analyze 审查整份合同文本
// 返回的 FlaggedClauses 按 chunk 顺序拼接；outcomes 与 chunk 一一对应
func (a *Analyzer) Analyze(ctx context.Context, contractText string) (*types.AnalysisResult, []ChunkOutcome, error) {
	if strings.TrimSpace(contractText) == "" {
		return nil, nil, fmt.Errorf("合同文本为空")
	}

	chunks := a.splitter.Split(contractText)
	fmt.Printf(">>> [Analyzer] 切分出 %d 个 chunk\n", len(chunks))

	result := &types.AnalysisResult{FlaggedClauses: make([]types.Finding, 0)}
	outcomes := make([]ChunkOutcome, 0, len(chunks))

	for _, ck := range chunks {
		findings, err := a.analyzeChunk(ctx, ck.Content)
		if err != nil {
			// 单个 chunk 失败只跳过该 chunk，继续处理后续
			log.Printf(">>> [Warning] chunk %d 审查失败，已跳过: %v", ck.Index, err)
			outcomes = append(outcomes, ChunkOutcome{
				ChunkIndex: ck.Index,
				Skipped:    true,
				Reason:     err.Error(),
			})
			continue
		}
		result.FlaggedClauses = append(result.FlaggedClauses, findings...)
		outcomes = append(outcomes, ChunkOutcome{
			ChunkIndex:   ck.Index,
			FindingCount: len(findings),
		})
	}

	fmt.Printf(">>> [Analyzer] 审查完成: %d 条 finding, %d/%d chunk 被跳过\n",
		len(result.FlaggedClauses), skippedCount(outcomes), len(chunks))
	return result, outcomes, nil
}

// analyzeChunk 处理单个 chunk：检索最相关规则 + 一次结构化生成
func (a *Analyzer) analyzeChunk(ctx context.Context, content string) ([]types.Finding, error) {
	rule, err := a.rules.Nearest(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("规则检索失败: %w", err)
	}

	var buf bytes.Buffer
	err = a.auditTmpl.Execute(&buf, map[string]string{
		"ContractSection": content,
		"PlaybookRule":    fmt.Sprintf("[%s] %s", rule.Title, rule.Text),
	})
	if err != nil {
		return nil, fmt.Errorf("渲染 prompt 失败: %w", err)
	}

	resp, err := a.chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(buf.String()),
		schema.UserMessage(content),
	})
	if err != nil {
		return nil, fmt.Errorf("模型调用失败: %w", err)
	}

	return parseFindings(resp.Content)
}

// parseFindings 清洗并解析模型输出，校验是第一等公民：
// schema 不符一律归为 ErrMalformedOutput，而不是默认信任模型
func parseFindings(raw string) ([]types.Finding, error) {
	jsonStr := strings.TrimSpace(raw)
	jsonStr = strings.TrimPrefix(jsonStr, "```json")
	jsonStr = strings.TrimPrefix(jsonStr, "```")
	jsonStr = strings.TrimSuffix(jsonStr, "```")

	// 截取最外层大括号，容忍模型在 JSON 前后输出说明文字
	start := strings.Index(jsonStr, "{")
	end := strings.LastIndex(jsonStr, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("%w: 响应中找不到 JSON 对象", types.ErrMalformedOutput)
	}
	jsonStr = jsonStr[start : end+1]

	var parsed types.AnalysisResult
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, fmt.Errorf("%w: json 解析失败: %v", types.ErrMalformedOutput, err)
	}

	for i := range parsed.FlaggedClauses {
		if err := parsed.FlaggedClauses[i].Validate(); err != nil {
			return nil, err
		}
	}
	return parsed.FlaggedClauses, nil
}

func skippedCount(outcomes []ChunkOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Skipped {
			n++
		}
	}
	return n
}
