package milvus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"dca-scanner/types"

	"github.com/cloudwego/eino-ext/components/indexer/milvus"
	milvusretriever "github.com/cloudwego/eino-ext/components/retriever/milvus"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// PolicyStore 内部规则手册的向量检索入口
// Collection 在每次进程启动时删除重建，灌入固定规则后只读
type PolicyStore struct {
	retriever retriever.Retriever
	ruleCount int
}

// NewPolicyStore 重建 Collection、灌入规则、创建检索器
func NewPolicyStore(ctx context.Context, cli client.Client, embedder embedding.Embedder, collectionName string, rules []types.PolicyRule) (*PolicyStore, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("规则列表为空，无法初始化 PolicyStore")
	}

	// 探测向量维度
	vecs, err := embedder.EmbedStrings(ctx, []string{"test"})
	if err != nil {
		return nil, fmt.Errorf("Embedder 坏了: %v", err)
	}
	dim := len(vecs[0])
	fmt.Printf(">>> [Milvus] 向量维度: %d\n", dim)

	// 规则库是临时索引：如有旧表，删掉重建
	has, err := cli.HasCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("检查 collection 失败: %v", err)
	}
	if has {
		fmt.Printf(">>> [Milvus] 检测到旧表 %s，删除重建\n", collectionName)
		_ = cli.ReleaseCollection(ctx, collectionName)
		if err := cli.DropCollection(ctx, collectionName); err != nil {
			return nil, fmt.Errorf("删除旧表失败: %v", err)
		}
	}

	fields := []*entity.Field{
		{
			Name:       "id", // 主键
			DataType:   entity.FieldTypeVarChar,
			PrimaryKey: true,
			AutoID:     false,
			TypeParams: map[string]string{"max_length": "64"},
		},
		{
			Name:       "vector", // 向量字段
			DataType:   entity.FieldTypeFloatVector,
			TypeParams: map[string]string{"dim": fmt.Sprintf("%d", dim)},
		},
		{
			Name:       "content", // 规则原文
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": "65535"},
		},
		{
			Name:       "clause_title", // 规则标题
			DataType:   entity.FieldTypeVarChar,
			TypeParams: map[string]string{"max_length": "255"},
		},
		{
			Name:     "metadata",
			DataType: entity.FieldTypeJSON,
		},
	}

	converter := func(ctx context.Context, docs []*schema.Document, vectors [][]float64) ([]interface{}, error) {
		rows := make([]interface{}, len(docs))
		for i, doc := range docs {
			// float64 -> float32
			vec32 := make([]float32, len(vectors[i]))
			for j, v := range vectors[i] {
				vec32[j] = float32(v)
			}
			var clauseTitle string
			if doc.MetaData != nil {
				if val, ok := doc.MetaData["clause_title"]; ok {
					if vStr, ok := val.(string); ok {
						clauseTitle = vStr
					}
				}
			}
			if doc.MetaData == nil {
				doc.MetaData = make(map[string]interface{})
			}
			metaBytes, err := json.Marshal(doc.MetaData)
			if err != nil {
				metaBytes = []byte("{}")
			}
			rows[i] = map[string]interface{}{
				"id":           doc.ID,
				"vector":       vec32,
				"content":      doc.Content,
				"clause_title": clauseTitle,
				"metadata":     metaBytes,
			}
		}
		return rows, nil
	}

	idx, err := milvus.NewIndexer(ctx, &milvus.IndexerConfig{
		Client:            cli,
		Collection:        collectionName,
		Embedding:         embedder,
		Fields:            fields,
		DocumentConverter: converter,
		MetricType:        milvus.L2,
	})
	if err != nil {
		return nil, fmt.Errorf("[NewIndexer] 建表失败: %v", err)
	}

	// 替换默认索引为 HNSW
	_ = cli.ReleaseCollection(ctx, collectionName)
	if err := cli.DropIndex(ctx, collectionName, "vector"); err != nil {
		fmt.Printf(">>> [Milvus] DropIndex 提示: %v\n", err)
	}
	hnswIdx, _ := entity.NewIndexHNSW(entity.L2, 16, 200)
	if err := cli.CreateIndex(ctx, collectionName, "vector", hnswIdx, false); err != nil {
		return nil, fmt.Errorf("创建 HNSW 向量索引失败: %v", err)
	}

	if err := cli.LoadCollection(ctx, collectionName, false); err != nil {
		return nil, fmt.Errorf("Load Collection 失败: %v", err)
	}
	waitLoaded(ctx, cli, collectionName)

	// 灌入规则（规则会逐条计算一次 embedding）
	docs := make([]*schema.Document, 0, len(rules))
	for _, rule := range rules {
		docs = append(docs, &schema.Document{
			ID:      uuid.New().String(),
			Content: rule.Text,
			MetaData: map[string]any{
				"clause_title": rule.Title,
			},
		})
	}
	if _, err := idx.Store(ctx, docs); err != nil {
		return nil, fmt.Errorf("规则灌入失败: %v", err)
	}
	log.Printf(">>> [Milvus] 规则库就绪: %d 条规则", len(rules))

	// k=1 的最近邻检索器
	resultConverter := func(ctx context.Context, result client.SearchResult) ([]*schema.Document, error) {
		out := make([]*schema.Document, result.IDs.Len())
		for i := 0; i < result.IDs.Len(); i++ {
			id, err := result.IDs.GetAsString(i)
			if err != nil {
				return nil, fmt.Errorf("failed to get id: %w", err)
			}
			doc := &schema.Document{
				ID:       id,
				MetaData: make(map[string]any),
			}
			if result.Scores != nil && len(result.Scores) > i {
				doc = doc.WithScore(float64(result.Scores[i]))
			}
			for _, field := range result.Fields {
				switch field.Name() {
				case "content":
					if v, err := field.GetAsString(i); err == nil {
						doc.Content = v
					}
				case "clause_title":
					if v, err := field.GetAsString(i); err == nil {
						doc.MetaData["clause_title"] = v
					} else {
						log.Printf(">>> [Warning] 字段 clause_title 获取失败 (索引 %d): %v", i, err)
					}
				default:
					continue
				}
			}
			out[i] = doc
		}
		return out, nil
	}

	retr, err := milvusretriever.NewRetriever(ctx, &milvusretriever.RetrieverConfig{
		Client:            cli,
		Collection:        collectionName,
		VectorField:       "vector",
		OutputFields:      []string{"content", "clause_title"},
		DocumentConverter: resultConverter,
		MetricType:        entity.L2,
		TopK:              1,
		Embedding:         embedder,
	})
	if err != nil {
		return nil, fmt.Errorf("init retriever failed: %v", err)
	}

	return &PolicyStore{retriever: retr, ruleCount: len(rules)}, nil
}

// Nearest 返回与查询文本语义最近的那一条规则
func (p *PolicyStore) Nearest(ctx context.Context, query string) (*types.PolicyRule, error) {
	docs, err := p.retriever.Retrieve(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("milvus retrieve failed: %v", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("规则库未命中任何规则")
	}
	doc := docs[0]
	title, _ := doc.MetaData["clause_title"].(string)
	return &types.PolicyRule{Title: title, Text: doc.Content}, nil
}

// RuleCount 规则条数
func (p *PolicyStore) RuleCount() int {
	return p.ruleCount
}

// waitLoaded 等待 collection 加载完成（最多 5 秒）
func waitLoaded(ctx context.Context, cli client.Client, collectionName string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		loadState, _ := cli.GetLoadState(ctx, collectionName, []string{})
		// 3 = LoadStateLoaded
		if loadState == 3 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
}
