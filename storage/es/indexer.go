package es

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"dca-scanner/types"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"
)

// FindingIndexer 历史审查结果的关键词索引
type FindingIndexer struct {
	client *elasticsearch.Client
	index  string
}

// GetClient 返回 ES 客户端（用于检索）
func (e *FindingIndexer) GetClient() *elasticsearch.Client {
	return e.client
}

// Index 返回索引名
func (e *FindingIndexer) Index() string {
	return e.index
}

// NewFindingIndexer 初始化 ES 客户端并确保索引存在
func NewFindingIndexer(addresses []string, indexName string) (*FindingIndexer, error) {
	cfg := elasticsearch.Config{
		Addresses: addresses,
	}
	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("error creating the client: %s", err)
	}

	indexer := &FindingIndexer{client: es, index: indexName}

	if err := indexer.initMapping(context.Background()); err != nil {
		return nil, err
	}

	return indexer, nil
}

func (e *FindingIndexer) initMapping(ctx context.Context) error {
	// 1. 检查索引是否存在
	res, err := e.client.Indices.Exists([]string{e.index})
	if err != nil {
		return err
	}
	if res.StatusCode == 200 {
		return nil // 已存在，跳过
	}

	// 2. 定义 Mapping（合同语料是英文，用 standard 分词器）
	mapping := `
	{
	  "settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	  },
	  "mappings": {
		"properties": {
		  "scan_id":    { "type": "keyword" },
		  "finding_id": { "type": "keyword" },
		  "clause_title": {
			"type": "text",
			"analyzer": "standard",
			"fields": {
			  "keyword": { "type": "keyword" }
			}
		  },
		  "risk_level":          { "type": "keyword" },
		  "contract_snippet":    { "type": "text", "analyzer": "standard" },
		  "internal_standard":   { "type": "text", "analyzer": "standard" },
		  "discrepancy_summary": { "type": "text", "analyzer": "standard" },
		  "suggested_redline":   { "type": "text", "analyzer": "standard" },
		  "created_at":          { "type": "date" }
		}
	  }
	}`

	log.Printf(">>> [ES] Creating index %s ...", e.index)
	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index error: %v", err)
	}
	if res.IsError() {
		return fmt.Errorf("create index response error: %s", res.String())
	}
	return nil
}

// Store 批量写入一次审查产出的全部 finding
func (e *FindingIndexer) Store(ctx context.Context, scanID string, findings []types.Finding) error {
	if len(findings) == 0 {
		return nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Index:         e.index,
		Client:        e.client,
		FlushInterval: 1, // 开发环境立即刷新
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, f := range findings {
		findingID := uuid.New().String()
		docModel := map[string]interface{}{
			"scan_id":             scanID,
			"finding_id":          findingID,
			"clause_title":        f.ClauseTitle,
			"risk_level":          f.RiskLevel,
			"contract_snippet":    f.ContractSnippet,
			"internal_standard":   f.InternalStandard,
			"discrepancy_summary": f.DiscrepancySummary,
			"suggested_redline":   f.SuggestedRedline,
			"created_at":          now,
		}

		data, _ := json.Marshal(docModel)
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: findingID,
			Body:       strings.NewReader(string(data)),
		})
		if err != nil {
			return err
		}
	}

	if err := bi.Close(ctx); err != nil {
		return err
	}
	return nil
}

// PurgeBefore 删除某个时间点之前的 finding，用于定时清理
func (e *FindingIndexer) PurgeBefore(ctx context.Context, cutoff time.Time) error {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"created_at": map[string]interface{}{
					"lt": cutoff.Format(time.RFC3339),
				},
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return fmt.Errorf("error encoding query: %s", err)
	}

	res, err := e.client.DeleteByQuery(
		[]string{e.index},
		strings.NewReader(buf.String()),
		e.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("ES delete request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("ES delete response error: %s", res.String())
	}

	log.Printf(">>> [ES] 已清理 %s 之前的 finding", cutoff.Format("2006-01-02"))
	return nil
}
