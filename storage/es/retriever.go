package es

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"dca-scanner/types"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// SearchFindings 对历史 finding 做 BM25 关键词检索
// query: 关键词；riskLevel: 可选的风险等级过滤（空串表示不过滤）；topK: 返回条数
func SearchFindings(ctx context.Context, client *elasticsearch.Client, index string, query string, riskLevel string, topK int) ([]types.FindingHit, error) {
	if topK <= 0 {
		topK = 10
	}

	// 1. 构建查询
	must := []map[string]interface{}{
		{
			"multi_match": map[string]interface{}{
				"query": query,
				"fields": []string{
					"clause_title^2",
					"discrepancy_summary",
					"contract_snippet",
					"suggested_redline",
				},
			},
		},
	}
	boolQuery := map[string]interface{}{
		"must": must,
	}
	if riskLevel != "" {
		boolQuery["filter"] = []map[string]interface{}{
			{
				"term": map[string]interface{}{
					"risk_level": riskLevel,
				},
			},
		}
	}
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": boolQuery,
		},
		"size": topK,
	}

	// 2. 序列化查询
	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("error encoding query: %s", err)
	}

	log.Printf(">>> [ES] Query: %s", buf.String())

	// 3. 执行搜索
	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(buf.String()),
	}

	res, err := req.Do(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("error getting response: %s", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error response: %s", res.String())
	}

	// 4. 解析结果
	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error parsing response body: %s", err)
	}

	hits, ok := result["hits"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid response format")
	}
	hitsList, ok := hits["hits"].([]interface{})
	if !ok {
		return []types.FindingHit{}, nil // 无结果
	}

	// 5. 转换为 FindingHit
	out := make([]types.FindingHit, 0, len(hitsList))
	for _, hit := range hitsList {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}
		var score float64
		if scoreVal, ok := hitMap["_score"].(float64); ok {
			score = scoreVal
		}

		out = append(out, types.FindingHit{
			ScanID:             toString(source["scan_id"]),
			ClauseTitle:        toString(source["clause_title"]),
			RiskLevel:          toString(source["risk_level"]),
			ContractSnippet:    toString(source["contract_snippet"]),
			DiscrepancySummary: toString(source["discrepancy_summary"]),
			SuggestedRedline:   toString(source["suggested_redline"]),
			Score:              score,
		})
	}

	log.Printf(">>> [ES] Retrieved %d results", len(out))
	return out, nil
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
