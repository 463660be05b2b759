package types

import (
	"errors"
	"fmt"
)

// --- 常量定义 ---

// 风险等级枚举（LLM 输出必须落在这三个值内）
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// 审查记录状态
const (
	ScanStatusCompleted = 1 // 全部 chunk 处理成功
	ScanStatusPartial   = 2 // 有 chunk 被跳过
)

// ErrMalformedOutput LLM 返回内容不符合约定 schema
var ErrMalformedOutput = errors.New("malformed model output")

// --- 结构体定义 ---

// PolicyRule 内部规则手册中的一条规则，进程启动时固定，不可变
type PolicyRule struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// AnalyzeRequest POST /analyze 请求体
type AnalyzeRequest struct {
	ContractText string `json:"contract_text" binding:"required"`
}

// Finding 一条被标记的合规偏差
// jsonschema 描述同时约束 LLM 的结构化输出
type Finding struct {
	ClauseTitle        string `json:"clause_title" jsonschema:"description=条款主题，如 'Limitation of Liability',required"`
	ContractSnippet    string `json:"contract_snippet" jsonschema:"description=合同中有问题措辞的原文片段（不超过30个词）,required"`
	InternalStandard   string `json:"internal_standard" jsonschema:"description=所依据的内部规则原文,required"`
	RiskLevel          string `json:"risk_level" jsonschema:"description=风险等级，只能是 High / Medium / Low,required"`
	DiscrepancySummary string `json:"discrepancy_summary" jsonschema:"description=合同措辞如何偏离内部规则的简要说明,required"`
	SuggestedRedline   string `json:"suggested_redline" jsonschema:"description=替换原文后即可合规的具体文本，不能为空,required"`
}

// Validate 校验 LLM 输出是否满足约定
// risk_level 必须在枚举内，suggested_redline 不能为空
func (f *Finding) Validate() error {
	switch f.RiskLevel {
	case RiskHigh, RiskMedium, RiskLow:
	default:
		return fmt.Errorf("%w: risk_level %q 不在 High/Medium/Low 之内", ErrMalformedOutput, f.RiskLevel)
	}
	if f.SuggestedRedline == "" {
		return fmt.Errorf("%w: suggested_redline 为空", ErrMalformedOutput)
	}
	return nil
}

// AnalysisResult 整份合同的审查结果
// FlaggedClauses 按 chunk 顺序拼接，chunk 内保持模型输出顺序
type AnalysisResult struct {
	FlaggedClauses []Finding `json:"flagged_clauses"`
}

// FindingHit ES 关键词检索命中的一条历史 finding
type FindingHit struct {
	ScanID             string  `json:"scan_id"`
	ClauseTitle        string  `json:"clause_title"`
	RiskLevel          string  `json:"risk_level"`
	ContractSnippet    string  `json:"contract_snippet"`
	DiscrepancySummary string  `json:"discrepancy_summary"`
	SuggestedRedline   string  `json:"suggested_redline"`
	Score              float64 `json:"score"`
}
