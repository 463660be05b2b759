package vars

import (
	"os"
)

// GetEnv 获取环境变量，如果不存在则返回默认值
func GetEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

const (
	// 模型名称
	NOMIC     = "nomic-embed-text"
	QWEN7B    = "qwen2.5:7b"
	QWEN3B    = "qwen2.5:3b"
	GPT4OMINI = "gpt-4o-mini"

	// Milvus Collection 名称（每次启动重建，进程生命周期内只读）
	COLLECTION = "playbook_rules_v1"

	// ES 索引名称（历史审查结果的关键词检索）
	FINDINGS_INDEX = "scan_findings_v1"

	// Chat 后端
	BACKEND_OLLAMA = "ollama"
	BACKEND_OPENAI = "openai"
)

// 环境变量配置（支持 Docker 部署）
var (
	// HTTP
	HTTP_ADDR = GetEnv("HTTP_ADDR", ":8000")

	// Chat 后端选择: ollama / openai
	CHAT_BACKEND = GetEnv("CHAT_BACKEND", BACKEND_OLLAMA)

	// OLLAMA
	OLLAMA_PATH = GetEnv("OLLAMA_PATH", "http://localhost:11434")

	// OPENAI（仅 CHAT_BACKEND=openai 时必填，缺失直接启动失败）
	OPENAI_API_KEY  = GetEnv("OPENAI_API_KEY", "")
	OPENAI_BASE_URL = GetEnv("OPENAI_BASE_URL", "")

	// PG
	PGUSER = GetEnv("PGUSER", "root")
	PGPWD  = GetEnv("PGPWD", "root")
	PGDB   = GetEnv("PGDB", "dcaDB")
	PGHOST = GetEnv("PGHOST", "localhost")
	PGPORT = GetEnv("PGPORT", "5432")

	// Milvus
	MILVUSADDR = GetEnv("MILVUSADDR", "127.0.0.1:19530")

	// ES
	ESADDR = GetEnv("ESADDR", "http://localhost:9200")

	// 审查记录保留天数（定时任务清理）
	RETENTION_DAYS = GetEnv("RETENTION_DAYS", "90")
)

// AUDIT 合规审查提示词
// {{.ContractSection}} / {{.PlaybookRule}} 由 template 渲染
const AUDIT = `
你是一名严谨的法务合规审计员。请将下面的合同片段，与给出的那条最相关的内部规则
(Playbook Rule) 进行比对。

规则：
1. 只有在合同措辞**明显违反**或**严重偏离**该条内部规则时才标记。
2. 如果合同片段是合规的，必须返回 {"flagged_clauses": []}。
3. 每条被标记的条款，都必须给出可以直接替换原文、使其合规的修正文本 (suggested_redline)，不能为空。

每条 flagged_clauses 的字段要求：
- clause_title: 条款主题，如 "Limitation of Liability"、"Termination for Convenience"
- contract_snippet: 合同中有问题的原文片段（不超过30个词）
- internal_standard: 所依据的内部规则原文
- risk_level: 风险等级，只能是 High / Medium / Low 三者之一
- discrepancy_summary: 简要说明合同措辞如何偏离了内部规则
- suggested_redline: 替换原文后即可合规的具体文本

合同片段:
---
{{.ContractSection}}
---
内部规则:
---
{{.PlaybookRule}}
---

Output JSON only. No markdown.
`

// SAMPLE_CONTRACT 未上传文件时的兜底样例合同
const SAMPLE_CONTRACT = `
ARTICLE 5: TERM AND TERMINATION. The term begins on signing. The Customer may terminate this Agreement for convenience at any time with 60 days written notice.
ARTICLE 6: LIABILITY LIMIT. Notwithstanding anything to the contrary, neither party's total liability shall exceed the total amount paid by Customer in the preceding six months ($50,000 max).
ARTICLE 7: DATA. The parties shall comply with all data laws. No explicit mention of the company's DPA is required.
`
