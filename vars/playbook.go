package vars

import "dca-scanner/types"

// PlaybookRules 内部规则手册（Mock 数据，启动时灌入向量库，之后只读）
var PlaybookRules = []types.PolicyRule{
	{
		Title: "Limitation of Liability (LoL)",
		Text:  "Policy: Liability must be capped at 2x the annual fees paid and must exclude gross negligence/willful misconduct.",
	},
	{
		Title: "Data Security & GDPR",
		Text:  "Policy: The contract must explicitly reference the Data Processing Addendum (DPA) and confirm compliance with EU GDPR Article 28.",
	},
	{
		Title: "Termination for Convenience",
		Text:  "Policy: The company retains the right to terminate for convenience with 30 days notice. The counterparty must NOT have this right.",
	},
}
