package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"dca-scanner/logic/chunker"
	"dca-scanner/types"
	"dca-scanner/vars"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- 测试桩 ---

type stubChatModel struct {
	replies []string      // 按调用次序返回
	errOn   map[int]error // 指定某次调用返回错误
	calls   int
}

func (m *stubChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	idx := m.calls
	m.calls++
	if err, ok := m.errOn[idx]; ok {
		return nil, err
	}
	reply := `{"flagged_clauses": []}`
	if idx < len(m.replies) {
		reply = m.replies[idx]
	}
	return schema.AssistantMessage(reply, nil), nil
}

func (m *stubChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *stubChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type stubRules struct {
	rule types.PolicyRule
	err  error
}

func (s *stubRules) Nearest(ctx context.Context, query string) (*types.PolicyRule, error) {
	if s.err != nil {
		return nil, s.err
	}
	r := s.rule
	return &r, nil
}

func terminationRule() *stubRules {
	return &stubRules{rule: types.PolicyRule{
		Title: "Termination for Convenience",
		Text:  "Policy: The company retains the right to terminate for convenience with 30 days notice. The counterparty must NOT have this right.",
	}}
}

func terminationFindingJSON(title string) string {
	return fmt.Sprintf(`{
		"flagged_clauses": [{
			"clause_title": %q,
			"contract_snippet": "The Customer may terminate this Agreement for convenience at any time with 60 days written notice.",
			"internal_standard": "The counterparty must NOT have this right.",
			"risk_level": "High",
			"discrepancy_summary": "The counterparty is granted unilateral termination-for-convenience rights.",
			"suggested_redline": "Only the Company may terminate this Agreement for convenience with 30 days written notice."
		}]
	}`, title)
}

// 小 chunk 配置，便于在测试里构造多 chunk 文档
func smallSplitter(t *testing.T) *chunker.Splitter {
	t.Helper()
	return chunker.MustNewSplitter(chunker.Config{
		ChunkSize:  100,
		Overlap:    10,
		Separators: []string{"\n\n", "\n", ".", " "},
	})
}

// 三个段落，每段约 90 字节，切成恰好 3 个 chunk
func threeParagraphText() string {
	paras := []string{
		strings.Repeat("alpha ", 15),
		strings.Repeat("bravo ", 15),
		strings.Repeat("delta ", 15),
	}
	return strings.Join(paras, "\n\n")
}

// --- 测试用例 ---

func TestAnalyzer_Analyze_CompliantTextNoFindings(t *testing.T) {
	a := NewAnalyzer(&stubChatModel{}, terminationRule(), chunker.NewDefaultSplitter())

	result, outcomes, err := a.Analyze(context.Background(),
		"ARTICLE 1: SCOPE. The vendor shall deliver the services described in Exhibit A.")
	require.NoError(t, err)
	require.NotNil(t, result.FlaggedClauses)
	assert.Empty(t, result.FlaggedClauses)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Skipped)
	assert.Equal(t, 0, outcomes[0].FindingCount)
}

func TestAnalyzer_Analyze_SampleContractFlagsTermination(t *testing.T) {
	m := &stubChatModel{replies: []string{terminationFindingJSON("Termination for Convenience")}}
	a := NewAnalyzer(m, terminationRule(), chunker.NewDefaultSplitter())

	result, _, err := a.Analyze(context.Background(), vars.SAMPLE_CONTRACT)
	require.NoError(t, err)
	require.NotEmpty(t, result.FlaggedClauses)

	f := result.FlaggedClauses[0]
	assert.Contains(t, f.ClauseTitle, "Termination")
	assert.Contains(t, []string{types.RiskHigh, types.RiskMedium, types.RiskLow}, f.RiskLevel)
	assert.NotEmpty(t, f.SuggestedRedline)
}

// chunk N 失败时，其余 chunk 的 finding 必须按原顺序保留
func TestAnalyzer_Analyze_FailedChunkIsSkippedOthersKept(t *testing.T) {
	m := &stubChatModel{
		replies: []string{
			terminationFindingJSON("Clause From Chunk 0"),
			"",
			terminationFindingJSON("Clause From Chunk 2"),
		},
		errOn: map[int]error{1: errors.New("upstream timeout")},
	}
	a := NewAnalyzer(m, terminationRule(), smallSplitter(t))

	result, outcomes, err := a.Analyze(context.Background(), threeParagraphText())
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.False(t, outcomes[0].Skipped)
	assert.True(t, outcomes[1].Skipped)
	assert.Contains(t, outcomes[1].Reason, "upstream timeout")
	assert.False(t, outcomes[2].Skipped)

	require.Len(t, result.FlaggedClauses, 2)
	assert.Equal(t, "Clause From Chunk 0", result.FlaggedClauses[0].ClauseTitle)
	assert.Equal(t, "Clause From Chunk 2", result.FlaggedClauses[1].ClauseTitle)
}

func TestAnalyzer_Analyze_RetrievalFailureSkipsChunk(t *testing.T) {
	a := NewAnalyzer(&stubChatModel{}, &stubRules{err: errors.New("milvus down")},
		chunker.NewDefaultSplitter())

	result, outcomes, err := a.Analyze(context.Background(), "Some clause text.")
	require.NoError(t, err)
	assert.Empty(t, result.FlaggedClauses)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.Contains(t, outcomes[0].Reason, "milvus down")
}

func TestAnalyzer_Analyze_MalformedOutputSkipsChunk(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "not json", reply: "I cannot help with that."},
		{name: "risk level out of set", reply: strings.Replace(
			terminationFindingJSON("Termination"), `"High"`, `"Critical"`, 1)},
		{name: "empty redline", reply: strings.Replace(
			terminationFindingJSON("Termination"),
			`"Only the Company may terminate this Agreement for convenience with 30 days written notice."`,
			`""`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &stubChatModel{replies: []string{tt.reply}}
			a := NewAnalyzer(m, terminationRule(), chunker.NewDefaultSplitter())

			result, outcomes, err := a.Analyze(context.Background(), "Some clause text.")
			require.NoError(t, err)
			assert.Empty(t, result.FlaggedClauses)
			require.Len(t, outcomes, 1)
			assert.True(t, outcomes[0].Skipped)
			assert.Contains(t, outcomes[0].Reason, types.ErrMalformedOutput.Error())
		})
	}
}

func TestAnalyzer_Analyze_EmptyTextRejected(t *testing.T) {
	a := NewAnalyzer(&stubChatModel{}, terminationRule(), chunker.NewDefaultSplitter())

	_, _, err := a.Analyze(context.Background(), "   \n  ")
	assert.Error(t, err)
}

func TestParseFindings(t *testing.T) {
	valid := terminationFindingJSON("Termination for Convenience")

	tests := []struct {
		name      string
		raw       string
		wantCount int
		wantErr   bool
	}{
		{name: "plain json", raw: valid, wantCount: 1},
		{name: "empty list", raw: `{"flagged_clauses": []}`, wantCount: 0},
		{name: "markdown fenced", raw: "```json\n" + valid + "\n```", wantCount: 1},
		{name: "prose around json", raw: "Here is the result:\n" + valid + "\nLet me know.", wantCount: 1},
		{name: "no json object", raw: "no braces at all", wantErr: true},
		{name: "broken json", raw: `{"flagged_clauses": [`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings, err := parseFindings(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, types.ErrMalformedOutput))
				return
			}
			require.NoError(t, err)
			assert.Len(t, findings, tt.wantCount)
		})
	}
}

func TestBuildScanRecord(t *testing.T) {
	result := &types.AnalysisResult{FlaggedClauses: []types.Finding{
		{ClauseTitle: "Termination", RiskLevel: types.RiskHigh, SuggestedRedline: "x"},
		{ClauseTitle: "Liability", RiskLevel: types.RiskMedium, SuggestedRedline: "y"},
		{ClauseTitle: "Data", RiskLevel: types.RiskHigh, SuggestedRedline: "z"},
	}}
	outcomes := []ChunkOutcome{
		{ChunkIndex: 0, FindingCount: 2},
		{ChunkIndex: 1, Skipped: true, Reason: "timeout"},
		{ChunkIndex: 2, FindingCount: 1},
	}

	record := buildScanRecord("scan-123", "contract.pdf", result, outcomes)
	assert.Equal(t, "scan-123", record.ScanID)
	assert.Equal(t, "contract.pdf", record.FileName)
	assert.Equal(t, 3, record.ChunkCount)
	assert.Equal(t, 1, record.SkippedChunks)
	assert.Equal(t, 3, record.FindingCount)
	assert.Equal(t, 2, record.HighRiskCount)
	assert.Equal(t, types.ScanStatusPartial, record.Status)

	// 没有 chunk 被跳过时状态为完成
	record = buildScanRecord("scan-456", "raw_text", result, outcomes[:1])
	assert.Equal(t, types.ScanStatusCompleted, record.Status)
}
