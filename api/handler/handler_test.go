package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dca-scanner/api/response"
	"dca-scanner/storage/postgres"
	"dca-scanner/types"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubScanService struct {
	result     *types.AnalysisResult
	err        error
	records    []postgres.ScanRecord
	hits       []types.FindingHit
	uploadNil  bool // 记录 ScanUpload 是否收到 nil fileHeader
	lastTextIn string
}

func (s *stubScanService) Scan(ctx context.Context, fileName, contractText string) (*types.AnalysisResult, error) {
	s.lastTextIn = contractText
	return s.result, s.err
}

func (s *stubScanService) ScanUpload(ctx context.Context, fileHeader *multipart.FileHeader) (*types.AnalysisResult, error) {
	s.uploadNil = fileHeader == nil
	return s.result, s.err
}

func (s *stubScanService) ListScans(ctx context.Context, limit int) ([]postgres.ScanRecord, error) {
	return s.records, s.err
}

func (s *stubScanService) SearchFindings(ctx context.Context, query, riskLevel string, topK int) ([]types.FindingHit, error) {
	return s.hits, s.err
}

func newTestRouter(svc *stubScanService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewScanHandler(svc)
	r.GET("/", h.Live)
	r.POST("/analyze", h.Analyze)
	r.POST("/api/v1/scan/upload", h.Upload)
	r.GET("/api/v1/scans", h.ListScans)
	r.GET("/api/v1/findings/search", h.SearchFindings)
	return r
}

func TestScanHandler_Live(t *testing.T) {
	r := newTestRouter(&stubScanService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "running")
}

func TestScanHandler_Analyze_OK(t *testing.T) {
	svc := &stubScanService{result: &types.AnalysisResult{FlaggedClauses: []types.Finding{
		{
			ClauseTitle:      "Termination for Convenience",
			RiskLevel:        types.RiskHigh,
			SuggestedRedline: "Only the Company may terminate for convenience.",
		},
	}}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze",
		strings.NewReader(`{"contract_text": "The Customer may terminate at any time."}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var got types.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got.FlaggedClauses, 1)
	assert.Equal(t, "Termination for Convenience", got.FlaggedClauses[0].ClauseTitle)
	assert.Equal(t, "The Customer may terminate at any time.", svc.lastTextIn)
}

// 没有命中任何规则时必须返回空数组，而不是 null
func TestScanHandler_Analyze_EmptyFindingsArray(t *testing.T) {
	svc := &stubScanService{result: &types.AnalysisResult{FlaggedClauses: make([]types.Finding, 0)}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze",
		strings.NewReader(`{"contract_text": "Fully compliant text."}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"flagged_clauses": []}`, w.Body.String())
}

func TestScanHandler_Analyze_InternalError(t *testing.T) {
	svc := &stubScanService{err: errors.New("playbook store unavailable")}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze",
		strings.NewReader(`{"contract_text": "some text"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, -1, resp.Code)
	assert.NotEmpty(t, resp.Msg)
	assert.Contains(t, resp.Msg, "playbook store unavailable")
}

func TestScanHandler_Analyze_BadRequest(t *testing.T) {
	r := newTestRouter(&stubScanService{})

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ``},
		{name: "missing field", body: `{}`},
		{name: "empty contract_text", body: `{"contract_text": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

// 不带文件上传时退回样例合同，而不是报错
func TestScanHandler_Upload_NoFileFallsBack(t *testing.T) {
	svc := &stubScanService{result: &types.AnalysisResult{FlaggedClauses: make([]types.Finding, 0)}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan/upload", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.uploadNil)
}

func TestScanHandler_ListScans(t *testing.T) {
	svc := &stubScanService{records: []postgres.ScanRecord{
		{ScanID: "scan-1", FileName: "a.pdf", FindingCount: 2, Status: types.ScanStatusCompleted},
	}}
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/scans?limit=5", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "scan-1")
}

func TestScanHandler_SearchFindings(t *testing.T) {
	svc := &stubScanService{hits: []types.FindingHit{
		{ScanID: "scan-1", ClauseTitle: "Termination for Convenience", RiskLevel: types.RiskHigh, Score: 1.5},
	}}
	r := newTestRouter(svc)

	// 缺少 q 参数
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/findings/search", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, -1, resp.Code)

	// 正常检索
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/findings/search?q=termination&risk_level=High", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Termination for Convenience")
}
