package handler

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"dca-scanner/api/response"
	"dca-scanner/storage/postgres"
	"dca-scanner/types"

	"github.com/gin-gonic/gin"
)

// ScanService handler 依赖的业务层能力
type ScanService interface {
	Scan(ctx context.Context, fileName, contractText string) (*types.AnalysisResult, error)
	ScanUpload(ctx context.Context, fileHeader *multipart.FileHeader) (*types.AnalysisResult, error)
	ListScans(ctx context.Context, limit int) ([]postgres.ScanRecord, error)
	SearchFindings(ctx context.Context, query, riskLevel string, topK int) ([]types.FindingHit, error)
}

type ScanHandler struct {
	scanSvc ScanService
}

func NewScanHandler(scanSvc ScanService) *ScanHandler {
	return &ScanHandler{scanSvc: scanSvc}
}

// Live 存活探测
func (h *ScanHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "DCA Analysis API is running.",
	})
}

// Analyze 审查原始合同文本
// 成功: 200 + {"flagged_clauses": [...]}（可能为空数组）
// 审查失败: 500 + 错误详情；请求体非法: 400
func (h *ScanHandler) Analyze(c *gin.Context) {
	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "参数错误: contract_text 不能为空")
		return
	}

	fmt.Printf(">>> [DEBUG] 收到审查请求, 文本长度: %d\n", len(req.ContractText))

	result, err := h.scanSvc.Scan(c.Request.Context(), "raw_text", req.ContractText)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, fmt.Sprintf("Internal Analysis Error: %v", err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// Upload 上传 PDF 审查接口；未带文件时审查内置样例合同
func (h *ScanHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		// 没有文件不是错误：退回样例合同
		fileHeader = nil
	}

	result, err := h.scanSvc.ScanUpload(c.Request.Context(), fileHeader)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, fmt.Sprintf("Internal Analysis Error: %v", err))
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListScans 列出最近的审查记录
func (h *ScanHandler) ListScans(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	records, err := h.scanSvc.ListScans(c.Request.Context(), limit)
	if err != nil {
		response.Fail(c, fmt.Sprintf("查询审查记录失败: %v", err))
		return
	}
	response.Success(c, records)
}

// SearchFindings 对历史 finding 做关键词检索
func (h *ScanHandler) SearchFindings(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Fail(c, "参数错误: q 不能为空")
		return
	}
	riskLevel := c.Query("risk_level")
	topK, _ := strconv.Atoi(c.DefaultQuery("top_k", "10"))

	hits, err := h.scanSvc.SearchFindings(c.Request.Context(), query, riskLevel, topK)
	if err != nil {
		response.Fail(c, fmt.Sprintf("finding 检索失败: %v", err))
		return
	}
	response.Success(c, hits)
}
