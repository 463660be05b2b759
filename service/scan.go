package service

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"strings"
	"time"

	"dca-scanner/storage/es"
	"dca-scanner/storage/postgres"
	"dca-scanner/types"
	"dca-scanner/vars"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/google/uuid"
)

// ScanService 业务层：审查 + 审计落库 + finding 入索引
type ScanService struct {
	analyzer  *Analyzer
	scanRepo  *postgres.ScanRepo
	esIndexer *es.FindingIndexer
}

// NewScanService 构造函数：依赖注入
func NewScanService(analyzer *Analyzer, scanRepo *postgres.ScanRepo, esIndexer *es.FindingIndexer) *ScanService {
	return &ScanService{
		analyzer:  analyzer,
		scanRepo:  scanRepo,
		esIndexer: esIndexer,
	}
}

// Scan 审查一份合同文本
// 审计落库和 ES 索引失败只告警，不影响审查结果返回
func (s *ScanService) Scan(ctx context.Context, fileName, contractText string) (*types.AnalysisResult, error) {
	startTime := time.Now()

	result, outcomes, err := s.analyzer.Analyze(ctx, contractText)
	if err != nil {
		return nil, err
	}
	fmt.Printf(">>> [性能] 合同审查耗时: %v\n", time.Since(startTime))

	scanID := uuid.New().String()
	record := buildScanRecord(scanID, fileName, result, outcomes)
	if err := s.scanRepo.Create(ctx, record); err != nil {
		log.Printf(">>> [Warning] 审计记录落库失败 (scan_id=%s): %v", scanID, err)
	}
	if err := s.esIndexer.Store(ctx, scanID, result.FlaggedClauses); err != nil {
		log.Printf(">>> [Warning] finding 索引失败 (scan_id=%s): %v", scanID, err)
	}

	return result, nil
}

// ScanUpload 审查上传的 PDF；未提供文件时退回内置样例合同
func (s *ScanService) ScanUpload(ctx context.Context, fileHeader *multipart.FileHeader) (*types.AnalysisResult, error) {
	if fileHeader == nil {
		fmt.Println(">>> [DEBUG] 未收到文件，使用内置样例合同")
		return s.Scan(ctx, "sample_contract.txt", vars.SAMPLE_CONTRACT)
	}

	srcFile, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer srcFile.Close()

	parseStart := time.Now()
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: false})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser failed: %w", err)
	}
	docs, err := p.Parse(ctx, srcFile, parser.WithURI(fileHeader.Filename))
	if err != nil {
		return nil, fmt.Errorf("parse pdf failed: %w", err)
	}
	fmt.Printf(">>> [性能] PDF 解析耗时: %v\n", time.Since(parseStart))

	var parts []string
	for _, doc := range docs {
		if doc.MetaData == nil {
			doc.MetaData = make(map[string]any)
		}
		// 文件名塞进元数据，落库时要用
		doc.MetaData[file.MetaKeyFileName] = fileHeader.Filename
		if doc.Content != "" {
			parts = append(parts, doc.Content)
		}
	}
	text := strings.Join(parts, "\n")
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("PDF 中未提取到任何文本: %s", fileHeader.Filename)
	}

	fileName := fileHeader.Filename
	if len(docs) > 0 {
		if v, ok := docs[0].MetaData[file.MetaKeyFileName].(string); ok && v != "" {
			fileName = v
		}
	}
	return s.Scan(ctx, fileName, text)
}

// ListScans 列出最近的审查记录
func (s *ScanService) ListScans(ctx context.Context, limit int) ([]postgres.ScanRecord, error) {
	return s.scanRepo.List(ctx, limit)
}

// SearchFindings 对历史 finding 做关键词检索
func (s *ScanService) SearchFindings(ctx context.Context, query, riskLevel string, topK int) ([]types.FindingHit, error) {
	return es.SearchFindings(ctx, s.esIndexer.GetClient(), s.esIndexer.Index(), query, riskLevel, topK)
}

// buildScanRecord 汇总一次审查的审计信息
func buildScanRecord(scanID, fileName string, result *types.AnalysisResult, outcomes []ChunkOutcome) *postgres.ScanRecord {
	highRisk := 0
	for _, f := range result.FlaggedClauses {
		if f.RiskLevel == types.RiskHigh {
			highRisk++
		}
	}
	skipped := skippedCount(outcomes)
	status := types.ScanStatusCompleted
	if skipped > 0 {
		status = types.ScanStatusPartial
	}
	now := time.Now()
	return &postgres.ScanRecord{
		ScanID:        scanID,
		FileName:      fileName,
		ChunkCount:    len(outcomes),
		SkippedChunks: skipped,
		FindingCount:  len(result.FlaggedClauses),
		HighRiskCount: highRisk,
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
