package postgres

import (
	"time"

	"dca-scanner/types"
)

// ScanRecord 对应数据库里的 scan_records 表，一行是一次完整的合同审查
type ScanRecord struct {
	// ScanID 手动指定的 UUID，不用自增 ID
	ScanID        string `gorm:"column:scan_id;primaryKey;type:uuid"`
	FileName      string `gorm:"column:file_name;type:varchar(255);not null"`
	ChunkCount    int    `gorm:"column:chunk_count"`
	SkippedChunks int    `gorm:"column:skipped_chunks"`
	FindingCount  int    `gorm:"column:finding_count"`
	HighRiskCount int    `gorm:"column:high_risk_count"`
	// 如：1 完成, 2 部分完成（有 chunk 被跳过）
	Status int `gorm:"column:status;type:smallint;default:1;index"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 强制指定表名
func (ScanRecord) TableName() string {
	return "scan_records"
}

func (r *ScanRecord) IsPartial() bool {
	return r.Status == types.ScanStatusPartial
}
