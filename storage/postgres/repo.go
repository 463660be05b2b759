package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ScanRepo 封装对 scan_records 表的所有操作
type ScanRepo struct {
	db *gorm.DB
}

// NewScanRepo 构造函数
func NewScanRepo(db *gorm.DB) *ScanRepo {
	return &ScanRepo{db: db}
}

// Create 写入一条审查记录
func (r *ScanRepo) Create(ctx context.Context, record *ScanRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// GetByScanID 根据 UUID 查询审查记录
func (r *ScanRepo) GetByScanID(ctx context.Context, scanID string) (*ScanRecord, error) {
	var record ScanRecord
	err := r.db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// List 倒序列出最近的审查记录
func (r *ScanRepo) List(ctx context.Context, limit int) ([]ScanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []ScanRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// PurgeBefore 删除某个时间点之前的审查记录，用于定时清理
func (r *ScanRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&ScanRecord{})
	return result.RowsAffected, result.Error
}
