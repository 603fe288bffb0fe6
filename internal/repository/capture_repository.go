package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/batik-classifier/internal/retry"
)

// CaptureRecord is the metadata of a capture written to disk.
type CaptureRecord struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Filename  string    `gorm:"column:filename;size:128;index" json:"filename"`
	SizeBytes int64     `gorm:"column:size_bytes" json:"size_bytes"`
	ImageSHA1 string    `gorm:"column:image_sha1;size:40" json:"sha1"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides the default table name.
func (CaptureRecord) TableName() string {
	return "capture_records"
}

// CaptureRepository stores capture metadata.
type CaptureRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewCaptureRepository creates a new repository instance.
func NewCaptureRepository(db *gorm.DB, logger *zap.Logger) *CaptureRepository {
	return &CaptureRepository{
		db:     db,
		logger: logger.Named("capture_repository"),
		policy: retry.DefaultPolicy,
	}
}

// SaveCapture persists a capture record.
func (r *CaptureRepository) SaveCapture(ctx context.Context, record *CaptureRecord) error {
	return retry.Do(ctx, r.policy, r.logger, "repository.save_capture", record.Filename, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// ListRecent returns up to limit records, newest first.
func (r *CaptureRepository) ListRecent(ctx context.Context, limit int) ([]*CaptureRecord, error) {
	var records []*CaptureRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
