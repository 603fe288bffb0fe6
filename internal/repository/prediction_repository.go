package repository

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/batik-classifier/internal/retry"
)

// PredictionLog records one classification request.
type PredictionLog struct {
	ID            uint      `gorm:"primaryKey"`
	RequestID     string    `gorm:"column:request_id;uniqueIndex;size:64"`
	TopLabel      string    `gorm:"column:top_label;size:64;index"`
	TopConfidence float64   `gorm:"column:top_confidence"`
	Scores        string    `gorm:"column:scores;type:text"`
	ImageSHA1     string    `gorm:"column:image_sha1;size:40;index"`
	LatencyMs     float64   `gorm:"column:latency_ms"`
	CacheHit      bool      `gorm:"column:cache_hit"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (PredictionLog) TableName() string {
	return "prediction_logs"
}

// LabelCount is how often a label came out on top.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// MetricsAggregation is the raw aggregate over all prediction logs.
type MetricsAggregation struct {
	TotalCount       int64
	CacheHitCount    int64
	AverageTopScore  float64
	AverageLatencyMs float64
	TopLabels        []LabelCount
}

// PredictionRepository provides persistence APIs for prediction logs.
type PredictionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	policy retry.Policy
}

// NewPredictionRepository creates a new repository instance.
func NewPredictionRepository(db *gorm.DB, logger *zap.Logger) *PredictionRepository {
	return &PredictionRepository{
		db:     db,
		logger: logger.Named("prediction_repository"),
		policy: retry.DefaultPolicy,
	}
}

// SaveLog persists a prediction log entry.
func (r *PredictionRepository) SaveLog(ctx context.Context, log *PredictionLog) error {
	return retry.Do(ctx, r.policy, r.logger, "repository.save_prediction", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestID retrieves the log written for a request.
func (r *PredictionRepository) FindByRequestID(ctx context.Context, requestID string) (*PredictionLog, error) {
	var log PredictionLog
	if err := r.db.WithContext(ctx).First(&log, "request_id = ?", requestID).Error; err != nil {
		return nil, err
	}
	return &log, nil
}

// AggregateMetrics summarises every stored prediction.
func (r *PredictionRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var row struct {
		TotalCount       int64
		CacheHitCount    int64
		AverageTopScore  float64
		AverageLatencyMs float64
	}
	err := r.db.WithContext(ctx).Model(&PredictionLog{}).
		Select("COUNT(*) AS total_count, " +
			"COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0) AS cache_hit_count, " +
			"COALESCE(AVG(top_confidence), 0) AS average_top_score, " +
			"COALESCE(AVG(latency_ms), 0) AS average_latency_ms").
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	var labels []LabelCount
	err = r.db.WithContext(ctx).Model(&PredictionLog{}).
		Select("top_label AS label, COUNT(*) AS count").
		Group("top_label").
		Order("count DESC, label ASC").
		Scan(&labels).Error
	if err != nil {
		return nil, err
	}

	return &MetricsAggregation{
		TotalCount:       row.TotalCount,
		CacheHitCount:    row.CacheHitCount,
		AverageTopScore:  row.AverageTopScore,
		AverageLatencyMs: row.AverageLatencyMs,
		TopLabels:        labels,
	}, nil
}
