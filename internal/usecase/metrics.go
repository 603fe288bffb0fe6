package usecase

import (
	"context"

	"github.com/example/batik-classifier/internal/repository"
)

// MetricsSummary represents aggregated classification insights.
type MetricsSummary struct {
	TotalPredictions     int64                   `json:"total_predictions"`
	CacheHits            int64                   `json:"cache_hits"`
	CacheHitRate         float64                 `json:"cache_hit_rate"`
	AverageTopConfidence float64                 `json:"average_top_confidence"`
	AverageLatencyMs     float64                 `json:"average_latency_ms"`
	TopLabels            []repository.LabelCount `json:"top_labels"`
}

// GetMetricsSummary aggregates classification metrics from persisted logs.
func (uc *ClassificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	if uc.repo == nil {
		return &MetricsSummary{TopLabels: []repository.LabelCount{}}, nil
	}

	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalPredictions:     aggregation.TotalCount,
		CacheHits:            aggregation.CacheHitCount,
		AverageTopConfidence: aggregation.AverageTopScore,
		AverageLatencyMs:     aggregation.AverageLatencyMs,
		TopLabels:            aggregation.TopLabels,
	}
	if summary.TopLabels == nil {
		summary.TopLabels = []repository.LabelCount{}
	}

	if aggregation.TotalCount > 0 {
		summary.CacheHitRate = float64(aggregation.CacheHitCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
