package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/batik-classifier/internal/catalog"
	"github.com/example/batik-classifier/internal/imageprocessor"
	"github.com/example/batik-classifier/internal/logging"
	"github.com/example/batik-classifier/internal/repository"
	"github.com/example/batik-classifier/internal/retry"
)

// ErrResultNotFound is returned when no prediction was logged for a request id.
var ErrResultNotFound = errors.New("result not found")

// Model runs a preprocessed tensor through the classifier.
type Model interface {
	Run(ctx context.Context, input *imageprocessor.Tensor) ([]float32, error)
}

// PredictionRepository defines the persistence operations needed by the use case.
type PredictionRepository interface {
	SaveLog(ctx context.Context, log *repository.PredictionLog) error
	FindByRequestID(ctx context.Context, requestID string) (*repository.PredictionLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Classification is the ranked outcome of one request.
type Classification struct {
	RequestID      string               `json:"request_id"`
	TopPrediction  catalog.Prediction   `json:"top_prediction"`
	AllPredictions []catalog.Prediction `json:"all_predictions"`
	CacheHit       bool                 `json:"cache_hit"`
	CreatedAt      time.Time            `json:"created_at"`
}

// ClassificationUseCase runs the decode, normalise, infer and rank pipeline.
type ClassificationUseCase struct {
	model     Model
	repo      PredictionRepository
	cache     Cache
	logger    *zap.Logger
	classes   []catalog.Class
	imageSize int
	cacheTTL  time.Duration
	policy    retry.Policy
	now       func() time.Time
}

// ClassificationOption customises a ClassificationUseCase.
type ClassificationOption func(*ClassificationUseCase)

// WithCache enables result caching keyed by image hash.
func WithCache(cache Cache, ttl time.Duration) ClassificationOption {
	return func(uc *ClassificationUseCase) {
		uc.cache = cache
		uc.cacheTTL = ttl
	}
}

// WithRetryPolicy overrides the retry policy used for cache calls.
func WithRetryPolicy(policy retry.Policy) ClassificationOption {
	return func(uc *ClassificationUseCase) {
		uc.policy = policy
	}
}

// NewClassificationUseCase constructs a new use case instance. repo may be
// nil, in which case predictions are not logged.
func NewClassificationUseCase(model Model, repo PredictionRepository, imageSize int, logger *zap.Logger, opts ...ClassificationOption) *ClassificationUseCase {
	uc := &ClassificationUseCase{
		model:     model,
		repo:      repo,
		logger:    logger.Named("classification_usecase"),
		classes:   catalog.BatikClasses(),
		imageSize: imageSize,
		policy:    retry.DefaultPolicy,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Classify ranks every known batik class for the given image bytes.
func (uc *ClassificationUseCase) Classify(ctx context.Context, imageBytes []byte) (*Classification, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify", requestID)
	start := uc.now()

	hash := sha1.Sum(imageBytes)
	hashHex := hex.EncodeToString(hash[:])

	ranked, cacheHit := uc.cachedPredictions(ctx, requestID, hashHex)
	if !cacheHit {
		tensor, err := imageprocessor.Preprocess(imageBytes, uc.imageSize)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.preprocess", requestID, err)
			opLogger.Warn("preprocessing failed", zap.Error(err), zap.Int("bytes", len(imageBytes)))
			return nil, wrapped
		}

		scores, err := uc.model.Run(ctx, tensor)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.inference", requestID, err)
			opLogger.Error("inference failed", zap.Error(err))
			return nil, wrapped
		}

		ranked, err = catalog.Rank(uc.classes, scores)
		if err != nil {
			wrapped := logging.NewOperationError("usecase.rank", requestID, err)
			opLogger.Error("unexpected model output", zap.Error(err), zap.Int("scores", len(scores)))
			return nil, wrapped
		}

		uc.storePredictions(ctx, requestID, hashHex, ranked)
	}

	result := &Classification{
		RequestID:      requestID,
		TopPrediction:  ranked[0],
		AllPredictions: ranked,
		CacheHit:       cacheHit,
		CreatedAt:      uc.now().UTC(),
	}
	latency := result.CreatedAt.Sub(start.UTC())

	opLogger.Info("image classified",
		zap.String("top_label", result.TopPrediction.Name),
		zap.Float64("confidence", result.TopPrediction.Confidence),
		zap.Bool("cache_hit", cacheHit),
		zap.Duration("latency", latency),
	)

	uc.saveLog(ctx, result, hashHex, latency)
	return result, nil
}

// GetResult loads a previously logged classification.
func (uc *ClassificationUseCase) GetResult(ctx context.Context, requestID string) (*Classification, error) {
	if uc.repo == nil {
		return nil, ErrResultNotFound
	}

	log, err := uc.repo.FindByRequestID(ctx, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResultNotFound
	}
	if err != nil {
		return nil, logging.NewOperationError("usecase.get_result", requestID, err)
	}

	var ranked []catalog.Prediction
	if err := json.Unmarshal([]byte(log.Scores), &ranked); err != nil {
		return nil, logging.NewOperationError("usecase.get_result", requestID, fmt.Errorf("decode stored scores: %w", err))
	}
	if len(ranked) == 0 {
		return nil, logging.NewOperationError("usecase.get_result", requestID, errors.New("stored scores are empty"))
	}

	return &Classification{
		RequestID:      log.RequestID,
		TopPrediction:  ranked[0],
		AllPredictions: ranked,
		CacheHit:       log.CacheHit,
		CreatedAt:      log.CreatedAt,
	}, nil
}

func predictionCacheKey(imageHash string) string {
	return "batik:prediction:" + imageHash
}

func (uc *ClassificationUseCase) cachedPredictions(ctx context.Context, requestID, hashHex string) ([]catalog.Prediction, bool) {
	if uc.cache == nil {
		return nil, false
	}

	var (
		cached string
		miss   bool
	)
	err := retry.Do(ctx, uc.policy, uc.logger, "cache.get.prediction", requestID, func() error {
		value, err := uc.cache.Get(ctx, predictionCacheKey(hashHex))
		if errors.Is(err, ErrCacheMiss) {
			miss = true
			return nil
		}
		if err != nil {
			return err
		}
		cached = value
		return nil
	})
	if err != nil || miss {
		return nil, false
	}

	var ranked []catalog.Prediction
	if err := json.Unmarshal([]byte(cached), &ranked); err != nil || len(ranked) != len(uc.classes) {
		logging.WithOperation(uc.logger, "cache.get.prediction", requestID).Warn("ignoring malformed cache entry", zap.Error(err))
		return nil, false
	}
	return ranked, true
}

func (uc *ClassificationUseCase) storePredictions(ctx context.Context, requestID, hashHex string, ranked []catalog.Prediction) {
	if uc.cache == nil {
		return
	}

	serialized, err := json.Marshal(ranked)
	if err != nil {
		logging.WithOperation(uc.logger, "cache.set.prediction", requestID).Error("failed to serialize predictions", zap.Error(err))
		return
	}

	// a failed write only costs a future inference
	_ = retry.Do(ctx, uc.policy, uc.logger, "cache.set.prediction", requestID, func() error {
		return uc.cache.Set(ctx, predictionCacheKey(hashHex), string(serialized), uc.cacheTTL)
	})
}

func (uc *ClassificationUseCase) saveLog(ctx context.Context, result *Classification, hashHex string, latency time.Duration) {
	if uc.repo == nil {
		return
	}

	scores, err := json.Marshal(result.AllPredictions)
	if err != nil {
		logging.WithOperation(uc.logger, "usecase.save_log", result.RequestID).Error("failed to serialize scores", zap.Error(err))
		return
	}

	log := &repository.PredictionLog{
		RequestID:     result.RequestID,
		TopLabel:      result.TopPrediction.Name,
		TopConfidence: result.TopPrediction.Confidence,
		Scores:        string(scores),
		ImageSHA1:     hashHex,
		LatencyMs:     float64(latency.Microseconds()) / 1000.0,
		CacheHit:      result.CacheHit,
		CreatedAt:     result.CreatedAt,
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		logging.WithOperation(uc.logger, "usecase.save_log", result.RequestID).Warn("failed to persist prediction log", zap.Error(err))
	}
}
