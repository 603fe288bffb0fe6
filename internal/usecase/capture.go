package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/example/batik-classifier/internal/logging"
	"github.com/example/batik-classifier/internal/repository"
)

// CaptureWriter persists raw capture bytes and names the result.
type CaptureWriter interface {
	Save(data []byte) (filename, path string, err error)
}

// CaptureRepository records capture metadata.
type CaptureRepository interface {
	SaveCapture(ctx context.Context, record *repository.CaptureRecord) error
	ListRecent(ctx context.Context, limit int) ([]*repository.CaptureRecord, error)
}

// CaptureUseCase saves camera frames sent by the front end.
type CaptureUseCase struct {
	writer CaptureWriter
	repo   CaptureRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewCaptureUseCase constructs a capture use case. repo may be nil.
func NewCaptureUseCase(writer CaptureWriter, repo CaptureRepository, logger *zap.Logger) *CaptureUseCase {
	return &CaptureUseCase{
		writer: writer,
		repo:   repo,
		logger: logger.Named("capture_usecase"),
		now:    time.Now,
	}
}

// Save writes data to disk unchanged and returns the generated filename.
func (uc *CaptureUseCase) Save(ctx context.Context, data []byte) (string, error) {
	filename, path, err := uc.writer.Save(data)
	if err != nil {
		wrapped := logging.NewOperationError("capture.write", "", err)
		uc.logger.Error("failed to write capture", zap.Error(wrapped))
		return "", wrapped
	}

	opLogger := logging.WithOperation(uc.logger, "capture.save", filename)
	opLogger.Info("capture saved", zap.String("path", path), zap.Int("bytes", len(data)))

	if uc.repo != nil {
		hash := sha1.Sum(data)
		record := &repository.CaptureRecord{
			Filename:  filename,
			SizeBytes: int64(len(data)),
			ImageSHA1: hex.EncodeToString(hash[:]),
			CreatedAt: uc.now().UTC(),
		}
		if err := uc.repo.SaveCapture(ctx, record); err != nil {
			opLogger.Warn("failed to record capture", zap.Error(err))
		}
	}

	return filename, nil
}

// ListCaptures returns the most recent capture records.
func (uc *CaptureUseCase) ListCaptures(ctx context.Context, limit int) ([]*repository.CaptureRecord, error) {
	if uc.repo == nil {
		return []*repository.CaptureRecord{}, nil
	}
	records, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, logging.NewOperationError("capture.list", "", err)
	}
	return records, nil
}
