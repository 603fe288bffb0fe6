package inference

import (
	"context"
	"errors"
	"testing"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/example/batik-classifier/internal/imageprocessor"
)

func TestNewSessionRejectsInvalidDimensions(t *testing.T) {
	_, err := NewSession(Options{ModelPath: "model.onnx", ImageSize: 0, NumClasses: 4}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for zero image size")
	}
}

func TestRunRejectsWrongInputLength(t *testing.T) {
	s := &Session{inputShape: ort.NewShape(1, 2, 2, 3), logger: zap.NewNop()}

	_, err := s.Run(context.Background(), &imageprocessor.Tensor{Shape: []int64{1, 2, 2, 1}, Data: make([]float32, 4)})
	if err == nil {
		t.Fatal("expected error for mismatched input length")
	}
}

func TestRunAfterCloseFails(t *testing.T) {
	s := &Session{inputShape: ort.NewShape(1, 2, 2, 3), logger: zap.NewNop(), closed: true}

	_, err := s.Run(context.Background(), &imageprocessor.Tensor{Shape: []int64{1, 2, 2, 3}, Data: make([]float32, 12)})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRunHonoursCancelledContext(t *testing.T) {
	s := &Session{inputShape: ort.NewShape(1, 2, 2, 3), logger: zap.NewNop()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, &imageprocessor.Tensor{Shape: []int64{1, 2, 2, 3}, Data: make([]float32, 12)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
