// Package inference runs the converted batik model through ONNX Runtime.
package inference

import (
	"context"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/example/batik-classifier/internal/imageprocessor"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("inference session closed")

// Options describes the model file and its tensor layout.
type Options struct {
	ModelPath   string
	LibraryPath string
	InputName   string
	OutputName  string
	ImageSize   int
	NumClasses  int
}

// Session owns an ONNX Runtime session and its pre-allocated tensors.
// The tensors are shared, so Run calls are serialised.
type Session struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	inputShape   ort.Shape
	logger       *zap.Logger
	closed       bool
}

// NewSession initialises the ONNX Runtime environment and loads the model.
func NewSession(opts Options, logger *zap.Logger) (*Session, error) {
	if opts.ImageSize <= 0 || opts.NumClasses <= 0 {
		return nil, fmt.Errorf("invalid model dimensions: image size %d, classes %d", opts.ImageSize, opts.NumClasses)
	}
	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	size := int64(opts.ImageSize)
	inputShape := ort.NewShape(1, size, size, imageprocessor.Channels)
	outputShape := ort.NewShape(1, int64(opts.NumClasses))

	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(opts.ModelPath,
		[]string{opts.InputName}, []string{opts.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session for %s: %w", opts.ModelPath, err)
	}

	logger.Info("model loaded",
		zap.String("model_path", opts.ModelPath),
		zap.String("input_shape", inputShape.String()),
		zap.String("output_shape", outputShape.String()),
	)

	return &Session{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		inputShape:   inputShape,
		logger:       logger.Named("inference"),
	}, nil
}

// Run feeds the tensor through the model and returns a copy of the scores.
func (s *Session) Run(ctx context.Context, input *imageprocessor.Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if want := int(s.inputShape.FlattenedSize()); len(input.Data) != want {
		return nil, fmt.Errorf("input has %d values, model expects %d", len(input.Data), want)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	copy(s.inputTensor.GetData(), input.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	scores := make([]float32, len(s.outputTensor.GetData()))
	copy(scores, s.outputTensor.GetData())
	return scores, nil
}

// Close releases the session, its tensors and the runtime environment.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true

	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	if err := ort.DestroyEnvironment(); err != nil {
		s.logger.Warn("failed to destroy ONNX environment", zap.Error(err))
	}
}
