// Package imageprocessor turns captured or uploaded images into the
// float tensor the batik model consumes.
package imageprocessor

import "errors"

// Channels is the number of colour channels fed to the model.
const Channels = 3

var (
	// ErrInvalidPayload is returned when the request payload is not base64 image data.
	ErrInvalidPayload = errors.New("invalid image payload")
	// ErrUnsupportedImage is returned when the bytes cannot be decoded as an image.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// Tensor is a dense NHWC float32 tensor.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Len is the number of elements the shape describes.
func (t *Tensor) Len() int {
	if len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= int(d)
	}
	return n
}
