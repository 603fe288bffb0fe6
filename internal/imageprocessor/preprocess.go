package imageprocessor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// MaxImagePixels bounds the declared width x height of an input image so a
// small header cannot make the decoder allocate an arbitrarily large buffer.
const MaxImagePixels = 89_478_485

// Preprocess decodes data, resizes it to size x size and returns a
// [1, size, size, 3] tensor with channel values scaled to [0,1].
// Grayscale sources have their single channel replicated and alpha is
// discarded.
func Preprocess(data []byte, size int) (*Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid target size %d", size)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrUnsupportedImage, cfg.Width, cfg.Height, MaxImagePixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}

	resized := resize.Resize(uint(size), uint(size), img, resize.Bicubic)
	return toTensor(resized, size), nil
}

func toTensor(img image.Image, size int) *Tensor {
	bounds := img.Bounds()
	data := make([]float32, size*size*Channels)

	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := (y*size + x) * Channels
			switch src := img.(type) {
			case *image.Gray:
				v := float32(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y) / 255.0
				data[i], data[i+1], data[i+2] = v, v, v
			default:
				c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
				data[i] = float32(c.R) / 255.0
				data[i+1] = float32(c.G) / 255.0
				data[i+2] = float32(c.B) / 255.0
			}
		}
	}

	return &Tensor{
		Shape: []int64{1, int64(size), int64(size), Channels},
		Data:  data,
	}
}
