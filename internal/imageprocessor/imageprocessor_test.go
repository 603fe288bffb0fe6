package imageprocessor

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uniformNRGBA(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestDecodePayloadDataURL(t *testing.T) {
	want := []byte("batik bytes")
	payload := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(want)

	got, err := DecodePayload(payload)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodePayloadBareAndUnpadded(t *testing.T) {
	want := []byte("ab")

	got, err := DecodePayload(base64.StdEncoding.EncodeToString(want))
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = DecodePayload(base64.RawStdEncoding.EncodeToString(want))
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodePayloadIgnoresLineBreaks(t *testing.T) {
	got, err := DecodePayload("data:image/png;base64,YmF0\naWs=")
	require.NoError(t, err)
	require.Equal(t, []byte("batik"), got)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	for _, payload := range []string{"", "data:image/png;base64,", "data:image/png;base64,!!!not-base64!!!"} {
		_, err := DecodePayload(payload)
		require.Error(t, err, payload)
		require.True(t, errors.Is(err, ErrInvalidPayload), payload)
	}
}

func TestPreprocessShapeAndRange(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for y := 0; y < 30; y++ {
		for x := 0; x < 40; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 8), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))

	tensor, err := Preprocess(buf.Bytes(), 224)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 224, 224, 3}, tensor.Shape)
	require.Len(t, tensor.Data, 224*224*3)
	require.Equal(t, len(tensor.Data), tensor.Len())
	for _, v := range tensor.Data {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessGrayscaleReplicatesChannel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 128
	}

	tensor, err := Preprocess(encodePNG(t, img), 8)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 8, 8, 3}, tensor.Shape)
	for i := 0; i < len(tensor.Data); i += 3 {
		require.Equal(t, tensor.Data[i], tensor.Data[i+1])
		require.Equal(t, tensor.Data[i], tensor.Data[i+2])
		require.InDelta(t, 128.0/255.0, tensor.Data[i], 0.01)
	}
}

func TestPreprocessDropsAlpha(t *testing.T) {
	img := uniformNRGBA(12, 12, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

	tensor, err := Preprocess(encodePNG(t, img), 6)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 6, 6, 3}, tensor.Shape)
	require.InDelta(t, 200.0/255.0, tensor.Data[0], 0.02)
	require.InDelta(t, 100.0/255.0, tensor.Data[1], 0.02)
	require.InDelta(t, 50.0/255.0, tensor.Data[2], 0.02)
}

func TestPreprocessRejectsCorruptBytes(t *testing.T) {
	_, err := Preprocess([]byte("definitely not an image"), 224)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedImage))
}

func TestPreprocessRejectsInvalidSize(t *testing.T) {
	img := uniformNRGBA(2, 2, color.NRGBA{A: 255})
	_, err := Preprocess(encodePNG(t, img), 0)
	require.Error(t, err)
}

// pngHeader returns a PNG signature and IHDR chunk declaring w x h RGB pixels
// with no image data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	chunk := make([]byte, 0, 17)
	chunk = append(chunk, "IHDR"...)
	chunk = binary.BigEndian.AppendUint32(chunk, w)
	chunk = binary.BigEndian.AppendUint32(chunk, h)
	chunk = append(chunk, 8, 2, 0, 0, 0)

	binary.Write(&buf, binary.BigEndian, uint32(len(chunk)-4))
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestPreprocessRejectsOversizedDeclaredDimensions(t *testing.T) {
	for _, dims := range [][2]uint32{{20000, 20000}, {1 << 28, 1 << 28}} {
		header := pngHeader(dims[0], dims[1])
		require.Less(t, len(header), 64)

		_, err := Preprocess(header, 224)
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrUnsupportedImage), "%dx%d: %v", dims[0], dims[1], err)
		require.Contains(t, err.Error(), "exceeds")
	}
}

func TestPreprocessAcceptsImageAtPixelBudget(t *testing.T) {
	img := uniformNRGBA(64, 48, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	require.LessOrEqual(t, 64*48, MaxImagePixels)

	_, err := Preprocess(encodePNG(t, img), 8)
	require.NoError(t, err)
}
