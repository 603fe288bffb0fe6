package imageprocessor

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
)

// DecodePayload extracts image bytes from a browser data URL
// ("data:image/jpeg;base64,<data>") or from bare base64 text.
func DecodePayload(payload string) ([]byte, error) {
	encoded := strings.TrimSpace(payload)
	if idx := strings.IndexByte(encoded, ','); idx >= 0 {
		encoded = encoded[idx+1:]
	}
	encoded = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: no base64 data", ErrInvalidPayload)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// canvas.toDataURL always pads, but hand-built clients often do not
		var rawErr error
		data, rawErr = base64.RawStdEncoding.DecodeString(encoded)
		if rawErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return data, nil
}
