// Package encoder turns a decoded frame into an immutable JPEG byte buffer.
//
// Grounded on _examples/lsnow99-cam-server/camera.go's encodeToImage, which
// also re-encodes a decoded image.Image via the standard library's
// image/jpeg. No repo in the retrieved pack imports a third-party JPEG
// codec (libjpeg-turbo bindings, etc.) — stdlib is the ecosystem way for
// this concern here, so no third-party dependency is substituted.
package encoder

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// DefaultQuality matches spec.md §4.2 / §6's default jpeg_quality.
const DefaultQuality = 85

// Encode produces an immutable JPEG buffer for frame at the given quality
// (clamped to [0,100]). Safe for concurrent use: image/jpeg.Encode does not
// share state across calls.
func Encode(frame image.Image, quality int) ([]byte, error) {
	if quality < 0 {
		quality = 0
	} else if quality > 100 {
		quality = 100
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encoder: encode: %w", err)
	}
	return buf.Bytes(), nil
}
