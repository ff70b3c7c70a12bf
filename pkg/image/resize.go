package image

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"
)

// Resize scales a PNG down to targetWidth preserving aspect ratio.
// Images already narrow enough are returned unchanged.
func Resize(data []byte, targetWidth int) ([]byte, error) {
	if targetWidth <= 0 {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	if bounds.Dx() <= targetWidth {
		return data, nil
	}

	targetHeight := bounds.Dy() * targetWidth / bounds.Dx()
	dst := image.NewRGBA(image.Rect(0, 0, targetWidth, targetHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
