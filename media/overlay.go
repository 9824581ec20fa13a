package media

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder

	_ "golang.org/x/image/webp" // Register WebP decoder
)

// PrepareOverlay decodes an overlay image and scales it to fit within
// maxWidth x maxHeight, preserving aspect ratio. The result is PNG so
// transparency survives compositing. Images already within the bounds
// are re-encoded unchanged.
func PrepareOverlay(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, fmt.Errorf("invalid overlay bounds %dx%d", maxWidth, maxHeight)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode overlay image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxWidth || height > maxHeight {
		scale := float64(maxWidth) / float64(width)
		if s := float64(maxHeight) / float64(height); s < scale {
			scale = s
		}
		newW := int(float64(width) * scale)
		newH := int(float64(height) * scale)
		if newW < 1 {
			newW = 1
		}
		if newH < 1 {
			newH = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode overlay (%s source): %w", format, err)
	}
	return buf.Bytes(), nil
}
