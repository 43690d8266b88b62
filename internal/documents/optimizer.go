package documents

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// OptimizeOptions bounds the output of OptimizeImage. Zero values fall back
// to defaults.
type OptimizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
}

const (
	defaultOptimizeMaxWidth  = 2048
	defaultOptimizeMaxHeight = 2048
	defaultOptimizeQuality   = 85
)

// OptimizeImage decodes the payload, downscales it to fit within the
// configured bounds (never upscaling), and re-encodes it. JPEG input stays
// JPEG; PNG stays PNG to preserve transparency. Callers that can live with
// the original bytes should treat an error as a degrade, not a failure.
func OptimizeImage(data []byte, opts OptimizeOptions) ([]byte, error) {
	maxWidth := opts.MaxWidth
	if maxWidth <= 0 {
		maxWidth = defaultOptimizeMaxWidth
	}
	maxHeight := opts.MaxHeight
	if maxHeight <= 0 {
		maxHeight = defaultOptimizeMaxHeight
	}
	quality := opts.Quality
	if quality <= 0 {
		quality = defaultOptimizeQuality
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width > maxWidth || height > maxHeight {
		scale := float64(maxWidth) / float64(width)
		if s := float64(maxHeight) / float64(height); s < scale {
			scale = s
		}
		targetW := int(float64(width) * scale)
		targetH := int(float64(height) * scale)
		if targetW < 1 {
			targetW = 1
		}
		if targetH < 1 {
			targetH = 1
		}

		dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encoding jpeg: %w", err)
		}
	}
	return buf.Bytes(), nil
}
