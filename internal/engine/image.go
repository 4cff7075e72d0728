package engine

import (
	"bytes"
	"image"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// decodeInput parses an uploaded image and normalizes it to RGBA over a
// white background. The pixel limit is checked against the header before
// the full decode allocates anything.
func decodeInput(data []byte, maxPixels int64) (*image.RGBA, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage(err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, ErrImageTooLarge(cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrInvalidImage(err)
	}
	return flattenOverWhite(img), nil
}

// flattenOverWhite composites the image over opaque white and anchors
// the result at the origin. Upscaler families work on fully opaque
// three-channel input.
func flattenOverWhite(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Over)
	return out
}
