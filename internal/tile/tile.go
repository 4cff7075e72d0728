// Package tile computes and reassembles the tiling geometry used to run
// large images through fixed-size inference launches. The planner slices an
// image into owned regions that exactly partition it; each region is read
// with an overlap margin so the network never sees a hard seam. The
// compositor trims the scaled margins back off and writes each owned region
// into the final output.
package tile

import "image"

// Spec is one planned tile: the region of the source image it owns plus the
// overlap margin read around it.
type Spec struct {
	// Region is the owned part of the source image. Owned regions of a
	// plan partition the image exactly.
	Region image.Rectangle
	// Overlap is the margin in pixels read around Region and trimmed
	// after inference.
	Overlap int
}

// ReadRect returns the rect actually read for inference: Region grown by
// the overlap margin and clipped to the image bounds. Edge tiles clip
// instead of padding with synthetic pixels.
func (s Spec) ReadRect(bounds image.Rectangle) image.Rectangle {
	return s.Region.Inset(-s.Overlap).Intersect(bounds)
}

// Plan is the ordered tile set covering one image at one model scale.
type Plan struct {
	Width    int
	Height   int
	Scale    int
	TileSize int
	Overlap  int
	Tiles    []Spec
}

// Bounds returns the source image bounds the plan was computed for.
func (p Plan) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// OutputBounds returns the dimensions of the composed result.
func (p Plan) OutputBounds() image.Rectangle {
	return image.Rect(0, 0, p.Width*p.Scale, p.Height*p.Scale)
}

// SingleTile reports whether the plan runs the whole image in one launch.
func (p Plan) SingleTile() bool {
	return len(p.Tiles) == 1
}

// Result pairs a spec with its processed pixels. The buffer covers the
// spec's padded read rect at the plan's scale, margins still attached.
type Result struct {
	Spec  Spec
	Image *image.RGBA
}

// Thresholds holds the per-scale-band single-tile limits: the largest
// input dimension that still runs as one launch. Zero means unlimited.
type Thresholds struct {
	X1    int // scale 1
	X2to3 int // scales 2-3
	X4to5 int // scales 4-5
	X6to7 int // scales 6-7
	X8    int // scale 8 and above
}

// ForScale returns the band threshold for a model scale.
func (t Thresholds) ForScale(scale int) int {
	switch {
	case scale <= 1:
		return t.X1
	case scale <= 3:
		return t.X2to3
	case scale <= 5:
		return t.X4to5
	case scale <= 7:
		return t.X6to7
	default:
		return t.X8
	}
}
