package tile

import (
	"fmt"
	"image"
)

// Planner slices images into tile plans. It is pure: identical inputs
// always yield identical plans.
type Planner struct {
	thresholds Thresholds
	tileSize   int
	overlap    int
}

// NewPlanner builds a planner from validated geometry settings.
func NewPlanner(th Thresholds, tileSize, overlap int) (*Planner, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("overlap must not be negative, got %d", overlap)
	}
	if overlap*2 >= tileSize {
		return nil, fmt.Errorf("overlap %d too large for tile size %d", overlap, tileSize)
	}
	return &Planner{thresholds: th, tileSize: tileSize, overlap: overlap}, nil
}

// Plan computes the tile plan for an image of the given dimensions run at
// the given model scale. Images at or below the scale band's threshold run
// as a single whole-image tile with no overlap; larger images are cut into
// a grid of owned regions at the working tile size, each read with the
// overlap margin and clipped at the image boundary.
func (p *Planner) Plan(width, height, scale int) (Plan, error) {
	if width <= 0 || height <= 0 {
		return Plan{}, fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}
	if scale < 1 {
		return Plan{}, fmt.Errorf("scale must be at least 1, got %d", scale)
	}
	plan := Plan{
		Width:    width,
		Height:   height,
		Scale:    scale,
		TileSize: p.tileSize,
		Overlap:  p.overlap,
	}
	threshold := p.thresholds.ForScale(scale)
	if threshold == 0 || (width <= threshold && height <= threshold) {
		plan.Tiles = []Spec{{Region: image.Rect(0, 0, width, height)}}
		return plan, nil
	}
	plan.Tiles = Subdivide(image.Rect(0, 0, width, height), p.tileSize, p.overlap)
	return plan, nil
}

// Subdivide partitions a region into rows of owned regions at the given
// working size. Regions at the right and bottom edges are clipped, so the
// regions cover the input exactly with no gaps and no double coverage. The
// runner re-slices a single region with this when it degrades the working
// size after an out-of-memory launch.
func Subdivide(region image.Rectangle, size, overlap int) []Spec {
	cols := (region.Dx() + size - 1) / size
	rows := (region.Dy() + size - 1) / size
	tiles := make([]Spec, 0, cols*rows)
	for row := 0; row < rows; row++ {
		y0 := region.Min.Y + row*size
		y1 := y0 + size
		if y1 > region.Max.Y {
			y1 = region.Max.Y
		}
		for col := 0; col < cols; col++ {
			x0 := region.Min.X + col*size
			x1 := x0 + size
			if x1 > region.Max.X {
				x1 = region.Max.X
			}
			tiles = append(tiles, Spec{
				Region:  image.Rect(x0, y0, x1, y1),
				Overlap: overlap,
			})
		}
	}
	return tiles
}
