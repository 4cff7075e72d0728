package engine

import (
	"context"
	"fmt"
	"image"
	"log"

	"golang.org/x/image/draw"

	"upscaled/internal/arch"
	"upscaled/internal/tile"
)

// runTile upscales one tile, degrading the working size and re-slicing
// on accelerator out-of-memory. On success the returned buffer covers
// the tile's read rect at model scale, anchored at the origin.
func (e *Engine) runTile(ctx context.Context, lm *loadedModel, src *image.RGBA, spec tile.Spec, size int) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	read := spec.ReadRect(src.Bounds())
	in, ok := src.SubImage(read).(*image.RGBA)
	if !ok {
		return nil, tile.ErrPlanViolation(fmt.Sprintf("tile %v read rect %v is not RGBA", spec.Region, read))
	}

	releaseStream, err := e.acquireStream(ctx)
	if err != nil {
		return nil, err
	}
	out, err := lm.family.Infer(ctx, lm.handle, in)
	releaseStream()
	if err == nil {
		return out, nil
	}
	if !arch.IsOutOfMemory(err) {
		return nil, err
	}

	next := degradedSize(spec, size)
	if next < e.tileFloor {
		log.Printf("engine event=tile_exhausted model=%q region=%v floor=%d", lm.id, spec.Region, e.tileFloor)
		return nil, ErrAcceleratorExhausted(lm.id, e.tileFloor)
	}
	e.degradationsTotal.Add(1)
	tileDegradationsTotal.Inc()
	log.Printf("engine event=tile_degraded model=%q region=%v size=%d next=%d", lm.id, spec.Region, size, next)
	e.publisher.Publish(Event{Name: "tile_degraded", ModelID: lm.id, Fields: map[string]any{
		"region": spec.Region.String(),
		"size":   size,
		"next":   next,
	}})

	subs := tile.Subdivide(spec.Region, next, spec.Overlap)
	parts := make([]*image.RGBA, len(subs))
	for i, sub := range subs {
		part, err := e.runTile(ctx, lm, src, sub, next)
		if err != nil {
			return nil, err
		}
		parts[i] = part
	}
	return assembleRegion(src.Bounds(), spec, subs, parts, lm.scale)
}

// degradedSize picks the next working size after an out-of-memory
// launch. Tiles wider than the current size drop to it first, so a
// whole-image fast path retries at the configured tile size before any
// halving.
func degradedSize(spec tile.Spec, size int) int {
	span := spec.Region.Dx()
	if dy := spec.Region.Dy(); dy > span {
		span = dy
	}
	if span > size {
		return size
	}
	return size / 2
}

// assembleRegion stitches degraded sub-tile results into one buffer the
// same shape a direct launch of the parent tile would have produced.
// Only the owned region of each sub-result is copied; the parent's
// overlap margins stay zero and are never read downstream.
func assembleRegion(bounds image.Rectangle, spec tile.Spec, subs []tile.Spec, parts []*image.RGBA, scale int) (*image.RGBA, error) {
	read := spec.ReadRect(bounds)
	out := image.NewRGBA(image.Rect(0, 0, read.Dx()*scale, read.Dy()*scale))
	for i, sub := range subs {
		part := parts[i]
		subRead := sub.ReadRect(bounds)
		got := part.Bounds()
		if got.Dx() != subRead.Dx()*scale || got.Dy() != subRead.Dy()*scale {
			return nil, tile.ErrPlanViolation(fmt.Sprintf("sub-tile %v produced %dx%d, want %dx%d",
				sub.Region, got.Dx(), got.Dy(), subRead.Dx()*scale, subRead.Dy()*scale))
		}
		dst := image.Rect(
			(sub.Region.Min.X-read.Min.X)*scale,
			(sub.Region.Min.Y-read.Min.Y)*scale,
			(sub.Region.Max.X-read.Min.X)*scale,
			(sub.Region.Max.Y-read.Min.Y)*scale,
		)
		srcRect := image.Rect(0, 0, dst.Dx(), dst.Dy()).
			Add(got.Min).
			Add(image.Pt((sub.Region.Min.X-subRead.Min.X)*scale, (sub.Region.Min.Y-subRead.Min.Y)*scale))
		draw.Copy(out, dst.Min, part, srcRect, draw.Src, nil)
	}
	return out, nil
}
