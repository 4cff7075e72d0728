package tile

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// Compose reassembles processed tiles into the final image. It requires
// exactly one result per planned spec, matched by region identity in any
// order. Each result buffer must cover the spec's padded read rect at the
// plan's scale; the scaled overlap margin is trimmed and only the owned
// region is written to the output. Any missing, duplicate or wrongly sized
// result fails with a plan violation instead of producing a corrupt image.
func Compose(plan Plan, results []Result) (*image.RGBA, error) {
	if len(results) != len(plan.Tiles) {
		return nil, ErrPlanViolation(fmt.Sprintf("expected %d results, got %d", len(plan.Tiles), len(results)))
	}
	bounds := plan.Bounds()
	byRegion := make(map[image.Rectangle]Result, len(results))
	for _, res := range results {
		if _, dup := byRegion[res.Spec.Region]; dup {
			return nil, ErrPlanViolation(fmt.Sprintf("duplicate result for region %v", res.Spec.Region))
		}
		byRegion[res.Spec.Region] = res
	}

	out := image.NewRGBA(plan.OutputBounds())
	for _, spec := range plan.Tiles {
		res, ok := byRegion[spec.Region]
		if !ok {
			return nil, ErrPlanViolation(fmt.Sprintf("missing result for region %v", spec.Region))
		}
		if res.Image == nil {
			return nil, ErrPlanViolation(fmt.Sprintf("nil buffer for region %v", spec.Region))
		}
		read := spec.ReadRect(bounds)
		wantW, wantH := read.Dx()*plan.Scale, read.Dy()*plan.Scale
		got := res.Image.Bounds()
		if got.Dx() != wantW || got.Dy() != wantH {
			return nil, ErrPlanViolation(fmt.Sprintf(
				"region %v: result is %dx%d, expected %dx%d",
				spec.Region, got.Dx(), got.Dy(), wantW, wantH))
		}
		// Destination is the owned region at scale; the source offset skips
		// the scaled margin that survived boundary clipping.
		dst := image.Rect(
			spec.Region.Min.X*plan.Scale,
			spec.Region.Min.Y*plan.Scale,
			spec.Region.Max.X*plan.Scale,
			spec.Region.Max.Y*plan.Scale,
		)
		src := image.Rect(0, 0, dst.Dx(), dst.Dy()).
			Add(got.Min).
			Add(image.Pt(
				(spec.Region.Min.X-read.Min.X)*plan.Scale,
				(spec.Region.Min.Y-read.Min.Y)*plan.Scale,
			))
		draw.Copy(out, dst.Min, res.Image, src, draw.Src, nil)
	}
	return out, nil
}
