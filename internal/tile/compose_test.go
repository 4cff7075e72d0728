package tile

import (
	"image"
	"image/color"
	"testing"
)

// patternImage fills an image with a position-derived color so any
// misplaced pixel after composition is detectable.
func patternImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x % 251),
				G: uint8(y % 241),
				B: uint8((x + y) % 239),
				A: 255,
			})
		}
	}
	return img
}

// replicate simulates a scale-factor network by pixel replication. Applied
// to a padded tile it yields exactly the pixels a whole-image run would
// produce for the same area, which makes seam checks exact.
func replicate(src *image.RGBA, scale int) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	for y := 0; y < b.Dy()*scale; y++ {
		for x := 0; x < b.Dx()*scale; x++ {
			out.SetRGBA(x, y, src.RGBAAt(b.Min.X+x/scale, b.Min.Y+y/scale))
		}
	}
	return out
}

// runPlan produces one result per spec the way the inference runner would:
// read the padded rect, process it, keep margins attached.
func runPlan(t *testing.T, src *image.RGBA, plan Plan) []Result {
	t.Helper()
	results := make([]Result, 0, len(plan.Tiles))
	for _, spec := range plan.Tiles {
		read := spec.ReadRect(plan.Bounds())
		sub := src.SubImage(read).(*image.RGBA)
		results = append(results, Result{Spec: spec, Image: replicate(sub, plan.Scale)})
	}
	return results
}

func composePlan(t *testing.T, w, h, scale, size, overlap int) (*image.RGBA, *image.RGBA, Plan) {
	t.Helper()
	th := Thresholds{X1: 1, X2to3: 1, X4to5: 1, X6to7: 1, X8: 1} // force grids
	p := mustPlanner(t, th, size, overlap)
	plan, err := p.Plan(w, h, scale)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	src := patternImage(w, h)
	out, err := Compose(plan, runPlan(t, src, plan))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	return out, src, plan
}

func TestComposeRoundTrip(t *testing.T) {
	const w, h, scale = 130, 77, 3
	out, src, plan := composePlan(t, w, h, scale, 48, 8)
	if out.Bounds() != image.Rect(0, 0, w*scale, h*scale) {
		t.Fatalf("composed bounds %v, expected %dx%d", out.Bounds(), w*scale, h*scale)
	}
	// Every output pixel, including those at tile seams, must match the
	// whole-image reference run.
	ref := replicate(src, scale)
	for y := 0; y < h*scale; y++ {
		for x := 0; x < w*scale; x++ {
			if out.RGBAAt(x, y) != ref.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs from reference: %v vs %v (tile size %d)",
					x, y, out.RGBAAt(x, y), ref.RGBAAt(x, y), plan.TileSize)
			}
		}
	}
}

func TestComposeSingleTile(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	plan, err := p.Plan(100, 60, 2)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	src := patternImage(100, 60)
	out, err := Compose(plan, runPlan(t, src, plan))
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if out.Bounds() != image.Rect(0, 0, 200, 120) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
}

func TestComposeUnorderedResults(t *testing.T) {
	const w, h, scale = 100, 90, 2
	th := Thresholds{X2to3: 1}
	p := mustPlanner(t, th, 48, 8)
	plan, err := p.Plan(w, h, scale)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	src := patternImage(w, h)
	results := runPlan(t, src, plan)
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	out, err := Compose(plan, results)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	ref := replicate(src, scale)
	for y := 0; y < h*scale; y += 7 {
		for x := 0; x < w*scale; x += 7 {
			if out.RGBAAt(x, y) != ref.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d) differs after unordered compose", x, y)
			}
		}
	}
}

func TestComposeMissingResult(t *testing.T) {
	_, src, plan := composePlan(t, 100, 90, 2, 48, 8)
	results := runPlan(t, src, plan)
	_, err := Compose(plan, results[1:])
	if err == nil || !IsPlanViolation(err) {
		t.Fatalf("expected plan violation for missing result, got %v", err)
	}
}

func TestComposeDuplicateResult(t *testing.T) {
	_, src, plan := composePlan(t, 100, 90, 2, 48, 8)
	results := runPlan(t, src, plan)
	results[1] = results[0]
	_, err := Compose(plan, results)
	if err == nil || !IsPlanViolation(err) {
		t.Fatalf("expected plan violation for duplicate result, got %v", err)
	}
}

func TestComposeWrongDimensions(t *testing.T) {
	_, src, plan := composePlan(t, 100, 90, 2, 48, 8)
	results := runPlan(t, src, plan)
	results[0].Image = image.NewRGBA(image.Rect(0, 0, 10, 10))
	_, err := Compose(plan, results)
	if err == nil || !IsPlanViolation(err) {
		t.Fatalf("expected plan violation for wrong dimensions, got %v", err)
	}
}

func TestComposeNilBuffer(t *testing.T) {
	_, src, plan := composePlan(t, 100, 90, 2, 48, 8)
	results := runPlan(t, src, plan)
	results[2].Image = nil
	_, err := Compose(plan, results)
	if err == nil || !IsPlanViolation(err) {
		t.Fatalf("expected plan violation for nil buffer, got %v", err)
	}
}

func TestIsPlanViolation(t *testing.T) {
	if IsPlanViolation(nil) {
		t.Fatalf("nil is not a plan violation")
	}
	if !IsPlanViolation(ErrPlanViolation("x")) {
		t.Fatalf("constructor result must match predicate")
	}
}
