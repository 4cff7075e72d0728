package tile

import (
	"image"
	"reflect"
	"testing"
)

func testThresholds() Thresholds {
	return Thresholds{X1: 2048, X2to3: 1024, X4to5: 768, X6to7: 640, X8: 512}
}

func mustPlanner(t *testing.T, th Thresholds, size, overlap int) *Planner {
	t.Helper()
	p, err := NewPlanner(th, size, overlap)
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return p
}

func TestNewPlannerRejectsBadGeometry(t *testing.T) {
	if _, err := NewPlanner(testThresholds(), 0, 0); err == nil {
		t.Fatalf("expected error for zero tile size")
	}
	if _, err := NewPlanner(testThresholds(), 512, -1); err == nil {
		t.Fatalf("expected error for negative overlap")
	}
	if _, err := NewPlanner(testThresholds(), 64, 32); err == nil {
		t.Fatalf("expected error for overlap that swallows the tile")
	}
}

func TestPlanSingleTileUnderThreshold(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	plan, err := p.Plan(600, 700, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.SingleTile() {
		t.Fatalf("expected a single tile, got %d", len(plan.Tiles))
	}
	if plan.Tiles[0].Region != image.Rect(0, 0, 600, 700) {
		t.Fatalf("single tile must cover the image, got %v", plan.Tiles[0].Region)
	}
	if plan.Tiles[0].Overlap != 0 {
		t.Fatalf("single tile needs no overlap, got %d", plan.Tiles[0].Overlap)
	}
	if plan.OutputBounds() != image.Rect(0, 0, 2400, 2800) {
		t.Fatalf("unexpected output bounds %v", plan.OutputBounds())
	}
}

func TestPlanUnlimitedThreshold(t *testing.T) {
	th := testThresholds()
	th.X1 = 0
	p := mustPlanner(t, th, 512, 32)
	plan, err := p.Plan(9000, 9000, 1)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !plan.SingleTile() {
		t.Fatalf("unlimited threshold must plan one tile, got %d", len(plan.Tiles))
	}
}

func TestPlanBothDimensionsChecked(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	// Width fits the 4x band threshold, height does not.
	plan, err := p.Plan(700, 900, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.SingleTile() {
		t.Fatalf("expected a grid when one dimension exceeds the threshold")
	}
}

func TestPlanExactPartition(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	const w, h = 1300, 900
	plan, err := p.Plan(w, h, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan.Tiles) != 3*2 {
		t.Fatalf("expected 6 tiles, got %d", len(plan.Tiles))
	}
	// Every source pixel must be owned by exactly one tile.
	owned := make([]int, w*h)
	for _, spec := range plan.Tiles {
		r := spec.Region
		if !r.In(plan.Bounds()) {
			t.Fatalf("region %v outside image bounds", r)
		}
		if r.Dx() > plan.TileSize || r.Dy() > plan.TileSize {
			t.Fatalf("region %v exceeds working tile size %d", r, plan.TileSize)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				owned[y*w+x]++
			}
		}
	}
	for i, n := range owned {
		if n != 1 {
			t.Fatalf("pixel (%d,%d) owned %d times", i%w, i/w, n)
		}
	}
	// Read rects stay inside the image and carry the margin on interior sides.
	interior := plan.Tiles[4] // middle column, second row
	read := interior.ReadRect(plan.Bounds())
	if read.Min.X != interior.Region.Min.X-32 || read.Max.Y != h {
		t.Fatalf("unexpected read rect %v for region %v", read, interior.Region)
	}
	corner := plan.Tiles[0]
	cread := corner.ReadRect(plan.Bounds())
	if cread.Min != image.Pt(0, 0) {
		t.Fatalf("corner read rect must clip at the origin, got %v", cread)
	}
	if cread.Max.X != corner.Region.Max.X+32 {
		t.Fatalf("corner read rect missing interior margin: %v", cread)
	}
}

func TestPlanDeterministic(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	a, err := p.Plan(1300, 900, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	b, err := p.Plan(1300, 900, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different plans")
	}
}

func TestPlanLargeGridGeometry(t *testing.T) {
	th := testThresholds()
	th.X4to5 = 2000
	p := mustPlanner(t, th, 512, 32)
	plan, err := p.Plan(5000, 3000, 4)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.SingleTile() {
		t.Fatalf("5000x3000 above threshold 2000 must fragment")
	}
	if len(plan.Tiles) != 10*6 {
		t.Fatalf("expected 60 tiles, got %d", len(plan.Tiles))
	}
	if plan.OutputBounds() != image.Rect(0, 0, 20000, 12000) {
		t.Fatalf("unexpected composed dimensions %v", plan.OutputBounds())
	}
	// The owned areas must add up to the full image without materializing it.
	area := 0
	for _, spec := range plan.Tiles {
		area += spec.Region.Dx() * spec.Region.Dy()
		if spec.Overlap != 32 {
			t.Fatalf("grid tile missing overlap margin: %+v", spec)
		}
	}
	if area != 5000*3000 {
		t.Fatalf("owned areas cover %d pixels, expected %d", area, 5000*3000)
	}
}

func TestPlanInvalidInputs(t *testing.T) {
	p := mustPlanner(t, testThresholds(), 512, 32)
	if _, err := p.Plan(0, 100, 4); err == nil {
		t.Fatalf("expected error for zero width")
	}
	if _, err := p.Plan(100, -1, 4); err == nil {
		t.Fatalf("expected error for negative height")
	}
	if _, err := p.Plan(100, 100, 0); err == nil {
		t.Fatalf("expected error for zero scale")
	}
}

func TestSubdivideNonOriginRegion(t *testing.T) {
	region := image.Rect(100, 50, 400, 290)
	specs := Subdivide(region, 128, 16)
	if len(specs) != 6 {
		t.Fatalf("got %d sub-tiles, want 6", len(specs))
	}
	area := 0
	for _, s := range specs {
		if !s.Region.In(region) {
			t.Fatalf("sub-tile %v leaks outside %v", s.Region, region)
		}
		if s.Overlap != 16 {
			t.Fatalf("sub-tile overlap = %d, want 16", s.Overlap)
		}
		area += s.Region.Dx() * s.Region.Dy()
	}
	if want := region.Dx() * region.Dy(); area != want {
		t.Fatalf("sub-tile area sum = %d, want %d", area, want)
	}
	if got := specs[0].Region; got != image.Rect(100, 50, 228, 178) {
		t.Fatalf("first sub-tile = %v", got)
	}
	if got := specs[len(specs)-1].Region; got != image.Rect(356, 178, 400, 290) {
		t.Fatalf("last sub-tile = %v", got)
	}
}
