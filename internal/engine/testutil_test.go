package engine

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/image/draw"

	"upscaled/internal/arch"
	"upscaled/internal/catalog"
	"upscaled/internal/tile"
	"upscaled/pkg/types"
)

// newEngineStore opens a catalog store rooted in a temp dir.
func newEngineStore(t *testing.T) *catalog.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := catalog.Open(filepath.Join(dir, "registry.yaml"), filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

// createWeights creates a file of approximately sizeMB megabytes and
// returns its path.
func createWeights(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	if sizeMB <= 0 {
		sizeMB = 1
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create weights: %v", err)
	}
	defer f.Close()
	block := make([]byte, 1024*1024)
	for i := 0; i < sizeMB; i++ {
		if _, err := f.Write(block); err != nil {
			t.Fatalf("write weights: %v", err)
		}
	}
	return p
}

// seedReadyModel registers a model with verified local weights of
// approximately sizeMB megabytes.
func seedReadyModel(t *testing.T, s *catalog.Store, id, architecture string, scale, sizeMB int, tags ...string) {
	t.Helper()
	if err := s.Put(types.Descriptor{
		ID:             id,
		Name:           id,
		Architecture:   architecture,
		Scale:          scale,
		InputChannels:  3,
		OutputChannels: 3,
		FileName:       id + ".pth",
		Tags:           tags,
	}); err != nil {
		t.Fatalf("put %s: %v", id, err)
	}
	path := createWeights(t, s.ModelsDir(), id+".pth", sizeMB)
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat weights: %v", err)
	}
	if err := s.SetLocal(id, path, "c0ffee", fi.Size()); err != nil {
		t.Fatalf("set local %s: %v", id, err)
	}
}

// newTestEngine builds an engine around the store and one family, with
// permissive tile geometry unless the test overrides it.
func newTestEngine(t *testing.T, store *catalog.Store, fam arch.Family, cfg Config) *Engine {
	t.Helper()
	cfg.Store = store
	cfg.Families = arch.NewRegistry(fam)
	if cfg.TileSize == 0 {
		cfg.TileSize = 48
	}
	if cfg.TileOverlap == 0 {
		cfg.TileOverlap = 8
	}
	if cfg.TileFloor == 0 {
		cfg.TileFloor = 8
	}
	if cfg.Thresholds == (tile.Thresholds{}) {
		cfg.Thresholds = tile.Thresholds{X1: 2048, X2to3: 2048, X4to5: 2048, X6to7: 2048, X8: 2048}
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

// fakeFamily is an in-memory family for tests that need load/close hooks
// the software resampler does not expose.
type fakeFamily struct {
	name     string
	loadErr  error
	loadGate chan struct{} // when non-nil, Load blocks until closed
	loads    atomic.Int32
	closes   atomic.Int32
}

func (f *fakeFamily) Name() string { return f.name }

func (f *fakeFamily) Load(ctx context.Context, desc types.Descriptor) (arch.Handle, error) {
	f.loads.Add(1)
	if f.loadGate != nil {
		select {
		case <-f.loadGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &fakeHandle{id: desc.ID, scale: desc.Scale, family: f}, nil
}

func (f *fakeFamily) Infer(ctx context.Context, h arch.Handle, src *image.RGBA) (*image.RGBA, error) {
	fh, ok := h.(*fakeHandle)
	if !ok {
		return nil, fmt.Errorf("foreign handle %T", h)
	}
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*fh.scale, b.Dy()*fh.scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), src, b, draw.Src, nil)
	return out, nil
}

type fakeHandle struct {
	id     string
	scale  int
	family *fakeFamily
}

func (h *fakeHandle) ModelID() string { return h.id }
func (h *fakeHandle) EstMemMB() int   { return 1 }
func (h *fakeHandle) Close() error {
	h.family.closes.Add(1)
	return nil
}

// testImage builds a deterministic pixel pattern so tiled results can be
// compared against whole-image results exactly.
func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x*7 + y),
				G: uint8(y*5 + x),
				B: uint8(x*3 + y*11),
				A: 255,
			})
		}
	}
	return img
}

// nearestUpscale scales the whole image in one pass with the same kernel
// the nearest-tagged resampler uses.
func nearestUpscale(src *image.RGBA, scale int) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(out, out.Bounds(), src, b, draw.Src, nil)
	return out
}

// rgbaPixels re-anchors any image at the origin as RGBA for comparison.
func rgbaPixels(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Copy(out, image.Point{}, img, b, draw.Src, nil)
	return out
}

// requireSameImage fails at the first differing pixel.
func requireSameImage(t *testing.T, want, got *image.RGBA) {
	t.Helper()
	if want.Bounds() != got.Bounds() {
		t.Fatalf("bounds differ: want %v, got %v", want.Bounds(), got.Bounds())
	}
	b := want.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if want.RGBAAt(x, y) != got.RGBAAt(x, y) {
				t.Fatalf("pixel (%d,%d): want %v, got %v", x, y, want.RGBAAt(x, y), got.RGBAAt(x, y))
			}
		}
	}
}
