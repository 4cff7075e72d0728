package arch

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/image/draw"

	"upscaled/pkg/types"
)

// ResamplerName is the architecture identifier of the built-in software
// family. It runs entirely on the CPU and exists so the full pipeline
// (catalog, fetch, tiling, budgeting) works on machines without an
// accelerator binding compiled in.
const ResamplerName = "resampler"

// kernels maps a descriptor tag to the interpolator it selects.
var kernels = map[string]draw.Interpolator{
	"nearest":         draw.NearestNeighbor,
	"bilinear":        draw.BiLinear,
	"approx-bilinear": draw.ApproxBiLinear,
	"catmullrom":      draw.CatmullRom,
}

// Resampler is the software fallback family. A configured capacity bounds
// the input pixels a single launch may carry, which gives the runner the
// same out-of-memory behavior a real device shows.
type Resampler struct {
	capacityPx int
}

// NewResampler builds the family. capacityPx caps input pixels per launch;
// 0 means unlimited.
func NewResampler(capacityPx int) *Resampler {
	return &Resampler{capacityPx: capacityPx}
}

func (r *Resampler) Name() string { return ResamplerName }

// Load checks the weight file and picks the interpolation kernel from the
// descriptor's tags (catmullrom when none matches). The file's size drives
// cache accounting the same way real weights would.
func (r *Resampler) Load(ctx context.Context, desc types.Descriptor) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if desc.LocalPath == "" {
		return nil, fmt.Errorf("model %s has no local weights", desc.ID)
	}
	fi, err := os.Stat(desc.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("stat weights for %s: %w", desc.ID, err)
	}
	estMB := int(fi.Size() / (1024 * 1024))
	if estMB <= 0 {
		estMB = 1
	}
	scale := desc.Scale
	if scale < 1 {
		scale = 1
	}
	return &resamplerHandle{
		id:     desc.ID,
		scale:  scale,
		estMB:  estMB,
		kernel: kernelFor(desc),
	}, nil
}

func (r *Resampler) Infer(ctx context.Context, h Handle, src *image.RGBA) (*image.RGBA, error) {
	rh, ok := h.(*resamplerHandle)
	if !ok {
		return nil, fmt.Errorf("handle %T does not belong to the resampler family", h)
	}
	if rh.closed.Load() {
		return nil, fmt.Errorf("model %s: handle is closed", rh.id)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := src.Bounds()
	if r.capacityPx > 0 && b.Dx()*b.Dy() > r.capacityPx {
		return nil, fmt.Errorf("launch %dx%d exceeds device capacity %dpx: %w",
			b.Dx(), b.Dy(), r.capacityPx, ErrOutOfMemory)
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*rh.scale, b.Dy()*rh.scale))
	rh.kernel.Scale(dst, dst.Rect, src, b, draw.Over, nil)
	return dst, nil
}

func kernelFor(desc types.Descriptor) draw.Interpolator {
	for _, tag := range desc.Tags {
		if k, ok := kernels[strings.ToLower(tag)]; ok {
			return k
		}
	}
	return draw.CatmullRom
}

type resamplerHandle struct {
	id     string
	scale  int
	estMB  int
	kernel draw.Interpolator
	closed atomic.Bool
}

func (h *resamplerHandle) ModelID() string { return h.id }
func (h *resamplerHandle) EstMemMB() int   { return h.estMB }

func (h *resamplerHandle) Close() error {
	h.closed.Store(true)
	return nil
}
