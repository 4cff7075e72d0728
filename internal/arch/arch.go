// Package arch abstracts the inference backends that execute
// super-resolution networks. Each architecture family knows how to load
// weight files of its kind and run padded tiles through them; the engine
// talks to families only through the interfaces here, so backends can be
// swapped per build or per test.
package arch

import (
	"context"
	"image"
	"sort"
	"strings"
	"sync"

	"upscaled/pkg/types"
)

// Handle is a loaded model ready to serve tiles. Handles are shared across
// concurrent jobs and must tolerate concurrent Infer calls; weights behind
// a handle are read-only.
type Handle interface {
	// ModelID returns the descriptor id the handle serves.
	ModelID() string
	// EstMemMB estimates resident memory for cache accounting.
	EstMemMB() int
	// Close releases device memory. A handle must not be closed while a
	// job still holds a reference; the cache enforces that.
	Close() error
}

// Family loads weights and executes tiles for one architecture family.
type Family interface {
	// Name returns the lowercase family identifier descriptors refer to.
	Name() string
	// Load brings the model's verified weight file into device memory.
	Load(ctx context.Context, desc types.Descriptor) (Handle, error)
	// Infer runs one padded tile through the loaded network. On success
	// the returned buffer dimensions are the input dimensions multiplied
	// by the model's native scale. A launch the device cannot hold fails
	// with ErrOutOfMemory.
	Infer(ctx context.Context, h Handle, src *image.RGBA) (*image.RGBA, error)
}

// Registry maps architecture names to their families. Lookups are
// case-insensitive because catalog metadata is not consistent about
// casing.
type Registry struct {
	mu       sync.RWMutex
	families map[string]Family
}

// NewRegistry builds a registry with the given families pre-registered.
func NewRegistry(families ...Family) *Registry {
	r := &Registry{families: make(map[string]Family, len(families))}
	for _, f := range families {
		r.families[strings.ToLower(f.Name())] = f
	}
	return r
}

// Register adds a family. Re-registering a name replaces the previous
// family, which tests rely on.
func (r *Registry) Register(f Family) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[strings.ToLower(f.Name())] = f
}

// Get returns the family for an architecture name.
func (r *Registry) Get(name string) (Family, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[strings.ToLower(name)]
	return f, ok
}

// Supports reports whether an architecture name has a registered family.
func (r *Registry) Supports(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered architecture names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.families))
	for name := range r.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
