// Package catalog maintains the local model descriptor store and keeps it
// synchronized with a remote catalog service. The store owns the registry
// file and the consistency between descriptors and the weight directory;
// the synchronizer computes and applies per-model plans against remote
// snapshots; the audit pass reconciles files that arrived on disk by hand.
package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"upscaled/internal/common/fsutil"
	"upscaled/pkg/types"
)

// registryFile is the on-disk YAML shape of the store.
type registryFile struct {
	Revision string                      `yaml:"revision,omitempty"`
	SyncedAt time.Time                   `yaml:"synced_at,omitempty"`
	Models   map[string]types.Descriptor `yaml:"models"`
}

// Store holds the known model descriptors. All mutations persist to the
// registry file atomically before they become visible to readers.
type Store struct {
	mu        sync.RWMutex
	path      string
	modelsDir string
	models    map[string]types.Descriptor
	revision  string
	syncedAt  time.Time
}

// Open loads the registry file at path, creating an empty store when the
// file does not exist yet. modelsDir is the weight directory descriptors
// refer to; it is created if missing.
func Open(path, modelsDir string) (*Store, error) {
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	modelsDir, err = fsutil.ExpandHome(modelsDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &Store{
		path:      path,
		modelsDir: modelsDir,
		models:    make(map[string]types.Descriptor),
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var reg registryFile
	if err := yaml.Unmarshal(b, &reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	if reg.Models != nil {
		s.models = reg.Models
	}
	s.revision = reg.Revision
	s.syncedAt = reg.SyncedAt
	return s, nil
}

// ModelsDir returns the weight directory the store manages.
func (s *Store) ModelsDir() string { return s.modelsDir }

// Revision returns the stored catalog revision marker and last sync time.
func (s *Store) Revision() (string, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision, s.syncedAt
}

// Len returns the number of known descriptors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// List returns all descriptors sorted by id.
func (s *Store) List() []types.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Descriptor, 0, len(s.models))
	for _, d := range s.models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the descriptor for id and re-checks its weight file against
// the disk before handing it out. A descriptor whose file vanished or
// changed size is marked unusable rather than trusted.
func (s *Store) Get(id string) (types.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.models[id]
	if !ok {
		return types.Descriptor{}, ErrModelNotFound(id)
	}
	if changed, reason := localDrift(d); changed {
		d.LocalPath = ""
		d.Unusable = true
		d.UnusableReason = reason
		s.models[id] = d
		log.Printf("catalog event=weights_drift model=%q reason=%q", id, reason)
		if err := s.persistLocked(); err != nil {
			return types.Descriptor{}, err
		}
	}
	return d, nil
}

// localDrift reports whether the descriptor's weight file no longer matches
// what the store recorded.
func localDrift(d types.Descriptor) (bool, string) {
	if d.LocalPath == "" {
		return false, ""
	}
	fi, err := os.Stat(d.LocalPath)
	if err != nil {
		return true, "weights missing from disk"
	}
	if d.SizeBytes > 0 && fi.Size() != d.SizeBytes {
		return true, "weights changed on disk"
	}
	return false, ""
}

// Put registers or replaces a descriptor and persists the store. Intended
// for user-defined models; synced models flow through ApplyPlan.
func (s *Store) Put(d types.Descriptor) error {
	if err := validateDescriptor(d); err != nil {
		return err
	}
	if !d.HasSource() && d.LocalPath == "" {
		d.Unusable = true
		d.UnusableReason = "no download source and no local weights"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.models[d.ID]
	s.models[d.ID] = d
	if err := s.persistLocked(); err != nil {
		if existed {
			s.models[d.ID] = prev
		} else {
			delete(s.models, d.ID)
		}
		return err
	}
	return nil
}

// SetLocal records a verified weight file for id: path, checksum and size
// as measured after verification. It clears the unusable mark since the
// model can serve again. The stale mark is left alone: staleness tracks
// presence in the remote catalog, not presence on disk.
func (s *Store) SetLocal(id, path, checksum string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.models[id]
	if !ok {
		return ErrModelNotFound(id)
	}
	prev := d
	d.LocalPath = path
	d.Checksum = checksum
	d.SizeBytes = size
	d.Unusable = false
	d.UnusableReason = ""
	s.models[id] = d
	if err := s.persistLocked(); err != nil {
		s.models[id] = prev
		return err
	}
	return nil
}

// MarkUnusable flags a descriptor with a reason and persists the store.
func (s *Store) MarkUnusable(id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.models[id]
	if !ok {
		return ErrModelNotFound(id)
	}
	prev := d
	d.Unusable = true
	d.UnusableReason = reason
	s.models[id] = d
	if err := s.persistLocked(); err != nil {
		s.models[id] = prev
		return err
	}
	return nil
}

// persistLocked writes the registry file atomically. Callers hold s.mu.
func (s *Store) persistLocked() error {
	reg := registryFile{
		Revision: s.revision,
		SyncedAt: s.syncedAt,
		Models:   s.models,
	}
	b, err := yaml.Marshal(reg)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

func validateDescriptor(d types.Descriptor) error {
	if d.ID == "" {
		return fmt.Errorf("descriptor id must not be empty")
	}
	if d.Scale < 1 {
		return fmt.Errorf("model %s: scale must be at least 1, got %d", d.ID, d.Scale)
	}
	if d.InputChannels < 1 || d.InputChannels > 4 {
		return fmt.Errorf("model %s: input channels must be in 1..4, got %d", d.ID, d.InputChannels)
	}
	if d.OutputChannels < 1 || d.OutputChannels > 4 {
		return fmt.Errorf("model %s: output channels must be in 1..4, got %d", d.ID, d.OutputChannels)
	}
	return nil
}
