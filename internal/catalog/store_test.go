package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"upscaled/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "registry.yaml"), filepath.Join(dir, "models"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func testDescriptor(id string) types.Descriptor {
	return types.Descriptor{
		ID:             id,
		Name:           "Model " + id,
		Architecture:   "esrgan",
		Scale:          4,
		InputChannels:  3,
		OutputChannels: 3,
		FileName:       id + ".pth",
		Checksum:       "c0ffee",
		SourceURL:      "https://models.test/" + id + ".pth",
	}
}

func TestStoreOpenEmpty(t *testing.T) {
	s := newTestStore(t)
	if s.Len() != 0 {
		t.Fatalf("expected empty store, got %d models", s.Len())
	}
	rev, at := s.Revision()
	if rev != "" || !at.IsZero() {
		t.Fatalf("expected zero revision state, got %q %v", rev, at)
	}
}

func TestStorePutPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.yaml")
	modelsDir := filepath.Join(dir, "models")
	s, err := Open(regPath, modelsDir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	d := testDescriptor("4x-ultra")
	d.UserDefined = true
	if err := s.Put(d); err != nil {
		t.Fatalf("put: %v", err)
	}

	re, err := Open(regPath, modelsDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := re.Get("4x-ultra")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Name != d.Name || got.Checksum != d.Checksum || !got.UserDefined {
		t.Fatalf("descriptor did not survive reopen: %+v", got)
	}
}

func TestStorePutValidation(t *testing.T) {
	s := newTestStore(t)
	cases := []struct {
		name   string
		mutate func(*types.Descriptor)
	}{
		{"empty id", func(d *types.Descriptor) { d.ID = "" }},
		{"zero scale", func(d *types.Descriptor) { d.Scale = 0 }},
		{"channels too high", func(d *types.Descriptor) { d.InputChannels = 5 }},
		{"channels too low", func(d *types.Descriptor) { d.OutputChannels = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := testDescriptor("bad")
			tc.mutate(&d)
			if err := s.Put(d); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestStorePutFlagsSourcelessUnusable(t *testing.T) {
	s := newTestStore(t)
	d := testDescriptor("orphan")
	d.SourceURL = ""
	d.LocalPath = ""
	if err := s.Put(d); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get("orphan")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Unusable || got.UnusableReason == "" {
		t.Fatalf("descriptor without source or weights must be unusable: %+v", got)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("nope")
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestStoreGetDetectsDrift(t *testing.T) {
	s := newTestStore(t)
	weights := filepath.Join(s.ModelsDir(), "4x-ultra.pth")
	if err := os.WriteFile(weights, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	d := testDescriptor("4x-ultra")
	if err := s.Put(d); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.SetLocal("4x-ultra", weights, "c0ffee", int64(len("weights"))); err != nil {
		t.Fatalf("set local: %v", err)
	}
	got, err := s.Get("4x-ultra")
	if err != nil || !got.Ready() {
		t.Fatalf("expected ready model, got %+v err=%v", got, err)
	}

	// A manual removal must be noticed on next access, not trusted.
	if err := os.Remove(weights); err != nil {
		t.Fatalf("remove weights: %v", err)
	}
	got, err = s.Get("4x-ultra")
	if err != nil {
		t.Fatalf("get after removal: %v", err)
	}
	if got.Ready() || !got.Unusable || got.LocalPath != "" {
		t.Fatalf("drifted model must be unusable: %+v", got)
	}
}

func TestStoreGetDetectsSizeChange(t *testing.T) {
	s := newTestStore(t)
	weights := filepath.Join(s.ModelsDir(), "4x-ultra.pth")
	if err := os.WriteFile(weights, []byte("weights"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	if err := s.Put(testDescriptor("4x-ultra")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.SetLocal("4x-ultra", weights, "c0ffee", int64(len("weights"))); err != nil {
		t.Fatalf("set local: %v", err)
	}
	if err := os.WriteFile(weights, []byte("these are different weights"), 0o644); err != nil {
		t.Fatalf("overwrite weights: %v", err)
	}
	got, err := s.Get("4x-ultra")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Unusable {
		t.Fatalf("size change must mark the model unusable: %+v", got)
	}
}

func TestStoreSetLocalUnknownModel(t *testing.T) {
	s := newTestStore(t)
	err := s.SetLocal("ghost", "/tmp/x", "abc", 1)
	if !IsModelNotFound(err) {
		t.Fatalf("expected model-not-found, got %v", err)
	}
}

func TestStoreListSorted(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"zeta", "alpha", "mid"} {
		if err := s.Put(testDescriptor(id)); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	list := s.List()
	if len(list) != 3 || list[0].ID != "alpha" || list[1].ID != "mid" || list[2].ID != "zeta" {
		t.Fatalf("unexpected order: %v", list)
	}
}
