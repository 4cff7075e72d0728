package catalog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"upscaled/internal/common/fsutil"
)

// quarantineDir is the subdirectory unrecognized weight files move to.
const quarantineDir = "unrecognized"

// weightExt is the weight file extension the audit considers.
const weightExt = ".pth"

// AuditReport summarizes one reconciliation pass over the weight directory.
type AuditReport struct {
	// Kept counts files already named and registered correctly.
	Kept int
	// Renamed lists files moved to their descriptor's canonical name.
	Renamed []string
	// Adopted lists model ids whose weights were found on disk and
	// registered as local.
	Adopted []string
	// Quarantined lists files moved to the unrecognized subdirectory.
	Quarantined []string
}

// Audit reconciles the weight directory against the store. Files whose
// checksum matches a known descriptor are renamed to the descriptor's
// canonical file name and recorded as that model's local weights; files
// matching nothing move to the quarantine subdirectory. Nothing is ever
// deleted. This is the explicit cleanup point for weight files orphaned by
// checksum updates or manual downloads.
func (s *Store) Audit() (AuditReport, error) {
	var report AuditReport
	dir := s.modelsDir
	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read models dir: %w", err)
	}
	quarantine := filepath.Join(dir, quarantineDir)
	if err := os.MkdirAll(quarantine, 0o755); err != nil {
		return report, fmt.Errorf("create quarantine dir: %w", err)
	}

	byChecksum := s.checksumIndex()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), weightExt) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		sum, err := fsutil.FileSHA256(p)
		if err != nil {
			return report, fmt.Errorf("hash %s: %w", e.Name(), err)
		}
		id, known := byChecksum[sum]
		if !known {
			dest := filepath.Join(quarantine, e.Name())
			if err := os.Rename(p, dest); err != nil {
				return report, fmt.Errorf("quarantine %s: %w", e.Name(), err)
			}
			log.Printf("catalog event=audit_quarantined file=%q", e.Name())
			report.Quarantined = append(report.Quarantined, e.Name())
			continue
		}

		d, err := s.Get(id)
		if err != nil {
			return report, err
		}
		want := d.FileName
		if want == "" {
			want = id + weightExt
		}
		if e.Name() != want {
			dest := filepath.Join(dir, want)
			if fsutil.PathExists(dest) {
				log.Printf("catalog event=audit_duplicate file=%q existing=%q", e.Name(), want)
				continue
			}
			if err := os.Rename(p, dest); err != nil {
				return report, fmt.Errorf("rename %s: %w", e.Name(), err)
			}
			log.Printf("catalog event=audit_renamed from=%q to=%q", e.Name(), want)
			report.Renamed = append(report.Renamed, want)
			p = dest
		}

		if d.LocalPath == p && !d.Unusable {
			report.Kept++
			continue
		}
		fi, err := os.Stat(p)
		if err != nil {
			return report, err
		}
		if err := s.SetLocal(id, p, sum, fi.Size()); err != nil {
			return report, err
		}
		log.Printf("catalog event=audit_adopted model=%q file=%q", id, want)
		report.Adopted = append(report.Adopted, id)
	}
	return report, nil
}

// checksumIndex maps known weight checksums to their model ids.
func (s *Store) checksumIndex() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := make(map[string]string, len(s.models))
	for id, d := range s.models {
		if d.Checksum != "" {
			idx[d.Checksum] = id
		}
	}
	return idx
}
