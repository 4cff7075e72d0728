// Package fetch downloads model weight files. Transfers resume from a
// sidecar-verified partial file, are deduplicated per model id and end
// with a full checksum verification before the registry learns the path.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"upscaled/internal/catalog"
	"upscaled/internal/common/fsutil"
	"upscaled/pkg/types"
)

const (
	partialSuffix = ".partial"
	stateSuffix   = ".partial.state"
	chunkBytes    = 1 << 20
)

// ProgressFunc receives transfer progress. Callbacks may arrive from
// several goroutines when attached to a shared transfer.
type ProgressFunc func(types.FetchProgress)

func emit(fn ProgressFunc, p types.FetchProgress) {
	if fn != nil {
		fn(p)
	}
}

// transfer is the shared state of one in-flight download.
type transfer struct {
	total     atomic.Int64
	completed atomic.Int64
	done      chan struct{}
	path      string
	err       error
}

// Fetcher downloads weight files into the store's models directory.
type Fetcher struct {
	store    *catalog.Store
	client   *http.Client
	limit    int
	inflight sync.Map // model id -> *transfer
}

// New returns a Fetcher writing into store's models directory. A nil
// client gets a default without a global timeout: weight files are large
// and cancellation comes from the request context instead. limit bounds
// concurrent transfers in FetchAll.
func New(store *catalog.Store, client *http.Client, limit int) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if limit < 1 {
		limit = 1
	}
	return &Fetcher{store: store, client: client, limit: limit}
}

// Fetch ensures the weights for id are on disk and verified, returning
// the final path. Progress is reported through fn when non-nil. At most
// one transfer per model id is in flight: concurrent callers attach to
// the running transfer and share its outcome.
func (f *Fetcher) Fetch(ctx context.Context, id string, fn ProgressFunc) (string, error) {
	desc, err := f.store.Get(id)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(f.store.ModelsDir(), weightFileName(desc))

	if localMatch(dest, desc.Checksum) {
		fi, err := os.Stat(dest)
		if err != nil {
			return "", err
		}
		if desc.LocalPath != dest || desc.Unusable {
			if err := f.store.SetLocal(id, dest, desc.Checksum, fi.Size()); err != nil {
				return "", err
			}
			log.Printf("fetch event=adopted model=%q path=%q", id, dest)
		}
		emit(fn, types.FetchProgress{ModelID: id, Status: "done", Total: fi.Size(), Completed: fi.Size()})
		return dest, nil
	}
	if !desc.HasSource() {
		return "", ErrUnsupportedSource(id)
	}

	t := &transfer{done: make(chan struct{})}
	if prev, loaded := f.inflight.LoadOrStore(id, t); loaded {
		return f.attach(ctx, id, prev.(*transfer), fn)
	}
	t.path, t.err = f.download(ctx, desc, dest, t, fn)
	f.inflight.Delete(id)
	close(t.done)
	return t.path, t.err
}

// FetchAll downloads the given models with at most the configured number
// of transfers at a time. Every id is attempted; the first failure is
// returned after the rest finish.
func (f *Fetcher) FetchAll(ctx context.Context, ids []string, fn ProgressFunc) error {
	var g errgroup.Group
	g.SetLimit(f.limit)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := f.Fetch(ctx, id, fn); err != nil {
				log.Printf("fetch event=failed model=%q err=%v", id, err)
				return fmt.Errorf("fetch %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// attach follows a transfer started by another caller.
func (f *Fetcher) attach(ctx context.Context, id string, t *transfer, fn ProgressFunc) (string, error) {
	log.Printf("fetch event=attach model=%q", id)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.done:
			if t.err == nil {
				emit(fn, types.FetchProgress{ModelID: id, Status: "done", Total: t.total.Load(), Completed: t.completed.Load()})
			}
			return t.path, t.err
		case <-tick.C:
			emit(fn, types.FetchProgress{ModelID: id, Status: "downloading", Total: t.total.Load(), Completed: t.completed.Load()})
		}
	}
}

func (f *Fetcher) download(ctx context.Context, desc types.Descriptor, dest string, t *transfer, fn ProgressFunc) (string, error) {
	partial := dest + partialSuffix
	state := dest + stateSuffix

	offset, h, err := resumePoint(partial, state)
	if err != nil {
		return "", err
	}
	if offset > 0 {
		resumesTotal.Inc()
		log.Printf("fetch event=resume model=%q offset=%d", desc.ID, offset)
		emit(fn, types.FetchProgress{ModelID: desc.ID, Status: "resuming", Completed: offset})
	}

	resp, offset, h, err := f.open(ctx, desc, partial, state, offset, h)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var total int64
	if resp.ContentLength >= 0 {
		total = offset + resp.ContentLength
	}
	t.total.Store(total)
	t.completed.Store(offset)

	out, err := os.OpenFile(partial, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open partial: %w", err)
	}
	defer out.Close()

	written := offset
	for {
		if ctx.Err() != nil {
			// record the flush point so the next attempt can resume
			if err := writeState(state, h, written); err != nil {
				log.Printf("fetch event=state_write_failed model=%q err=%v", desc.ID, err)
			}
			return "", ctx.Err()
		}
		n, cerr := io.CopyN(io.MultiWriter(out, h), resp.Body, chunkBytes)
		if n > 0 {
			written += n
			t.completed.Store(written)
			downloadBytesTotal.Add(float64(n))
			if err := writeState(state, h, written); err != nil {
				return "", fmt.Errorf("write partial state: %w", err)
			}
			emit(fn, types.FetchProgress{ModelID: desc.ID, Status: "downloading", Total: total, Completed: written})
		}
		if errors.Is(cerr, io.EOF) {
			break
		}
		if cerr != nil {
			return "", fmt.Errorf("download %s: %w", desc.ID, cerr)
		}
	}
	if err := out.Close(); err != nil {
		return "", err
	}

	emit(fn, types.FetchProgress{ModelID: desc.ID, Status: "verifying", Total: total, Completed: written})
	sum := hex.EncodeToString(h.Sum(nil))
	if !strings.EqualFold(sum, desc.Checksum) {
		discardPartial(partial, state)
		downloadsTotal.WithLabelValues("checksum_mismatch").Inc()
		log.Printf("fetch event=checksum_mismatch model=%q want=%q got=%q", desc.ID, desc.Checksum, sum)
		return "", ErrChecksumMismatch(desc.ID, desc.Checksum, sum)
	}
	if err := os.Rename(partial, dest); err != nil {
		return "", fmt.Errorf("finalize %s: %w", desc.ID, err)
	}
	os.Remove(state)
	if err := f.store.SetLocal(desc.ID, dest, desc.Checksum, written); err != nil {
		return "", err
	}
	downloadsTotal.WithLabelValues("complete").Inc()
	log.Printf("fetch event=complete model=%q bytes=%d", desc.ID, written)
	emit(fn, types.FetchProgress{ModelID: desc.ID, Status: "done", Total: written, Completed: written})
	return dest, nil
}

// open issues the download request, falling back to a transfer from zero
// when the server rejects or ignores the resume offset.
func (f *Fetcher) open(ctx context.Context, desc types.Descriptor, partial, state string, offset int64, h hash.Hash) (*http.Response, int64, hash.Hash, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.SourceURL, nil)
		if err != nil {
			return nil, 0, nil, err
		}
		if offset > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("download %s: %w", desc.ID, err)
		}
		switch {
		case offset > 0 && resp.StatusCode == http.StatusPartialContent:
			return resp, offset, h, nil
		case offset == 0 && resp.StatusCode == http.StatusOK:
			return resp, 0, h, nil
		case offset > 0 && resp.StatusCode == http.StatusOK:
			// range ignored, the body is the whole file
			log.Printf("fetch event=restart model=%q reason=%q", desc.ID, "no range support")
			if err := os.Truncate(partial, 0); err != nil && !errors.Is(err, os.ErrNotExist) {
				resp.Body.Close()
				return nil, 0, nil, err
			}
			os.Remove(state)
			return resp, 0, sha256.New(), nil
		case offset > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && attempt == 0:
			resp.Body.Close()
			log.Printf("fetch event=restart model=%q reason=%q", desc.ID, "range not satisfiable")
			discardPartial(partial, state)
			offset, h = 0, sha256.New()
		default:
			resp.Body.Close()
			return nil, 0, nil, fmt.Errorf("weights server responded %s for %s", resp.Status, desc.ID)
		}
	}
}

// partialState is the sidecar written next to a partial download. Bytes
// counts only flushed content; the hash covers exactly those bytes.
type partialState struct {
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// resumePoint validates an existing partial against its sidecar and
// returns the offset to resume from with a hash primed over that prefix.
// A partial that fails verification is discarded: stale bytes are never
// appended to.
func resumePoint(partial, state string) (int64, hash.Hash, error) {
	h := sha256.New()
	fi, err := os.Stat(partial)
	if errors.Is(err, os.ErrNotExist) {
		return 0, h, nil
	}
	if err != nil {
		return 0, nil, err
	}
	st, err := readState(state)
	if err != nil || st.Bytes <= 0 || fi.Size() < st.Bytes {
		discardPartial(partial, state)
		log.Printf("fetch event=restart partial=%q reason=%q", filepath.Base(partial), "unusable sidecar")
		return 0, sha256.New(), nil
	}
	if fi.Size() > st.Bytes {
		// bytes past the last recorded flush are unaccounted for
		if err := os.Truncate(partial, st.Bytes); err != nil {
			return 0, nil, err
		}
	}
	pf, err := os.Open(partial)
	if err != nil {
		return 0, nil, err
	}
	defer pf.Close()
	if _, err := io.Copy(h, pf); err != nil {
		return 0, nil, err
	}
	if !strings.EqualFold(hex.EncodeToString(h.Sum(nil)), st.SHA256) {
		discardPartial(partial, state)
		log.Printf("fetch event=restart partial=%q reason=%q", filepath.Base(partial), "prefix verification failed")
		return 0, sha256.New(), nil
	}
	return st.Bytes, h, nil
}

func readState(path string) (partialState, error) {
	var st partialState
	raw, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		return st, err
	}
	return st, nil
}

func writeState(path string, h hash.Hash, n int64) error {
	raw, err := json.Marshal(partialState{SHA256: hex.EncodeToString(h.Sum(nil)), Bytes: n})
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(path, raw, 0o644)
}

func discardPartial(partial, state string) {
	os.Remove(partial)
	os.Remove(state)
}

func weightFileName(d types.Descriptor) string {
	if d.FileName != "" {
		return d.FileName
	}
	return d.ID + ".pth"
}

// localMatch reports whether path already holds content matching the
// expected checksum.
func localMatch(path, want string) bool {
	if want == "" {
		return false
	}
	sum, err := fsutil.FileSHA256(path)
	if err != nil {
		return false
	}
	return strings.EqualFold(sum, want)
}
