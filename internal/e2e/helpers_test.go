package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"upscaled/internal/config"
	"upscaled/internal/daemon"
	"upscaled/internal/httpapi"
	"upscaled/pkg/types"
)

// testConfig returns a validated configuration rooted in per-test temp
// directories.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Config{
		DataDir:   t.TempDir(),
		ModelsDir: t.TempDir(),
	}.FillDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

// newServer boots a daemon on cfg and serves its HTTP API in-process.
func newServer(t *testing.T, cfg config.Config) (*httptest.Server, *daemon.Daemon) {
	t.Helper()
	d, err := daemon.New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(d))
	t.Cleanup(srv.Close)
	return srv, d
}

// addLocalModel writes a throwaway weight file and registers it under id
// with the software resampler family.
func addLocalModel(t *testing.T, d *daemon.Daemon, id string, scale int) {
	t.Helper()
	path := filepath.Join(t.TempDir(), id+".pth")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x5a}, 2048), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	desc := types.Descriptor{
		ID:             id,
		Architecture:   "resampler",
		Scale:          scale,
		InputChannels:  3,
		OutputChannels: 3,
	}
	if err := d.AddLocalModel(desc, path); err != nil {
		t.Fatalf("add local model: %v", err)
	}
}

// pngBytes renders a small gradient and encodes it as PNG.
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: uint8((x + y) * 3), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPost(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// postUpscale uploads an image through the multipart endpoint with the
// given extra form fields.
func postUpscale(t *testing.T, url string, img []byte, fields map[string]string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", "input.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(img); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, &buf)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// fakeRemote serves the catalog document set plus the weight files it
// references from a single test server.
type fakeRemote struct {
	mu      sync.Mutex
	srv     *httptest.Server
	weights map[string][]byte
	models  map[string]map[string]any
}

func newFakeRemote(t *testing.T) *fakeRemote {
	t.Helper()
	f := &fakeRemote{
		weights: map[string][]byte{},
		models:  map[string]map[string]any{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

// addModel registers a catalog model whose weight payload the fake serves
// itself, with a matching checksum.
func (f *fakeRemote) addModel(id string, scale int, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file := id + ".pth"
	f.weights[file] = payload
	sum := sha256.Sum256(payload)
	f.models[id] = map[string]any{
		"name":           id,
		"architecture":   "resampler",
		"scale":          scale,
		"inputChannels":  3,
		"outputChannels": 3,
		"tags":           []string{"photo"},
		"resources": []map[string]any{{
			"platform": "pytorch",
			"type":     "pth",
			"size":     len(payload),
			"sha256":   hex.EncodeToString(sum[:]),
			"urls":     []string{f.srv.URL + "/files/" + file},
		}},
	}
}

func (f *fakeRemote) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path := strings.TrimPrefix(r.URL.Path, "/")
	if name, ok := strings.CutPrefix(path, "files/"); ok {
		b, ok := f.weights[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		_, _ = w.Write(b)
		return
	}
	var doc any
	switch path {
	case "models.json":
		etag := `W/"e2e-rev-1"`
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		doc = f.models
	case "architectures.json":
		doc = map[string]any{
			"resampler": map[string]any{"name": "Resampler", "input": "image", "compatiblePlatforms": []string{"pytorch"}},
		}
	case "tags.json":
		doc = map[string]any{"photo": map[string]any{"name": "Photography"}}
	case "tag-categories.json":
		doc = map[string]any{"subject": map[string]any{"name": "Subject", "tags": []string{"photo"}}}
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}
