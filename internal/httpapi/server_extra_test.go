package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"upscaled/pkg/types"
)

// blockService blocks in Upscale until the context is done; used to exercise
// the timeout path.
type blockService struct{ mockService }

func (b *blockService) Upscale(ctx context.Context, params types.UpscaleParams, data []byte, w io.Writer) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestUpscaleLogsWithZerologInfo(t *testing.T) {
	// Install a zerolog logger to exercise the zlog != nil branches
	SetLogger(zerolog.New(io.Discard))
	defer func() { zlog = nil }()

	svc := &mockService{out: []byte("png")}
	h := NewMux(svc)
	req := upscaleRequest(t, []byte("img"), map[string]string{"model": "m"})
	req.URL.RawQuery = "log=info"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with info logging, got %d", rec.Code)
	}
}

func TestCORSAndSecurityHeaders(t *testing.T) {
	// Enable CORS temporarily
	SetCORSOptions(true, []string{"*"}, []string{"GET", "POST", "OPTIONS"}, []string{"Content-Type"})
	defer SetCORSOptions(false, nil, nil, nil)

	svc := &mockService{ready: true}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodGet, "/models", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected X-Content-Type-Options=nosniff, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got == "" {
		t.Fatalf("expected CORS header Access-Control-Allow-Origin to be set, got empty")
	}
}

func TestUpscaleTimeoutReturns500(t *testing.T) {
	defer SetUpscaleTimeoutSeconds(0)
	SetUpscaleTimeoutSeconds(1)

	svc := &blockService{}
	h := NewMux(svc)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, upscaleRequest(t, []byte("img"), map[string]string{"model": "m"}))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 on timeout, got %d", rec.Code)
	}
}

func TestUpscaleContentTypeCaseInsensitive(t *testing.T) {
	svc := &mockService{out: []byte("png")}
	h := NewMux(svc)
	rec := httptest.NewRecorder()
	req := upscaleRequest(t, []byte("img"), nil)
	ct := req.Header.Get("Content-Type")
	req.Header.Set("Content-Type", "Multipart/Form-Data"+ct[len("multipart/form-data"):])
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with mixed-case content-type, got %d", rec.Code)
	}
}

func TestFetchStreamsWithDebugLogging(t *testing.T) {
	svc := &mockService{progress: []types.FetchProgress{{ModelID: "m1", Status: "done"}}}
	h := NewMux(svc)
	req := httptest.NewRequest(http.MethodPost, "/models/m1/fetch?log=debug", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with debug logging, got %d", rec.Code)
	}
	// requestLogLevel path LevelDebug exercises loggingLineWriter attachment;
	// functional assertion done in logging_test.go
}
