// Package httpapi exposes the upscale daemon over HTTP: catalog listing
// and sync, weight fetching with NDJSON progress, model load/unload, the
// upscale endpoint itself and the usual health and metrics surfaces.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"upscaled/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelEntry
	Status() types.StatusResponse
	Upscale(ctx context.Context, params types.UpscaleParams, data []byte, w io.Writer) error
	Sync(ctx context.Context) (types.SyncPlan, error)
	Fetch(ctx context.Context, id string, progress func(types.FetchProgress)) error
	Load(ctx context.Context, id string) error
	Unload(id string) error
	Ready() bool
}

// formMemoryBytes bounds how much of a multipart body is kept in memory
// before spilling to temp files.
const formMemoryBytes = 32 << 20

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Post("/upscale", handleUpscale(svc))
	r.Post("/sync", handleSync(svc))
	r.Post("/models/{id}/fetch", handleFetch(svc))
	r.Post("/models/{id}/load", handleLoad(svc))
	r.Post("/models/{id}/unload", handleUnload(svc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// countingWriter tracks whether any response bytes were committed so error
// handling knows if a JSON payload can still be written.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func handleUpscale(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "multipart/form-data") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "Content-Type must be multipart/form-data")
			return
		}
		// Limit body size (configurable, default 64MiB)
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseMultipartForm(formMemoryBytes); err != nil {
			// MaxBytesReader errors may arrive wrapped or not depending on
			// the multipart internals, so the declared length is checked too.
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) || r.ContentLength > maxBodyBytes {
				writeJSONError(w, http.StatusRequestEntityTooLarge, "image_too_large",
					fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
				return
			}
			writeJSONError(w, http.StatusBadRequest, "bad_multipart", "malformed multipart form")
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, _, err := r.FormFile("image")
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "missing_image", "multipart field \"image\" is required")
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "bad_multipart", "reading image part failed")
			return
		}

		params := types.UpscaleParams{Model: strings.TrimSpace(r.FormValue("model"))}
		if v := r.FormValue("scale"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeJSONError(w, http.StatusBadRequest, "bad_scale", fmt.Sprintf("invalid scale %q", v))
				return
			}
			params.Scale = n
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Str("path", r.URL.Path).Str("model", params.Model).Int("bytes", len(data))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("upscale start")
			} else {
				log.Printf("upscale start path=%s model=%s bytes=%d", r.URL.Path, params.Model, len(data))
			}
		}

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if upscaleTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, time.Duration(upscaleTimeout)*time.Second)
			defer tcancel()
		}

		// The engine writes nothing until the full output is assembled, so on
		// error the JSON payload below still lands on a clean response.
		w.Header().Set("Content-Type", "image/png")
		cw := &countingWriter{w: w}
		if err := svc.Upscale(ctx, params, data, cw); err != nil {
			// If context was canceled (client disconnect), just return.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if cw.n > 0 {
				// Headers and partial image already sent; dropping the
				// connection is the only honest signal left.
				if lvl >= LevelError {
					if zlog != nil {
						z := zlog.Error().Dur("dur", time.Since(start))
						if rid := middleware.GetReqID(r.Context()); rid != "" {
							z = z.Str("request_id", rid)
						}
						z.Err(err).Msg("upscale aborted mid-stream")
					} else {
						log.Printf("upscale aborted mid-stream dur=%s err=%v", time.Since(start), err)
					}
				}
				panic(http.ErrAbortHandler)
			}
			status, reason := writeServiceError(w, err)
			if status == http.StatusTooManyRequests {
				IncrementBackpressure("upscale")
			}
			if lvl >= LevelError {
				if zlog != nil {
					z := zlog.Error().Int("status", status).Str("reason", reason).Dur("dur", time.Since(start))
					if rid := middleware.GetReqID(r.Context()); rid != "" {
						z = z.Str("request_id", rid)
					}
					z.Err(err).Msg("upscale end")
				} else {
					log.Printf("upscale end status=%d reason=%s dur=%s err=%v", status, reason, time.Since(start), err)
				}
			}
			return
		}
		if lvl >= LevelInfo {
			if zlog != nil {
				z := zlog.Info().Int("status", 200).Dur("dur", time.Since(start))
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("upscale end")
			} else {
				log.Printf("upscale end status=200 dur=%s", time.Since(start))
			}
		}
	}
}

func handleSync(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		plan, err := svc.Sync(ctx)
		if err != nil {
			status, reason := writeServiceError(w, err)
			if zlog != nil {
				zlog.Error().Int("status", status).Str("reason", reason).Dur("dur", time.Since(start)).Err(err).Msg("sync end")
			} else {
				log.Printf("sync end status=%d reason=%s dur=%s err=%v", status, reason, time.Since(start), err)
			}
			return
		}
		detail := r.URL.Query().Get("detail")
		writeJSON(w, http.StatusOK, plan.Summary(detail == "1" || detail == "true"))
	}
}

func handleFetch(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		lvl := requestLogLevel(r)

		var flush func()
		if f, ok := w.(http.Flusher); ok {
			flush = f.Flush
		}
		// Optional logging of NDJSON progress lines
		out := io.Writer(w)
		if lvl >= LevelDebug {
			out = io.MultiWriter(w, &loggingLineWriter{})
		}
		enc := json.NewEncoder(out)

		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()

		// The stream header is committed lazily: failures before the first
		// progress line still get a proper status code.
		wrote := false
		err := svc.Fetch(ctx, id, func(p types.FetchProgress) {
			if !wrote {
				w.Header().Set("Content-Type", "application/x-ndjson")
				w.WriteHeader(http.StatusOK)
				wrote = true
			}
			_ = enc.Encode(p)
			if flush != nil {
				flush()
			}
		})
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			if !wrote {
				status, reason := writeServiceError(w, err)
				if lvl >= LevelError {
					if zlog != nil {
						zlog.Error().Str("model", id).Int("status", status).Str("reason", reason).Err(err).Msg("fetch end")
					} else {
						log.Printf("fetch end model=%s status=%d reason=%s err=%v", id, status, reason, err)
					}
				}
				return
			}
			// Stream already started; emit a terminal error line instead.
			_, reason := mapError(err)
			_ = enc.Encode(types.FetchProgress{ModelID: id, Status: "error", Error: reason + ": " + err.Error()})
			if flush != nil {
				flush()
			}
			return
		}
		if !wrote {
			// Nothing to transfer (already local); report a terminal line anyway.
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			_ = enc.Encode(types.FetchProgress{ModelID: id, Status: "done"})
		}
	}
}

func handleLoad(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if err := svc.Load(ctx, id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUnload(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Unload(id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeJSON writes v with the given status as a JSON body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
