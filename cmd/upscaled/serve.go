package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"upscaled/internal/daemon"
	"upscaled/internal/httpapi"
)

// runServe starts the daemon, mounts the HTTP API and blocks until
// SIGINT/SIGTERM or a listener error.
func runServe(a *app) error {
	logger := newLogger(a.cfg.LogLevel)

	d, err := daemon.New(a.cfg, logger)
	if err != nil {
		return err
	}

	httpapi.SetLogger(logger)
	httpapi.SetMaxBodyBytes(a.cfg.MaxBodyBytes)
	httpapi.SetUpscaleTimeoutSeconds(a.cfg.UpscaleTimeoutS)
	httpapi.SetCORSOptions(len(a.cfg.AllowedOrigins) > 0, a.cfg.AllowedOrigins,
		[]string{http.MethodGet, http.MethodPost, http.MethodOptions},
		[]string{"Content-Type", "X-Log-Level"})

	// In-flight requests watch this context so shutdown can cut them off.
	baseCtx, stopBase := context.WithCancel(context.Background())
	defer stopBase()
	httpapi.SetBaseContext(baseCtx)

	srv := &http.Server{Addr: a.cfg.Addr, Handler: httpapi.NewMux(d)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", a.cfg.Addr).Str("models_dir", a.cfg.ModelsDir).Msg("upscaled listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Graceful shutdown (Ctrl+C / SIGTERM)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-stop:
	}
	stopBase()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
