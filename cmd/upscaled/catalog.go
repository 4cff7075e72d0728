package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"upscaled/internal/daemon"
	"upscaled/pkg/types"
)

// signalContext returns a context canceled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// runSync performs one catalog synchronization pass and prints the plan
// summary as indented JSON.
func runSync(a *app, detail bool) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	plan, err := d.Sync(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(plan.Summary(detail))
}

// runFetch downloads weight files, streaming NDJSON progress to stdout.
// With all set, every model still in the remote state is fetched.
func runFetch(a *app, ids []string, all bool) error {
	d, err := daemon.New(a.cfg, newLogger(a.cfg.LogLevel))
	if err != nil {
		return err
	}
	if all {
		ids = nil
		for _, m := range d.ListModels() {
			if m.State == "remote" {
				ids = append(ids, m.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Println("nothing to fetch")
			return nil
		}
	}
	ctx, cancel := signalContext()
	defer cancel()
	enc := json.NewEncoder(os.Stdout)
	// Downloads run concurrently; serialize the progress lines.
	var mu sync.Mutex
	return d.FetchAll(ctx, ids, func(p types.FetchProgress) {
		mu.Lock()
		defer mu.Unlock()
		_ = enc.Encode(p)
	})
}
