package engine

import (
	"context"
	"time"
)

// admitJob claims a queue slot for one upscale job, waiting up to
// maxWait before giving up. The returned func frees the slot and must
// be called exactly once.
func (e *Engine) admitJob(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timer := time.NewTimer(e.maxWait)
	defer timer.Stop()
	select {
	case e.queue <- struct{}{}:
		return func() { <-e.queue }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTooBusy()
	}
}

// acquireStream claims one accelerator stream for a single tile launch.
// Admitted jobs already hold a queue slot, so here we only wait on the
// caller's context.
func (e *Engine) acquireStream(ctx context.Context) (func(), error) {
	select {
	case e.device <- struct{}{}:
		return func() { <-e.device }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
