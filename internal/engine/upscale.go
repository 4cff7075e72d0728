package engine

import (
	"context"
	"image/png"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"upscaled/internal/catalog"
	"upscaled/internal/tile"
	"upscaled/pkg/types"
)

// Upscale runs one image through the tiled pipeline and writes the PNG
// result to w. Nothing is written until every tile succeeded, so a
// degraded or failed job never leaves a partial image behind.
func (e *Engine) Upscale(ctx context.Context, params types.UpscaleParams, data []byte, w io.Writer) error {
	modelID := params.Model
	if modelID == "" {
		modelID = e.defaultModel
	}
	if modelID == "" {
		return catalog.ErrModelNotFound("(unspecified)")
	}

	releaseSlot, err := e.admitJob(ctx)
	if err != nil {
		return err
	}
	defer releaseSlot()

	img, err := decodeInput(data, e.maxInputPixels)
	if err != nil {
		return err
	}

	lm, err := e.acquire(ctx, modelID)
	if err != nil {
		e.setLastErr(err)
		return err
	}
	defer e.release(lm)

	if params.Scale != 0 && params.Scale != lm.scale {
		return ErrScaleMismatch(modelID, params.Scale, lm.scale)
	}

	bounds := img.Bounds()
	plan, err := e.planner.Plan(bounds.Dx(), bounds.Dy(), lm.scale)
	if err != nil {
		return err
	}

	j := e.trackJob(modelID, plan.Width, plan.Height, plan.Scale, len(plan.Tiles))
	defer e.dropJob(j.id)
	log.Printf("engine event=job_start job=%q model=%q size=%dx%d tiles=%d",
		j.id, modelID, plan.Width, plan.Height, len(plan.Tiles))
	e.publisher.Publish(Event{Name: "job_start", ModelID: modelID, Fields: map[string]any{
		"job":   j.id,
		"tiles": len(plan.Tiles),
	}})

	results := make([]tile.Result, len(plan.Tiles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.streams())
	for i, spec := range plan.Tiles {
		i, spec := i, spec
		g.Go(func() error {
			buf, err := e.runTile(gctx, lm, img, spec, plan.TileSize)
			if err != nil {
				return err
			}
			results[i] = tile.Result{Spec: spec, Image: buf}
			j.tilesDone.Add(1)
			tilesProcessedTotal.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		jobsTotal.WithLabelValues("failed").Inc()
		e.setLastErr(err)
		log.Printf("engine event=job_failed job=%q model=%q error=%q", j.id, modelID, err)
		e.publisher.Publish(Event{Name: "job_failed", ModelID: modelID, Fields: map[string]any{
			"job":   j.id,
			"error": err.Error(),
		}})
		return err
	}

	out, err := tile.Compose(plan, results)
	if err != nil {
		jobsTotal.WithLabelValues("failed").Inc()
		e.setLastErr(err)
		return err
	}
	if err := png.Encode(w, out); err != nil {
		jobsTotal.WithLabelValues("failed").Inc()
		return err
	}

	jobsTotal.WithLabelValues("done").Inc()
	log.Printf("engine event=job_done job=%q model=%q dur_ms=%d",
		j.id, modelID, time.Since(j.started).Milliseconds())
	e.publisher.Publish(Event{Name: "job_done", ModelID: modelID, Fields: map[string]any{
		"job":    j.id,
		"dur_ms": time.Since(j.started).Milliseconds(),
	}})
	return nil
}
