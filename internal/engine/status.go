package engine

import (
	"sort"
	"time"

	"upscaled/pkg/types"
)

// Status reports a point-in-time snapshot of the engine: loaded models,
// in-flight jobs, budget usage and lifetime counters.
func (e *Engine) Status() types.StatusResponse {
	rev, syncedAt := e.store.Revision()

	modelsTotal := 0
	modelsReady := 0
	for _, d := range e.store.List() {
		modelsTotal++
		if d.Ready() {
			modelsReady++
		}
	}

	now := time.Now()
	resp := types.StatusResponse{
		CatalogRevision:   rev,
		ModelsTotal:       modelsTotal,
		ModelsReady:       modelsReady,
		LoadsTotal:        e.loadsTotal.Load(),
		EvictionsTotal:    e.evictionsTotal.Load(),
		DegradationsTotal: e.degradationsTotal.Load(),
		ServerTimeUnix:    now.Unix(),
	}
	if !syncedAt.IsZero() {
		resp.LastSyncUnix = syncedAt.Unix()
	}

	e.mu.RLock()
	resp.BudgetMB = e.budgetMB
	resp.UsedMB = e.usedEstMB
	resp.MarginMB = e.marginMB
	resp.LastError = e.lastErr
	resp.UptimeSeconds = int64(now.Sub(e.startTime).Seconds())
	resp.Loaded = make([]types.LoadedModelStatus, 0, len(e.loaded))
	for _, lm := range e.loaded {
		resp.Loaded = append(resp.Loaded, types.LoadedModelStatus{
			ModelID:  lm.id,
			Refs:     lm.refs,
			EstMB:    lm.estMB,
			LastUsed: lm.lastUsed.Unix(),
		})
	}
	resp.Jobs = make([]types.JobStatus, 0, len(e.jobs))
	for _, j := range e.jobs {
		resp.Jobs = append(resp.Jobs, types.JobStatus{
			ID:          j.id,
			ModelID:     j.modelID,
			Width:       j.width,
			Height:      j.height,
			Scale:       j.scale,
			TilesTotal:  j.tilesTotal,
			TilesDone:   int(j.tilesDone.Load()),
			StartedUnix: j.started.Unix(),
		})
	}
	e.mu.RUnlock()

	sort.Slice(resp.Loaded, func(i, k int) bool { return resp.Loaded[i].ModelID < resp.Loaded[k].ModelID })
	sort.Slice(resp.Jobs, func(i, k int) bool { return resp.Jobs[i].ID < resp.Jobs[k].ID })
	return resp
}
