package engine

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// job tracks one in-flight upscale for status reporting. tilesDone is
// atomic so tile workers bump it without taking the engine lock.
type job struct {
	id         string
	modelID    string
	width      int
	height     int
	scale      int
	tilesTotal int
	tilesDone  atomic.Int64
	started    time.Time
}

func (e *Engine) trackJob(modelID string, width, height, scale, tiles int) *job {
	j := &job{
		id:         uuid.NewString(),
		modelID:    modelID,
		width:      width,
		height:     height,
		scale:      scale,
		tilesTotal: tiles,
		started:    time.Now(),
	}
	e.mu.Lock()
	e.jobs[j.id] = j
	e.mu.Unlock()
	return j
}

func (e *Engine) dropJob(id string) {
	e.mu.Lock()
	delete(e.jobs, id)
	e.mu.Unlock()
}
