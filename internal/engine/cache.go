package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"upscaled/internal/arch"
	"upscaled/internal/catalog"
)

// loadedModel is one cache entry: a live architecture handle plus the
// bookkeeping eviction needs.
type loadedModel struct {
	id       string
	scale    int
	family   arch.Family
	handle   arch.Handle
	estMB    int
	refs     int
	lastUsed time.Time
}

// acquire returns a live handle for the model, loading it first when
// needed, and bumps its reference count. Callers must release the entry
// when their tiles are done; eviction never touches an entry with live
// references.
func (e *Engine) acquire(ctx context.Context, id string) (*loadedModel, error) {
	desc, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if desc.Unusable {
		return nil, catalog.ErrModelUnusable(id, desc.UnusableReason)
	}
	if desc.LocalPath == "" {
		return nil, catalog.ErrModelNotReady(id)
	}
	fam, ok := e.families.Get(desc.Architecture)
	if !ok {
		return nil, catalog.ErrModelUnusable(id, fmt.Sprintf("no registered family for architecture %q", desc.Architecture))
	}

	e.mu.Lock()
	if lm := e.loaded[id]; lm != nil {
		lm.refs++
		lm.lastUsed = time.Now()
		e.mu.Unlock()
		return lm, nil
	}
	e.mu.Unlock()

	est := estimateMemMB(desc.LocalPath)
	if err := e.evictUntilFits(est); err != nil {
		e.publisher.Publish(Event{Name: "budget_reject", ModelID: id, Fields: map[string]any{"required_mb": est}})
		return nil, err
	}
	handle, err := fam.Load(ctx, desc)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if lm := e.loaded[id]; lm != nil {
		// lost a load race; keep the earlier handle
		lm.refs++
		lm.lastUsed = time.Now()
		e.mu.Unlock()
		handle.Close()
		return lm, nil
	}
	lm := &loadedModel{
		id:       id,
		scale:    desc.Scale,
		family:   fam,
		handle:   handle,
		estMB:    handle.EstMemMB(),
		refs:     1,
		lastUsed: time.Now(),
	}
	e.loaded[id] = lm
	e.usedEstMB += lm.estMB
	e.mu.Unlock()

	e.loadsTotal.Add(1)
	modelLoadsTotal.Inc()
	log.Printf("engine event=model_loaded model=%q est_mb=%d", id, lm.estMB)
	e.publisher.Publish(Event{Name: "model_loaded", ModelID: id, Fields: map[string]any{"est_mb": lm.estMB}})
	return lm, nil
}

func (e *Engine) release(lm *loadedModel) {
	e.mu.Lock()
	if lm.refs > 0 {
		lm.refs--
	}
	lm.lastUsed = time.Now()
	e.mu.Unlock()
}

// evictUntilFits drops LRU idle entries until requiredMB fits within
// budget + margin. When everything left is referenced and the budget
// still does not fit, the load fails instead of evicting a live handle.
func (e *Engine) evictUntilFits(requiredMB int) error {
	if e.budgetMB <= 0 {
		return nil
	}
	for {
		e.mu.Lock()
		if e.usedEstMB+requiredMB+e.marginMB <= e.budgetMB {
			e.mu.Unlock()
			return nil
		}
		var lru *loadedModel
		for _, lm := range e.loaded {
			if lm.refs > 0 {
				continue
			}
			if lru == nil || lm.lastUsed.Before(lru.lastUsed) {
				lru = lm
			}
		}
		if lru == nil {
			used, budget := e.usedEstMB, e.budgetMB
			e.mu.Unlock()
			return ErrBudgetExceeded(requiredMB, used, budget)
		}
		delete(e.loaded, lru.id)
		e.usedEstMB -= lru.estMB
		if e.usedEstMB < 0 {
			e.usedEstMB = 0
		}
		e.mu.Unlock()

		lru.handle.Close()
		e.evictionsTotal.Add(1)
		modelEvictionsTotal.Inc()
		log.Printf("engine event=model_evicted model=%q est_mb=%d", lru.id, lru.estMB)
		e.publisher.Publish(Event{Name: "model_evicted", ModelID: lru.id, Fields: map[string]any{"est_mb": lru.estMB}})
	}
}

// Load warms the cache for a model without holding a reference, so the
// entry is immediately evictable but ready for the next job.
func (e *Engine) Load(ctx context.Context, id string) error {
	lm, err := e.acquire(ctx, id)
	if err != nil {
		return err
	}
	e.release(lm)
	return nil
}

// Unload drops a loaded model immediately. Models with live references
// are refused; callers retry after in-flight work drains.
func (e *Engine) Unload(id string) error {
	e.mu.Lock()
	lm := e.loaded[id]
	if lm == nil {
		e.mu.Unlock()
		return ErrModelNotLoaded(id)
	}
	if lm.refs > 0 {
		refs := lm.refs
		e.mu.Unlock()
		return ErrModelBusy(id, refs)
	}
	delete(e.loaded, id)
	e.usedEstMB -= lm.estMB
	if e.usedEstMB < 0 {
		e.usedEstMB = 0
	}
	e.mu.Unlock()

	lm.handle.Close()
	log.Printf("engine event=model_unloaded model=%q", id)
	e.publisher.Publish(Event{Name: "model_unloaded", ModelID: id, Fields: map[string]any{}})
	return nil
}

// Loaded reports whether a model currently holds a cache entry.
func (e *Engine) Loaded(id string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.loaded[id] != nil
}

// estimateMemMB sizes a model by its weight file. Unknown sizes count as
// 1MB so budget checks never see zero.
func estimateMemMB(path string) int {
	fi, err := os.Stat(path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}
