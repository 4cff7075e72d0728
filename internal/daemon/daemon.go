// Package daemon wires the catalog store, synchronizer, weight fetcher
// and upscale engine into the single service the HTTP API and the CLI
// consume.
package daemon

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"upscaled/internal/arch"
	"upscaled/internal/catalog"
	"upscaled/internal/common/fsutil"
	"upscaled/internal/config"
	"upscaled/internal/engine"
	"upscaled/internal/fetch"
	"upscaled/internal/tile"
	"upscaled/pkg/types"
)

// registryFileName is the registry's file name inside the data dir.
const registryFileName = "registry.yaml"

// Daemon composes the service out of its parts. All methods are safe for
// concurrent use.
type Daemon struct {
	cfg     config.Config
	store   *catalog.Store
	syncer  *catalog.Synchronizer
	fetcher *fetch.Fetcher
	engine  *engine.Engine
	log     zerolog.Logger
}

// New builds a daemon from a validated configuration. The catalog URL may
// be empty; sync then fails with a catalog-unavailable error while every
// local operation keeps working.
func New(cfg config.Config, logger zerolog.Logger) (*Daemon, error) {
	store, err := catalog.Open(filepath.Join(cfg.DataDir, registryFileName), cfg.ModelsDir)
	if err != nil {
		return nil, err
	}

	var syncer *catalog.Synchronizer
	if cfg.CatalogURL != "" {
		client := catalog.NewClient(cfg.CatalogURL, nil)
		syncer = catalog.NewSynchronizer(store, client, catalog.AdmitOptions{
			MaxScale:          cfg.MaxModelScale,
			MinInputChannels:  cfg.MinInputChannels,
			MinOutputChannels: cfg.MinOutputChannels,
		})
	}

	families := arch.NewRegistry(arch.NewResampler(cfg.DeviceCapacityPx))
	eng, err := engine.New(engine.Config{
		Store:         store,
		Families:      families,
		DefaultModel:  cfg.DefaultModel,
		BudgetMB:      cfg.MemBudgetMB,
		MarginMB:      cfg.MemMarginMB,
		DeviceStreams: cfg.DeviceStreams,
		QueueDepth:    cfg.QueueDepth,
		MaxWait:       time.Duration(cfg.MaxQueueWaitMS) * time.Millisecond,
		TileSize:      cfg.TileSize,
		TileOverlap:   cfg.TileOverlapPx,
		TileFloor:     cfg.TileFloorSize,
		Thresholds: tile.Thresholds{
			X1:    cfg.Threshold1x,
			X2to3: cfg.Threshold2x3x,
			X4to5: cfg.Threshold4x5x,
			X6to7: cfg.Threshold6x7x,
			X8:    cfg.Threshold8x,
		},
		MaxInputPixels: cfg.MaxInputPixels,
		Publisher:      eventLogger{log: logger},
	})
	if err != nil {
		return nil, err
	}

	return &Daemon{
		cfg:     cfg,
		store:   store,
		syncer:  syncer,
		fetcher: fetch.New(store, nil, cfg.FetchConcurrency),
		engine:  eng,
		log:     logger,
	}, nil
}

// Store exposes the catalog store for CLI commands that register or audit
// models directly.
func (d *Daemon) Store() *catalog.Store { return d.store }

// ListModels returns the catalog with per-model install state.
func (d *Daemon) ListModels() []types.ModelEntry {
	descs := d.store.List()
	out := make([]types.ModelEntry, 0, len(descs))
	for _, desc := range descs {
		out = append(out, types.ModelEntry{
			Descriptor: desc,
			State:      modelState(desc),
			Loaded:     d.engine.Loaded(desc.ID),
		})
	}
	return out
}

// Sync runs one catalog synchronization pass.
func (d *Daemon) Sync(ctx context.Context) (types.SyncPlan, error) {
	if d.syncer == nil {
		return types.SyncPlan{}, catalog.ErrCatalogUnavailable(errors.New("no catalog url configured"))
	}
	return d.syncer.Sync(ctx)
}

// Fetch downloads and verifies one model's weights.
func (d *Daemon) Fetch(ctx context.Context, id string, progress func(types.FetchProgress)) error {
	_, err := d.fetcher.Fetch(ctx, id, progress)
	return err
}

// FetchAll downloads several models with bounded concurrency.
func (d *Daemon) FetchAll(ctx context.Context, ids []string, progress func(types.FetchProgress)) error {
	return d.fetcher.FetchAll(ctx, ids, progress)
}

// Upscale runs one image through the engine, writing PNG output to w.
func (d *Daemon) Upscale(ctx context.Context, params types.UpscaleParams, data []byte, w io.Writer) error {
	return d.engine.Upscale(ctx, params, data, w)
}

// Load warms the loaded-model cache for id.
func (d *Daemon) Load(ctx context.Context, id string) error {
	return d.engine.Load(ctx, id)
}

// Unload drops id from the loaded-model cache.
func (d *Daemon) Unload(id string) error {
	return d.engine.Unload(id)
}

// Status reports the engine snapshot.
func (d *Daemon) Status() types.StatusResponse {
	return d.engine.Status()
}

// Ready reports whether the daemon can serve upscale requests.
func (d *Daemon) Ready() bool {
	return d.engine.Ready()
}

// Audit reconciles the weight directory with the registry.
func (d *Daemon) Audit() (catalog.AuditReport, error) {
	return d.store.Audit()
}

// AddLocalModel registers weights already on disk as a user-defined model.
// The file stays where it is; the registry records its path and checksum.
func (d *Daemon) AddLocalModel(desc types.Descriptor, weightsPath string) error {
	path, err := fsutil.ExpandHome(weightsPath)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return err
	}
	sum, err := fsutil.FileSHA256(abs)
	if err != nil {
		return err
	}
	desc.UserDefined = true
	if desc.Name == "" {
		desc.Name = desc.ID
	}
	if desc.FileName == "" {
		desc.FileName = filepath.Base(abs)
	}
	if err := d.store.Put(desc); err != nil {
		return err
	}
	if err := d.store.SetLocal(desc.ID, abs, sum, fi.Size()); err != nil {
		return err
	}
	d.log.Info().Str("model", desc.ID).Str("path", abs).Msg("registered local model")
	return nil
}

// modelState renders the install state shown in listings. Unusable wins
// over stale: a model that cannot serve needs attention regardless of its
// remote presence.
func modelState(d types.Descriptor) string {
	switch {
	case d.Unusable:
		return "unusable"
	case d.Stale:
		return "stale"
	case d.LocalPath != "":
		return "ready"
	default:
		return "remote"
	}
}

// eventLogger forwards engine events to the structured logger.
type eventLogger struct {
	log zerolog.Logger
}

func (p eventLogger) Publish(ev engine.Event) {
	e := p.log.Info().Str("event", ev.Name)
	if ev.ModelID != "" {
		e = e.Str("model", ev.ModelID)
	}
	e.Fields(ev.Fields).Msg("engine")
}
