package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"upscaled/internal/arch"
	"upscaled/internal/catalog"
	"upscaled/internal/tile"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultQueueDepth = 16
	defaultMaxWait    = 30 * time.Second
)

// Config encapsulates all tunables for Engine construction.
type Config struct {
	Store        *catalog.Store
	Families     *arch.Registry
	DefaultModel string

	BudgetMB int
	MarginMB int

	DeviceStreams int
	QueueDepth    int
	MaxWait       time.Duration

	TileSize    int
	TileOverlap int
	TileFloor   int
	Thresholds  tile.Thresholds

	MaxInputPixels int64

	Publisher EventPublisher
}

type Engine struct {
	mu       sync.RWMutex
	store    *catalog.Store
	families *arch.Registry
	planner  *tile.Planner

	defaultModel   string
	budgetMB       int
	marginMB       int
	tileFloor      int
	maxInputPixels int64
	maxWait        time.Duration

	loaded    map[string]*loadedModel
	usedEstMB int
	jobs      map[string]*job

	device chan struct{} // one slot per execution stream
	queue  chan struct{} // job admission slots

	publisher EventPublisher
	startTime time.Time
	lastErr   string

	loadsTotal        atomic.Uint64
	evictionsTotal    atomic.Uint64
	degradationsTotal atomic.Uint64
}

// New constructs an Engine from cfg. Tile geometry is re-validated here so
// a misconfigured engine fails at startup, not at the first request.
func New(cfg Config) (*Engine, error) {
	planner, err := tile.NewPlanner(cfg.Thresholds, cfg.TileSize, cfg.TileOverlap)
	if err != nil {
		return nil, err
	}
	streams := cfg.DeviceStreams
	if streams < 1 {
		streams = 1
	}
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	floor := cfg.TileFloor
	if floor < 1 {
		floor = 1
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = noopPublisher{}
	}
	return &Engine{
		store:          cfg.Store,
		families:       cfg.Families,
		planner:        planner,
		defaultModel:   cfg.DefaultModel,
		budgetMB:       cfg.BudgetMB,
		marginMB:       cfg.MarginMB,
		tileFloor:      floor,
		maxInputPixels: cfg.MaxInputPixels,
		maxWait:        maxWait,
		loaded:         make(map[string]*loadedModel),
		jobs:           make(map[string]*job),
		device:         make(chan struct{}, streams),
		queue:          make(chan struct{}, depth),
		publisher:      pub,
		startTime:      time.Now(),
	}, nil
}

// Ready reports whether the engine can serve work: the catalog store is
// open and at least one architecture family is registered.
func (e *Engine) Ready() bool {
	return e.store != nil && e.families != nil && len(e.families.Names()) > 0
}

func (e *Engine) streams() int { return cap(e.device) }

func (e *Engine) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err.Error()
	e.mu.Unlock()
}
