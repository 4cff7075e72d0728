package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	tilesProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "engine",
			Name:      "tiles_processed_total",
			Help:      "Total tiles run through inference",
		},
	)

	tileDegradationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "engine",
			Name:      "tile_degradations_total",
			Help:      "Total tile re-slices after an out-of-memory launch",
		},
	)

	modelLoadsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "engine",
			Name:      "model_loads_total",
			Help:      "Total model handle loads",
		},
	)

	modelEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "engine",
			Name:      "model_evictions_total",
			Help:      "Total model handles evicted to fit the memory budget",
		},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "engine",
			Name:      "jobs_total",
			Help:      "Total upscale jobs by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(tilesProcessedTotal, tileDegradationsTotal, modelLoadsTotal, modelEvictionsTotal, jobsTotal)
}
