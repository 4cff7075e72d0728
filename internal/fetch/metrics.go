package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "fetch",
			Name:      "downloads_total",
			Help:      "Finished weight downloads by outcome",
		},
		[]string{"outcome"},
	)

	downloadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "fetch",
			Name:      "download_bytes_total",
			Help:      "Weight bytes received from remote sources",
		},
	)

	resumesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upscaled",
			Subsystem: "fetch",
			Name:      "resumes_total",
			Help:      "Downloads resumed from a verified partial file",
		},
	)
)

func init() {
	prometheus.MustRegister(downloadsTotal, downloadBytesTotal, resumesTotal)
}
