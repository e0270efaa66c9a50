// Package metrics
package metrics

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "boothlens_search_duration_seconds",
			Help:    "Duration of full search pipeline runs in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
	EmbedDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "boothlens_embed_duration_seconds",
			Help:    "Duration of CLIP embedding calls in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	SearchRejectedBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boothlens_search_rejected_busy_total",
			Help: "Searches rejected because another was in flight.",
		},
	)
	IndexedPoints = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "boothlens_indexed_points",
			Help: "Number of image points in the vector index.",
		},
	)
	SeederImagesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "boothlens_seeder_images_indexed_total",
			Help: "Total images embedded and upserted by the seeder.",
		},
	)
	SeederImageFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "boothlens_seeder_image_fetches_total",
			Help: "Remote image fetches made by the seeder, labeled by result.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(EmbedDuration)
	prometheus.MustRegister(SearchRejectedBusy)
	prometheus.MustRegister(IndexedPoints)
	prometheus.MustRegister(SeederImagesIndexed)
	prometheus.MustRegister(SeederImageFetches)
}

// ExposeMetrics serves the Prometheus handler on its own listener.
func ExposeMetrics(addr string) {
	slog.Info("Exposing Prometheus metrics", "address", addr)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("Failed to start Prometheus metrics server", "error", err)
	}
}
