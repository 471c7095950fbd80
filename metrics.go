package feather

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Data metrics
	transferBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feather_transfer_bytes_total",
			Help: "Total bytes moved through transfer monitors",
		},
	)

	transferResourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feather_transfer_resources_total",
			Help: "Total sub-resources handled by transfers",
		},
		[]string{"kind", "status"},
	)

	// Orchestration metrics
	transfersInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feather_transfer_data_in_flight",
			Help: "Number of data transfers currently running",
		},
	)

	listingsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feather_transfer_listings_in_flight",
			Help: "Number of directory listings currently running",
		},
	)

	transferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feather_transfer_duration_seconds",
			Help:    "Duration of whole transfers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// recordResource counts one finished sub-resource of the given kind
// ("file" or "directory").
func recordResource(kind string, err error) {
	transferResourcesTotal.WithLabelValues(kind, statusLabel(err)).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
