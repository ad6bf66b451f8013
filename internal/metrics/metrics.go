package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eurorates_rows_read_total",
			Help: "Total raw CSV rows read",
		},
		[]string{"analysis", "measure"},
	)

	RowsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eurorates_rows_dropped_total",
			Help: "Raw rows dropped by the entity filter or age domain",
		},
		[]string{"analysis", "measure", "reason"},
	)

	RowsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eurorates_rows_rejected_total",
			Help: "Raw rows rejected as malformed",
		},
		[]string{"analysis", "measure"},
	)

	TidyRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "eurorates_tidy_rows",
			Help: "Rows in the tidy dataset of the last run",
		},
		[]string{"analysis"},
	)

	CountriesExcluded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eurorates_countries_excluded_total",
			Help: "Countries excluded for insufficient reference data",
		},
		[]string{"analysis"},
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eurorates_analysis_duration_seconds",
			Help:    "Wall time of one analysis run",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"analysis", "status"},
	)

	FetchBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eurorates_fetch_bytes_total",
			Help: "Snapshot bytes downloaded",
		},
		[]string{"scheme"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eurorates_fetch_latency_seconds",
			Help:    "Snapshot download latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"scheme", "status"},
	)
)

// WriteTextfile writes the default registry in the node exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
