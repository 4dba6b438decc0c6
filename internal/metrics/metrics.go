package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etna6c_events_processed_total",
			Help: "Event windows processed, by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	FiguresWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etna6c_figures_written_total",
			Help: "PNG files written",
		},
		[]string{"type"},
	)

	SamplesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etna6c_samples_read_total",
			Help: "Waveform samples decoded from miniSEED",
		},
		[]string{"group"},
	)

	ValidationFlags = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etna6c_validation_flags_total",
			Help: "Stream validation flags raised",
		},
		[]string{"group", "flag"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etna6c_stage_duration_seconds",
			Help:    "Time spent per pipeline stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	FetchTransfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etna6c_fetch_transfers_total",
			Help: "FTP file transfers, by outcome",
		},
		[]string{"status"},
	)

	FetchBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etna6c_fetch_bytes_total",
			Help: "Bytes downloaded from the archive",
		},
	)
)

// WriteTextfile dumps the default registry in the node_exporter textfile
// format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
