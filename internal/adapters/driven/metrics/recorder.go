// Package metrics exports pipeline run counters in the Prometheus text
// format, for node_exporter's textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Result label values.
const (
	resultSuccess = "success"
	resultError   = "error"
)

// Recorder holds the pipeline metrics on a private registry.
//
// Metrics:
//   - archivist_batch_items_total{phase,outcome}
//   - archivist_batch_runs_total{phase,result}
//   - archivist_batch_duration_seconds{phase}
//   - archivist_archive_files_total{outcome}
//   - archivist_archive_bytes_moved_total
//   - archivist_archive_folders_created_total
//   - archivist_last_run_timestamp_seconds{phase}
type Recorder struct {
	registry *prometheus.Registry
	path     string

	batchItems     *prometheus.CounterVec
	runs           *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	archiveFiles   *prometheus.CounterVec
	bytesMoved     prometheus.Counter
	foldersCreated prometheus.Counter
	lastRun        *prometheus.GaugeVec
}

// NewRecorder creates a recorder that flushes to path.
// An empty path keeps the metrics in memory only.
func NewRecorder(path string) *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		path:     path,
		batchItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_batch_items_total",
			Help: "Documents handled by extraction and metadata batches",
		}, []string{"phase", "outcome"}),
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_batch_runs_total",
			Help: "Pipeline phase invocations",
		}, []string{"phase", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "archivist_batch_duration_seconds",
			Help:    "Wall time of a pipeline phase",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"phase"}),
		archiveFiles: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "archivist_archive_files_total",
			Help: "Files considered by the archival mover",
		}, []string{"outcome"}),
		bytesMoved: factory.NewCounter(prometheus.CounterOpts{
			Name: "archivist_archive_bytes_moved_total",
			Help: "Bytes copied into the archive tree",
		}),
		foldersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "archivist_archive_folders_created_total",
			Help: "Folders mirrored into the archive tree",
		}),
		lastRun: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "archivist_last_run_timestamp_seconds",
			Help: "Unix time of the last completed phase run",
		}, []string{"phase"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveBatch records an extraction or metadata batch.
func (r *Recorder) ObserveBatch(report domain.BatchReport, elapsed time.Duration, err error) {
	phase := string(report.Phase)
	r.batchItems.WithLabelValues(phase, "candidate").Add(float64(report.Candidates))
	r.batchItems.WithLabelValues(phase, "processed").Add(float64(report.Processed))
	r.batchItems.WithLabelValues(phase, "skipped").Add(float64(report.Skipped))
	r.batchItems.WithLabelValues(phase, "failed").Add(float64(report.Failed))
	r.finish(phase, elapsed, err)
}

// ObserveArchive records an archival run.
func (r *Recorder) ObserveArchive(report domain.ArchiveReport, elapsed time.Duration, err error) {
	r.archiveFiles.WithLabelValues("copied").Add(float64(report.Copied))
	r.archiveFiles.WithLabelValues("skipped").Add(float64(report.Skipped))
	r.archiveFiles.WithLabelValues("failed").Add(float64(report.Failed))
	r.bytesMoved.Add(float64(report.BytesMoved))
	r.foldersCreated.Add(float64(report.FoldersCreated))
	r.finish(string(domain.PhaseArchive), elapsed, err)
}

func (r *Recorder) finish(phase string, elapsed time.Duration, err error) {
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	r.runs.WithLabelValues(phase, result).Inc()
	r.duration.WithLabelValues(phase).Observe(elapsed.Seconds())
	r.lastRun.WithLabelValues(phase).SetToCurrentTime()
}

// Flush writes the registry to the textfile. WriteToTextfile renames a
// temporary file into place, so scrapers never read a partial file.
func (r *Recorder) Flush() error {
	if r.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(r.path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
