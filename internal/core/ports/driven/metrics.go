package driven

import (
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// MetricsRecorder exports per-run pipeline counters.
type MetricsRecorder interface {
	// ObserveBatch records an extraction or metadata batch.
	ObserveBatch(report domain.BatchReport, elapsed time.Duration, err error)

	// ObserveArchive records an archival run.
	ObserveArchive(report domain.ArchiveReport, elapsed time.Duration, err error)

	// Flush writes the collected metrics to their destination.
	Flush() error
}
