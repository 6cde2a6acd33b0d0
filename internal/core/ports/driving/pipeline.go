package driving

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// TextExtraction runs one bounded extraction batch.
type TextExtraction interface {
	RunBatch(ctx context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error)
}

// MetadataGeneration runs one bounded metadata batch.
type MetadataGeneration interface {
	RunBatch(ctx context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error)
}

// Archival mirrors the source tree into the archive and moves files across.
type Archival interface {
	Run(ctx context.Context, cfg domain.PipelineConfig) (domain.ArchiveReport, error)
}
