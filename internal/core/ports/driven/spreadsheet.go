package driven

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// SpreadsheetReader opens tabular documents.
type SpreadsheetReader interface {
	// OpenTabular returns every sheet with its rows of cell values.
	OpenTabular(ctx context.Context, content []byte) ([]domain.Sheet, error)
}
