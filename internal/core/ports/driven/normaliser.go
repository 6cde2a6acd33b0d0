package driven

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// Normaliser reads text directly out of a document's bytes, without OCR
// or a conversion round-trip. Each normaliser handles specific MIME types.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise returns the document's plain text.
	Normalise(ctx context.Context, raw *domain.RawDocument) (string, error)
}
