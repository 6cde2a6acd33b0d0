package driven

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// NormaliserRegistry selects the normaliser for a document by MIME type.
type NormaliserRegistry interface {
	// Normalise reads text with the normaliser registered for raw.MIMEType.
	// Returns domain.ErrUnsupportedType if none is registered.
	Normalise(ctx context.Context, raw *domain.RawDocument) (string, error)

	// Register adds a normaliser to the registry.
	Register(normaliser Normaliser)

	// Supports reports whether a normaliser is registered for the MIME type.
	Supports(mimeType string) bool
}
