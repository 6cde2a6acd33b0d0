package normalisers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/normalisers/docx"
	"github.com/custodia-labs/archivist/internal/normalisers/pdf"
	"github.com/custodia-labs/archivist/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps MIME types to normalisers. A later registration for the
// same MIME type replaces the earlier one.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string]driven.Normaliser)}
}

// Default returns a registry holding the built-in PDF, DOCX and plain
// text normalisers.
func Default() *Registry {
	r := NewRegistry()
	r.Register(pdf.New())
	r.Register(docx.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser for each MIME type it supports.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mime := range normaliser.SupportedMIMETypes() {
		r.byMIME[canonical(mime)] = normaliser
	}
}

// Supports reports whether a normaliser is registered for the MIME type.
func (r *Registry) Supports(mimeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byMIME[canonical(mimeType)]
	return ok
}

// Normalise reads text with the normaliser registered for raw.MIMEType.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}
	r.mu.RLock()
	normaliser, ok := r.byMIME[canonical(raw.MIMEType)]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: no normaliser for %s", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return normaliser.Normalise(ctx, raw)
}

// canonical drops MIME parameters and case: "Application/PDF; x=y" -> "application/pdf".
func canonical(mime string) string {
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
