package ocr

import (
	"context"
	"fmt"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.ConversionService = (*Converter)(nil)

// Converter is the local stand-in for a store-side document conversion.
// It reads the document with a normaliser and keeps the text as a
// scratch resource, so the conversion stage polls it like a remote one.
type Converter struct {
	scratchDir
	normalisers driven.NormaliserRegistry
}

// NewConverter creates a converter backed by the given normalisers.
func NewConverter(normalisers driven.NormaliserRegistry, dir string) (*Converter, error) {
	scratch, err := newScratchDir(dir)
	if err != nil {
		return nil, err
	}
	return &Converter{scratchDir: scratch, normalisers: normalisers}, nil
}

// Convert reads the document and returns the scratch ID of its text.
func (c *Converter) Convert(ctx context.Context, content []byte, mimeType string) (string, error) {
	if !c.normalisers.Supports(mimeType) {
		return "", fmt.Errorf("%w: no local converter for %s", domain.ErrUnsupportedType, mimeType)
	}
	text, err := c.normalisers.Normalise(ctx, &domain.RawDocument{MIMEType: mimeType, Content: content})
	if err != nil {
		return "", fmt.Errorf("convert: %w", err)
	}
	return c.store(text)
}
