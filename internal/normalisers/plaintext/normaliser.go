// Package plaintext decodes text sidecars into clean UTF-8.
package plaintext

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.MimePlainText}
}

// Normalise returns the content as UTF-8 with LF line endings. A UTF-8 or
// UTF-16 byte order mark selects the decoding and is dropped. Content
// without one is read as UTF-8 and invalid bytes become U+FFFD.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw.Content)
	if err != nil {
		return "", fmt.Errorf("%w: decoding %s: %v", domain.ErrInvalidInput, raw.Name, err)
	}

	text := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n"), nil
}
