// Package docx reads the text of Office Open XML word documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

const documentPart = "word/document.xml"

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{domain.MimeDocx}
}

// Normalise returns the body text of a DOCX document. Paragraphs become
// lines and table cells are separated by tabs.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (string, error) {
	if raw == nil {
		return "", domain.ErrInvalidInput
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not a docx archive: %v", domain.ErrInvalidInput, raw.Name, err)
	}

	for _, file := range reader.File {
		if file.Name != documentPart {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: opening %s: %v", domain.ErrInvalidInput, documentPart, err)
		}
		defer rc.Close()
		return extractText(rc)
	}
	return "", fmt.Errorf("%w: %s has no %s", domain.ErrInvalidInput, raw.Name, documentPart)
}

// extractText walks word/document.xml token by token. Only the local
// element names matter; the w: namespace is ignored.
func extractText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    strings.Builder
		line   strings.Builder
		inText bool
		cells  int
	)
	flush := func() {
		text := strings.TrimRight(line.String(), " \t")
		line.Reset()
		if text == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: malformed %s: %v", domain.ErrInvalidInput, documentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteByte('\t')
			case "br", "cr":
				flush()
			case "tr":
				cells = 0
			case "tc":
				if cells > 0 {
					trimmed := strings.TrimRight(line.String(), " ")
					line.Reset()
					line.WriteString(trimmed)
					line.WriteByte('\t')
				}
				cells++
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				// Paragraphs inside a cell stay on the row's line.
				if cells == 0 {
					flush()
				} else {
					line.WriteByte(' ')
				}
			case "tr":
				flush()
				cells = 0
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flush()

	return strings.TrimSpace(out.String()), nil
}
