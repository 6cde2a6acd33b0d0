package drive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/archivist/internal/connectors/google"
	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure the scratch services implement their interfaces.
var (
	_ driven.OCRService        = (*OCR)(nil)
	_ driven.ConversionService = (*Converter)(nil)
)

// utf8BOM prefixes Drive's text/plain exports.
const utf8BOM = "\ufeff"

// scratch creates native documents from uploads and reads them back as text.
type scratch struct {
	svc     *drive.Service
	limiter *google.RateLimiter
	cfg     Config
	prefix  string
}

func newScratch(svc *drive.Service, limiter *google.RateLimiter, cfg Config, prefix string) scratch {
	if limiter == nil {
		limiter = google.NewRateLimiter()
	}
	return scratch{svc: svc, limiter: limiter, cfg: cfg.withDefaults(), prefix: prefix}
}

// create uploads content as a Google Doc. Drive converts it on upload,
// running OCR when ocrLanguage is set.
func (s scratch) create(ctx context.Context, content []byte, mimeType, ocrLanguage string) (string, error) {
	meta := &drive.File{
		Name:     s.prefix + "-" + uuid.New().String(),
		MimeType: domain.MimeNativeDocument,
	}
	if s.cfg.ScratchFolderID != "" {
		meta.Parents = []string{s.cfg.ScratchFolderID}
	}

	var created *drive.File
	err := s.limiter.Do(ctx, func() error {
		call := s.svc.Files.Create(meta).
			Media(bytes.NewReader(content), googleapi.ContentType(mimeType)).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields("id").
			Context(ctx)
		if ocrLanguage != "" {
			call = call.OcrLanguage(ocrLanguage)
		}
		var err error
		created, err = call.Do()
		return err
	})
	if err != nil {
		return "", fmt.Errorf("upload for conversion: %w", err)
	}
	return created.Id, nil
}

// ReadBody exports the scratch document as plain text.
// A missing document or an empty export is not ready yet.
func (s scratch) ReadBody(ctx context.Context, id string) (string, error) {
	var data []byte
	err := s.limiter.Do(ctx, func() error {
		resp, err := s.svc.Files.Export(id, ExportMimeText).Context(ctx).Download()
		if err != nil {
			return err
		}
		data, err = readLimited(resp, s.cfg.MaxDownloadSize)
		return err
	})
	if google.IsNotFound(err) {
		return "", domain.ErrNotReady
	}
	if err != nil {
		return "", fmt.Errorf("export %s: %w", id, err)
	}
	text := strings.TrimPrefix(string(data), utf8BOM)
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrNotReady
	}
	return text, nil
}

// Discard trashes the scratch document.
func (s scratch) Discard(ctx context.Context, id string) error {
	err := s.limiter.Do(ctx, func() error {
		_, err := s.svc.Files.Update(id, &drive.File{Trashed: true}).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields("id").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("trash scratch %s: %w", id, err)
	}
	return nil
}

// OCR recognises text by uploading with Drive's OCR conversion.
type OCR struct {
	scratch
}

// NewOCR creates a Drive OCR service.
func NewOCR(svc *drive.Service, limiter *google.RateLimiter, cfg Config) *OCR {
	return &OCR{scratch: newScratch(svc, limiter, cfg, "ocr")}
}

// Recognize uploads an image or PDF for OCR in the given language.
func (o *OCR) Recognize(ctx context.Context, content []byte, mimeType, language string) (string, error) {
	if language == "" {
		language = "en"
	}
	return o.create(ctx, content, mimeType, language)
}

// Converter turns word documents into Google Docs.
type Converter struct {
	scratch
}

// NewConverter creates a Drive conversion service.
func NewConverter(svc *drive.Service, limiter *google.RateLimiter, cfg Config) *Converter {
	return &Converter{scratch: newScratch(svc, limiter, cfg, "convert")}
}

// Convert uploads a word document for conversion.
func (c *Converter) Convert(ctx context.Context, content []byte, mimeType string) (string, error) {
	return c.create(ctx, content, mimeType, "")
}
