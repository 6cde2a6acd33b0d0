// Package ocr recognises text locally with tesseract, rasterising PDFs
// with pdftoppm first. Results are kept as scratch files until discarded.
package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Ensure Tesseract implements the interface.
var _ driven.OCRService = (*Tesseract)(nil)

// Config selects the external binaries and rasterisation settings.
type Config struct {
	Tesseract   string // binary name or path; default "tesseract"
	Pdftoppm    string // binary name or path; default "pdftoppm"
	TessdataDir string
	DPI         int // default 300
	MaxPages    int // 0 = no limit
	ScratchDir  string
}

// Tesseract implements OCRService with local binaries.
type Tesseract struct {
	scratchDir
	cfg    Config
	runner Runner
}

// NewTesseract creates a local OCR service.
func NewTesseract(cfg Config) (*Tesseract, error) {
	return newTesseract(cfg, execRunner{})
}

func newTesseract(cfg Config, runner Runner) (*Tesseract, error) {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	scratch, err := newScratchDir(cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	return &Tesseract{scratchDir: scratch, cfg: cfg, runner: runner}, nil
}

var reBoxNoise = regexp.MustCompile(`[\x{2500}-\x{257F}\x{25A0}-\x{25FF}]+`)

// Recognize runs OCR synchronously and stores the text as a scratch resource.
func (t *Tesseract) Recognize(ctx context.Context, content []byte, mimeType, lang string) (string, error) {
	kind := domain.ClassifyMime(mimeType)
	if kind != domain.KindImage && kind != domain.KindPDF {
		return "", fmt.Errorf("%w: cannot recognise %s locally", domain.ErrUnsupportedType, mimeType)
	}

	work, err := os.MkdirTemp("", "archivist-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(work); err != nil {
			logger.Warn("remove OCR work directory %s: %v", work, err)
		}
	}()

	input := filepath.Join(work, "input"+extensionFor(mimeType))
	if err := os.WriteFile(input, content, 0600); err != nil {
		return "", fmt.Errorf("write OCR input: %w", err)
	}

	images := []string{input}
	if kind == domain.KindPDF {
		images, err = t.rasterise(ctx, input, filepath.Join(work, "page"))
		if err != nil {
			return "", err
		}
	}

	var b strings.Builder
	for _, img := range images {
		text, err := t.recognise(ctx, img, tesseractLanguage(lang))
		if err != nil {
			return "", err
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(text))
	}

	return t.store(b.String())
}

func (t *Tesseract) rasterise(ctx context.Context, pdf, prefix string) ([]string, error) {
	// pdftoppm -r 300 -png <in.pdf> <prefix>
	_, errb, err := t.runner.Run(ctx, t.cfg.Pdftoppm, "-r", strconv.Itoa(t.cfg.DPI), "-png", pdf, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}
	pages, _ := filepath.Glob(prefix + "-*.png")
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm rendered no pages")
	}
	sort.Slice(pages, func(i, j int) bool { return pageNumber(pages[i]) < pageNumber(pages[j]) })
	if t.cfg.MaxPages > 0 && len(pages) > t.cfg.MaxPages {
		pages = pages[:t.cfg.MaxPages]
	}
	return pages, nil
}

func (t *Tesseract) recognise(ctx context.Context, image, lang string) (string, error) {
	// tesseract <file> stdout -l <lang>
	args := []string{image, "stdout", "-l", lang}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	out, errb, err := t.runner.Run(ctx, t.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}

// tesseractLanguage maps an ISO 639-1 code to the ISO 639-3 name of
// tesseract's traineddata. Unknown codes pass through.
func tesseractLanguage(code string) string {
	if code == "" {
		return "eng"
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return code
	}
	return base.ISO3()
}

func pageNumber(path string) int {
	name := strings.TrimSuffix(filepath.Base(path), ".png")
	idx := strings.LastIndex(name, "-")
	n, _ := strconv.Atoi(name[idx+1:])
	return n
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case domain.MimePDF:
		return ".pdf"
	case "image/png":
		return ".png"
	case "image/tiff":
		return ".tif"
	default:
		return ".jpg"
	}
}
