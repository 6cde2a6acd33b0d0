package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
	"github.com/custodia-labs/archivist/internal/logger"
)

// TextExtractor turns one source document into sidecar text.
type TextExtractor struct {
	store  driven.DocumentStore
	chains StrategyTable
}

// NewTextExtractor creates an extractor dispatching through chains.
func NewTextExtractor(store driven.DocumentStore, chains StrategyTable) *TextExtractor {
	return &TextExtractor{store: store, chains: chains}
}

// Extract returns the text to persist for file, or "" when nothing usable
// was found. Unsupported kinds return domain.ErrUnsupportedType.
func (e *TextExtractor) Extract(ctx context.Context, cfg domain.PipelineConfig, file domain.File) (string, error) {
	kind := domain.ClassifyMime(file.MimeType)
	chain, ok := e.chains[kind]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedType, file.MimeType)
	}

	content, err := e.store.ReadContent(ctx, file)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}

	text, err := chain.Run(ctx, &Candidate{File: file, Content: content, Config: cfg})
	if err != nil {
		return "", err
	}
	return finishText(text, cfg), nil
}

// finishText blanks whitespace-only text and annotates very short text.
func finishText(text string, cfg domain.PipelineConfig) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if utf8.RuneCountInString(text) < cfg.LowTextThreshold {
		return text + domain.LowTextWarning
	}
	return text
}

// Ensure ExtractionService implements the interface.
var _ driving.TextExtraction = (*ExtractionService)(nil)

// ExtractionService runs bounded extraction batches.
type ExtractionService struct {
	store     driven.DocumentStore
	index     *PairingIndex
	extractor *TextExtractor
}

// NewExtractionService creates an extraction service.
func NewExtractionService(store driven.DocumentStore, index *PairingIndex, extractor *TextExtractor) *ExtractionService {
	return &ExtractionService{store: store, index: index, extractor: extractor}
}

// RunBatch writes text sidecars for up to cfg.PageSize candidates.
// Per-candidate failures are logged and skipped; the error return is
// reserved for configuration problems and discovery failing at the root.
func (s *ExtractionService) RunBatch(ctx context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error) {
	report := domain.BatchReport{Phase: domain.PhaseExtraction}
	if err := cfg.Validate(); err != nil {
		return report, err
	}
	if cfg.RootFolderID == "" {
		return report, fmt.Errorf("%w: root folder not configured", domain.ErrInvalidInput)
	}

	logger.Section("Text Extraction")
	candidates, err := s.index.FindSourcesNeedingText(ctx, cfg.RootFolderID)
	if err != nil {
		return report, fmt.Errorf("discover sources: %w", err)
	}
	report.Candidates = len(candidates)
	logger.Info("extraction: %d candidates", len(candidates))

	for _, file := range candidates {
		if report.Processed >= cfg.PageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		written, err := s.processCandidate(ctx, cfg, file)
		switch {
		case errors.Is(err, domain.ErrUnsupportedType):
			logger.Debug("extraction: skipping %s: %v", file.Name, err)
			report.Skipped++
		case err != nil:
			logger.Error("extraction: %s: %v", file.Name, err)
			report.Failed++
		case written:
			report.Processed++
		default:
			report.Skipped++
		}
	}

	logger.Info("extraction: processed %d, skipped %d, failed %d", report.Processed, report.Skipped, report.Failed)
	return report, nil
}

// processCandidate extracts and persists one document. It reports whether
// a new sidecar was written. Panics are recovered into errors.
func (s *ExtractionService) processCandidate(ctx context.Context, cfg domain.PipelineConfig, file domain.File) (written bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	text, err := s.extractor.Extract(ctx, cfg, file)
	if err != nil {
		return false, err
	}
	if text == "" {
		logger.Info("extraction: no text in %s", file.Name)
		return false, nil
	}

	name := domain.TextSidecarName(file.BaseName())
	existing, err := s.store.FindByName(ctx, file.ParentID, name)
	if err != nil {
		return false, fmt.Errorf("check sidecar: %w", err)
	}
	if existing != nil {
		logger.Debug("extraction: %s already exists", name)
		return false, nil
	}

	if _, err := s.store.CreateFile(ctx, file.ParentID, name, domain.MimePlainText, []byte(text)); err != nil {
		return false, fmt.Errorf("create sidecar: %w", err)
	}
	if err := s.store.SetMarker(ctx, file, domain.MarkerProcessedText); err != nil {
		logger.Warn("extraction: marker on %s: %v", file.Name, err)
	}
	logger.Info("extraction: wrote %s", name)
	return true, nil
}
