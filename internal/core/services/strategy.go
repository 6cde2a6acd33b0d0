package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Stage names.
const (
	StageDirectRead = "direct-read"
	StageConvert    = "convert"
	StageOCR        = "ocr"
	StageTabular    = "tabular"
)

// Candidate is the document a chain works on.
type Candidate struct {
	File    domain.File
	Content []byte
	Config  domain.PipelineConfig
}

// StageFunc produces candidate text for a document.
type StageFunc func(ctx context.Context, c *Candidate) (string, error)

// Stage is one named step of an extraction chain.
type Stage struct {
	Name string
	Run  StageFunc
}

// Chain is the ordered list of stages for one document kind. Every
// stage's output is checked by the quality gate and the first accepted
// output wins. When Terminal is set, the final stage is accepted
// without the gate; otherwise a chain where nothing passes yields "".
type Chain struct {
	Kind     domain.Kind
	Stages   []Stage
	Terminal bool
}

// StrategyTable maps a document kind to its chain. Kinds without an entry
// are unsupported.
type StrategyTable map[domain.Kind]Chain

// StrategyDeps are the capabilities chains are built from.
// Normalisers and Converter are optional.
type StrategyDeps struct {
	Normalisers driven.NormaliserRegistry
	OCR         driven.OCRService
	Converter   driven.ConversionService
	Sheets      driven.SpreadsheetReader
}

// NewStrategyTable builds the default chains.
func NewStrategyTable(deps StrategyDeps) StrategyTable {
	direct := Stage{Name: StageDirectRead, Run: directReadStage(deps.Normalisers)}
	ocr := Stage{Name: StageOCR, Run: ocrStage(deps.OCR)}
	tabular := Stage{Name: StageTabular, Run: tabularStage(deps.Sheets)}

	return StrategyTable{
		domain.KindImage: {
			Kind:     domain.KindImage,
			Stages:   []Stage{ocr},
			Terminal: true,
		},
		domain.KindPDF: {
			Kind:     domain.KindPDF,
			Stages:   []Stage{direct, ocr},
			Terminal: true,
		},
		domain.KindWordDocument: {
			Kind: domain.KindWordDocument,
			Stages: []Stage{
				direct,
				{Name: StageConvert, Run: convertStage(deps.Converter)},
				ocr,
			},
			Terminal: true,
		},
		domain.KindSpreadsheet: {
			Kind:     domain.KindSpreadsheet,
			Stages:   []Stage{tabular},
			Terminal: true,
		},
		domain.KindNativeSpreadsheet: {
			Kind:     domain.KindNativeSpreadsheet,
			Stages:   []Stage{tabular},
			Terminal: true,
		},
	}
}

// Run executes the chain and returns the winning text.
// Stage errors count as empty output, except on the final stage of a
// terminal chain where the error is returned.
func (ch Chain) Run(ctx context.Context, c *Candidate) (string, error) {
	last := len(ch.Stages) - 1
	for i, stage := range ch.Stages {
		text, err := stage.Run(ctx, c)
		final := i == last
		if err != nil {
			if final && ch.Terminal {
				return "", fmt.Errorf("%s stage: %w", stage.Name, err)
			}
			logger.Warn("%s: %s stage failed: %v", c.File.Name, stage.Name, err)
			continue
		}
		if final && ch.Terminal {
			logger.Debug("%s: accepted %s output (%d runes, terminal)", c.File.Name, stage.Name, utf8.RuneCountInString(text))
			return text, nil
		}
		if IsAcceptable(text, c.Config.Quality) {
			logger.Debug("%s: accepted %s output (%d runes)", c.File.Name, stage.Name, utf8.RuneCountInString(text))
			return text, nil
		}
		logger.Debug("%s: %s output rejected by quality gate", c.File.Name, stage.Name)
	}
	return "", nil
}

func directReadStage(registry driven.NormaliserRegistry) StageFunc {
	return func(ctx context.Context, c *Candidate) (string, error) {
		if registry == nil || !registry.Supports(c.File.MimeType) {
			return "", nil
		}
		return registry.Normalise(ctx, &domain.RawDocument{
			URI:      c.File.ID,
			Name:     c.File.Name,
			MIMEType: c.File.MimeType,
			Content:  c.Content,
		})
	}
}

func ocrStage(ocr driven.OCRService) StageFunc {
	return func(ctx context.Context, c *Candidate) (string, error) {
		if ocr == nil {
			return "", errors.New("OCR service not configured")
		}
		id, err := ocr.Recognize(ctx, c.Content, c.File.MimeType, c.Config.OCRLanguage)
		if err != nil {
			return "", fmt.Errorf("recognize: %w", err)
		}
		defer discard(ctx, ocr, id)

		res := Poll(ctx, c.Config.Conversion, func(ctx context.Context) (string, error) {
			return ocr.ReadBody(ctx, id)
		})
		if res.TimedOut {
			logger.Warn("%s: OCR result not readable after %d attempts", c.File.Name, res.Attempts)
		}
		return res.Value, nil
	}
}

func convertStage(conv driven.ConversionService) StageFunc {
	return func(ctx context.Context, c *Candidate) (string, error) {
		if conv == nil {
			return "", nil
		}
		id, err := conv.Convert(ctx, c.Content, c.File.MimeType)
		if err != nil {
			return "", fmt.Errorf("convert: %w", err)
		}
		defer discard(ctx, conv, id)

		res := Poll(ctx, c.Config.Conversion, func(ctx context.Context) (string, error) {
			return conv.ReadBody(ctx, id)
		})
		if res.TimedOut {
			logger.Info("%s: conversion not ready after %d attempts, falling back", c.File.Name, res.Attempts)
		}
		return res.Value, nil
	}
}

func tabularStage(sheets driven.SpreadsheetReader) StageFunc {
	return func(ctx context.Context, c *Candidate) (string, error) {
		if sheets == nil {
			return "", errors.New("spreadsheet reader not configured")
		}
		tabs, err := sheets.OpenTabular(ctx, c.Content)
		if err != nil {
			// A spreadsheet that cannot be opened yields no text.
			logger.Warn("%s: open spreadsheet: %v", c.File.Name, err)
			return "", nil
		}
		return JoinSheets(tabs), nil
	}
}

// JoinSheets renders sheets as text: cells space-joined, rows and sheets
// newline-joined.
func JoinSheets(sheets []domain.Sheet) string {
	parts := make([]string, 0, len(sheets))
	for _, sh := range sheets {
		rows := make([]string, 0, len(sh.Rows))
		for _, row := range sh.Rows {
			rows = append(rows, strings.Join(row, " "))
		}
		parts = append(parts, strings.Join(rows, "\n"))
	}
	return strings.Join(parts, "\n")
}

// discard releases a scratch resource, logging failures. It runs on every
// path out of a stage.
func discard(ctx context.Context, s driven.Scratch, id string) {
	if id == "" {
		return
	}
	if err := s.Discard(context.WithoutCancel(ctx), id); err != nil {
		logger.Warn("discard scratch resource %s: %v", id, err)
	}
}
