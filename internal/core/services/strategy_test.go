package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

const goodText = "Umowa najmu lokalu użytkowego zawarta w Krakowie pomiędzy stronami."

func candidate(name, mime string, cfg domain.PipelineConfig) *Candidate {
	return &Candidate{
		File:    domain.File{ID: "f1", Name: name, MimeType: mime},
		Content: []byte("bytes"),
		Config:  cfg,
	}
}

func TestNewStrategyTable_Kinds(t *testing.T) {
	table := NewStrategyTable(StrategyDeps{})

	stageNames := func(k domain.Kind) []string {
		var names []string
		for _, s := range table[k].Stages {
			names = append(names, s.Name)
		}
		return names
	}

	assert.Equal(t, []string{StageOCR}, stageNames(domain.KindImage))
	assert.Equal(t, []string{StageDirectRead, StageOCR}, stageNames(domain.KindPDF))
	assert.Equal(t, []string{StageDirectRead, StageConvert, StageOCR}, stageNames(domain.KindWordDocument))
	assert.Equal(t, []string{StageTabular}, stageNames(domain.KindSpreadsheet))
	assert.Equal(t, []string{StageTabular}, stageNames(domain.KindNativeSpreadsheet))

	_, ok := table[domain.KindUnsupported]
	assert.False(t, ok)
	for _, ch := range table {
		assert.True(t, ch.Terminal)
	}
}

func TestChain_PDF_DirectReadAccepted(t *testing.T) {
	ocr := newFakeOCR("ocr text")
	registry := &fakeRegistry{text: map[string]string{domain.MimePDF: goodText}}
	table := NewStrategyTable(StrategyDeps{Normalisers: registry, OCR: ocr})

	text, err := table[domain.KindPDF].Run(context.Background(), candidate("a.pdf", domain.MimePDF, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Equal(t, goodText, text)
	assert.Zero(t, ocr.calls)
}

func TestChain_PDF_FallsBackToOCR(t *testing.T) {
	ocr := newFakeOCR("ok")
	registry := &fakeRegistry{text: map[string]string{domain.MimePDF: "   "}}
	table := NewStrategyTable(StrategyDeps{Normalisers: registry, OCR: ocr})
	cfg := testPipelineConfig("root")

	text, err := table[domain.KindPDF].Run(context.Background(), candidate("a.pdf", domain.MimePDF, cfg))

	require.NoError(t, err)
	assert.Equal(t, "ok", text, "terminal stage output bypasses the gate")
	assert.Equal(t, 1, ocr.calls)
	assert.Equal(t, cfg.OCRLanguage, ocr.language)
	assert.Equal(t, 1, ocr.discardCount())
}

func TestChain_PDF_DirectReadErrorFallsThrough(t *testing.T) {
	ocr := newFakeOCR(goodText)
	registry := &fakeRegistry{text: map[string]string{domain.MimePDF: ""}, err: errors.New("corrupt")}
	table := NewStrategyTable(StrategyDeps{Normalisers: registry, OCR: ocr})

	text, err := table[domain.KindPDF].Run(context.Background(), candidate("a.pdf", domain.MimePDF, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Equal(t, goodText, text)
}

func TestChain_WordDocument_ConversionTimeoutFallsBackToOCR(t *testing.T) {
	ocr := newFakeOCR(goodText)
	conv := newFakeConverter("never", -1)
	table := NewStrategyTable(StrategyDeps{OCR: ocr, Converter: conv})

	cfg := testPipelineConfig("root")
	cfg.Conversion = domain.PollSettings{Attempts: 8, Delay: 5 * time.Millisecond}

	start := time.Now()
	text, err := table[domain.KindWordDocument].Run(context.Background(), candidate("a.docx", domain.MimeDocx, cfg))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, goodText, text)
	assert.GreaterOrEqual(t, elapsed, 8*5*time.Millisecond)
	assert.Equal(t, 1, conv.discardCount(), "converted document discarded after timeout")
	assert.Equal(t, 1, ocr.discardCount())
}

func TestChain_WordDocument_ConversionAccepted(t *testing.T) {
	ocr := newFakeOCR("unused")
	conv := newFakeConverter(goodText, 2)
	table := NewStrategyTable(StrategyDeps{OCR: ocr, Converter: conv})

	text, err := table[domain.KindWordDocument].Run(context.Background(), candidate("a.docx", domain.MimeDocx, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Equal(t, goodText, text)
	assert.Zero(t, ocr.calls)
	assert.Equal(t, 1, conv.discardCount())
}

func TestChain_Image_OCRStartFailure(t *testing.T) {
	ocr := newFakeOCR("")
	ocr.startErr = errors.New("quota")
	table := NewStrategyTable(StrategyDeps{OCR: ocr})

	_, err := table[domain.KindImage].Run(context.Background(), candidate("a.jpg", "image/jpeg", testPipelineConfig("root")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
	assert.Zero(t, ocr.discardCount())
}

func TestChain_Image_NoOCRConfigured(t *testing.T) {
	table := NewStrategyTable(StrategyDeps{})

	_, err := table[domain.KindImage].Run(context.Background(), candidate("a.png", "image/png", testPipelineConfig("root")))

	assert.Error(t, err)
}

func TestChain_Spreadsheet(t *testing.T) {
	sheets := &fakeSheets{sheets: []domain.Sheet{
		{Name: "A", Rows: [][]string{{"1", "2"}, {"3"}}},
		{Name: "B", Rows: [][]string{{"x"}}},
	}}
	table := NewStrategyTable(StrategyDeps{Sheets: sheets})

	text, err := table[domain.KindSpreadsheet].Run(context.Background(), candidate("a.xlsx", domain.MimeXlsx, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Equal(t, "1 2\n3\nx", text)
}

func TestChain_Spreadsheet_OpenErrorYieldsEmpty(t *testing.T) {
	sheets := &fakeSheets{err: errors.New("not a zip file")}
	table := NewStrategyTable(StrategyDeps{Sheets: sheets})

	text, err := table[domain.KindSpreadsheet].Run(context.Background(), candidate("a.xlsx", domain.MimeXlsx, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestChain_NonTerminal_NothingPasses(t *testing.T) {
	short := func(context.Context, *Candidate) (string, error) { return "short", nil }
	ch := Chain{Stages: []Stage{{Name: "a", Run: short}, {Name: "b", Run: short}}}

	text, err := ch.Run(context.Background(), candidate("a.pdf", domain.MimePDF, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestChain_NonTerminal_FinalErrorSwallowed(t *testing.T) {
	failing := func(context.Context, *Candidate) (string, error) { return "", errors.New("boom") }
	ch := Chain{Stages: []Stage{{Name: "a", Run: failing}}}

	text, err := ch.Run(context.Background(), candidate("a.pdf", domain.MimePDF, testPipelineConfig("root")))

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestJoinSheets_Empty(t *testing.T) {
	assert.Empty(t, JoinSheets(nil))
}
