package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// --- Fakes shared by the pipeline tests ---

// fakeScratch records reads and discards for a recognition backend.
type fakeScratch struct {
	mu        sync.Mutex
	bodies    map[string]string
	readyAt   map[string]int
	reads     map[string]int
	discarded []string
	nextID    int
	startErr  error
}

func newFakeScratch() *fakeScratch {
	return &fakeScratch{
		bodies:  make(map[string]string),
		readyAt: make(map[string]int),
		reads:   make(map[string]int),
	}
}

func (f *fakeScratch) start(body string, readyAt int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.nextID++
	id := "scratch-" + string(rune('a'+f.nextID-1))
	f.bodies[id] = body
	f.readyAt[id] = readyAt
	return id, nil
}

func (f *fakeScratch) ReadBody(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[id]++
	if f.readyAt[id] < 0 || f.reads[id] < f.readyAt[id] {
		return "", domain.ErrNotReady
	}
	return f.bodies[id], nil
}

func (f *fakeScratch) Discard(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discarded = append(f.discarded, id)
	return nil
}

func (f *fakeScratch) discardCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.discarded)
}

// fakeOCR returns text after readyAt reads; readyAt < 0 never becomes ready.
type fakeOCR struct {
	*fakeScratch
	text     string
	readyAt  int
	calls    int
	language string
}

func newFakeOCR(text string) *fakeOCR {
	return &fakeOCR{fakeScratch: newFakeScratch(), text: text, readyAt: 1}
}

func (f *fakeOCR) Recognize(_ context.Context, _ []byte, _, language string) (string, error) {
	f.calls++
	f.language = language
	return f.start(f.text, f.readyAt)
}

// fakeConverter works like fakeOCR for word-document conversion.
type fakeConverter struct {
	*fakeScratch
	text    string
	readyAt int
	calls   int
}

func newFakeConverter(text string, readyAt int) *fakeConverter {
	return &fakeConverter{fakeScratch: newFakeScratch(), text: text, readyAt: readyAt}
}

func (f *fakeConverter) Convert(_ context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	return f.start(f.text, f.readyAt)
}

// fakeSheets returns fixed sheets or an error.
type fakeSheets struct {
	sheets []domain.Sheet
	err    error
}

func (f *fakeSheets) OpenTabular(_ context.Context, _ []byte) ([]domain.Sheet, error) {
	return f.sheets, f.err
}

// fakeRegistry answers direct reads for a fixed set of content types.
type fakeRegistry struct {
	text  map[string]string
	err   error
	calls int
}

func (f *fakeRegistry) Normalise(_ context.Context, raw *domain.RawDocument) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text[raw.MIMEType], nil
}

func (f *fakeRegistry) Register(driven.Normaliser) {}

func (f *fakeRegistry) Supports(mime string) bool {
	_, ok := f.text[mime]
	return ok
}

// fakeLLM returns a canned completion and records the prompts it saw.
type fakeLLM struct {
	mu       sync.Mutex
	response string
	err      error
	messages [][]driven.ChatMessage
	opts     []driven.ChatOptions
}

func (f *fakeLLM) Generate(_ context.Context, _ string, _ driven.GenerateOptions) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	f.opts = append(f.opts, opts)
	return f.response, f.err
}

func (f *fakeLLM) ModelName() string            { return "fake" }
func (f *fakeLLM) Ping(_ context.Context) error { return nil }
func (f *fakeLLM) Close() error                 { return nil }

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

// fakeLanguage always detects the same language.
type fakeLanguage struct {
	code string
	err  error
	seen string
}

func (f *fakeLanguage) Detect(_ context.Context, text string) (string, error) {
	f.seen = text
	return f.code, f.err
}

// fakeLocker hands out locks that can be pre-held.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) Lock(phase string) driven.PhaseLock {
	return &fakeLock{locker: f, phase: phase}
}

type fakeLock struct {
	locker *fakeLocker
	phase  string
}

func (l *fakeLock) TryLock() (bool, error) {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if l.locker.err != nil {
		return false, l.locker.err
	}
	if l.locker.held[l.phase] {
		return false, nil
	}
	l.locker.held[l.phase] = true
	return true, nil
}

func (l *fakeLock) Unlock() error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.phase)
	return nil
}

// fakeMetrics counts observations.
type fakeMetrics struct {
	mu       sync.Mutex
	batches  []domain.BatchReport
	archives []domain.ArchiveReport
	flushes  int
}

func (f *fakeMetrics) ObserveBatch(report domain.BatchReport, _ time.Duration, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, report)
}

func (f *fakeMetrics) ObserveArchive(report domain.ArchiveReport, _ time.Duration, _ error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archives = append(f.archives, report)
}

func (f *fakeMetrics) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

// fakeValidator rejects documents missing a key.
type fakeValidator struct {
	require string
}

func (f *fakeValidator) Validate(doc map[string]any) error {
	if _, ok := doc[f.require]; !ok {
		return errors.New("missing " + f.require)
	}
	return nil
}

// testPipelineConfig returns defaults with short polling.
func testPipelineConfig(rootID string) domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()
	cfg.RootFolderID = rootID
	cfg.Conversion = domain.PollSettings{Attempts: 3, Delay: time.Millisecond}
	return cfg
}

var (
	_ driven.OCRService         = (*fakeOCR)(nil)
	_ driven.ConversionService  = (*fakeConverter)(nil)
	_ driven.SpreadsheetReader  = (*fakeSheets)(nil)
	_ driven.NormaliserRegistry = (*fakeRegistry)(nil)
	_ driven.LLMService         = (*fakeLLM)(nil)
	_ driven.LanguageDetector   = (*fakeLanguage)(nil)
	_ driven.PhaseLocker        = (*fakeLocker)(nil)
	_ driven.MetricsRecorder    = (*fakeMetrics)(nil)
	_ driven.MetadataValidator  = (*fakeValidator)(nil)
)
