package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

type mockBatchRunner struct {
	report domain.BatchReport
	err    error
	calls  int
	gotCfg domain.PipelineConfig
}

func (m *mockBatchRunner) RunBatch(_ context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error) {
	m.calls++
	m.gotCfg = cfg
	return m.report, m.err
}

type mockArchival struct {
	report domain.ArchiveReport
	err    error
	gotCfg domain.PipelineConfig
}

func (m *mockArchival) Run(_ context.Context, cfg domain.PipelineConfig) (domain.ArchiveReport, error) {
	m.gotCfg = cfg
	return m.report, m.err
}

type mockScheduler struct {
	startErr error
	started  bool
	stopped  bool
}

func (m *mockScheduler) Start(_ context.Context) error {
	m.started = true
	return m.startErr
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

type mockTaskStatus struct {
	tasks   []domain.ScheduledTask
	history map[string][]domain.TaskResult
}

func (m *mockTaskStatus) ListTasks(_ context.Context) ([]domain.ScheduledTask, error) {
	return m.tasks, nil
}

func (m *mockTaskStatus) History(_ context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	results := m.history[taskID]
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

type mockLock struct {
	locker *mockLocker
	phase  string
}

func (l *mockLock) TryLock() (bool, error) {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if l.locker.held[l.phase] {
		return false, nil
	}
	l.locker.held[l.phase] = true
	return true, nil
}

func (l *mockLock) Unlock() error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	delete(l.locker.held, l.phase)
	return nil
}

type mockLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMockLocker() *mockLocker {
	return &mockLocker{held: make(map[string]bool)}
}

func (m *mockLocker) Lock(phase string) driven.PhaseLock {
	return &mockLock{locker: m, phase: phase}
}

type mockMetrics struct {
	batches  []domain.BatchReport
	archives []domain.ArchiveReport
	errs     []error
	flushes  int
}

func (m *mockMetrics) ObserveBatch(report domain.BatchReport, _ time.Duration, err error) {
	m.batches = append(m.batches, report)
	m.errs = append(m.errs, err)
}

func (m *mockMetrics) ObserveArchive(report domain.ArchiveReport, _ time.Duration, err error) {
	m.archives = append(m.archives, report)
	m.errs = append(m.errs, err)
}

func (m *mockMetrics) Flush() error {
	m.flushes++
	return nil
}

// testPipeline is a valid pipeline configuration rooted at "root".
func testPipeline() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()
	cfg.RootFolderID = "root"
	cfg.Archive.DestFolderID = "archive"
	return cfg
}

// execute runs the root command against svc and returns everything written.
// The builder's options are stored in gotOpts when it is non-nil.
func execute(t *testing.T, svc *Services, gotOpts *Options, args ...string) (string, error) {
	t.Helper()
	return executeWith(t, func(_ context.Context, opts Options) (*Services, error) {
		if gotOpts != nil {
			*gotOpts = opts
		}
		return svc, nil
	}, args...)
}

// executeWith runs the root command with a custom builder after resetting
// flag state left behind by earlier runs.
func executeWith(t *testing.T, builder Builder, args ...string) (string, error) {
	t.Helper()

	pageSize, archiveSrcID, archiveDstID, historyLimit = 0, "", "", 5
	globalOpts = Options{}
	services = nil

	SetBuilder(builder)
	t.Cleanup(func() { SetBuilder(nil) })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(new(bytes.Buffer))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}
