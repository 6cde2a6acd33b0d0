package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
	"github.com/custodia-labs/archivist/internal/logger"
)

// historyRetention is how many results are kept per task.
const historyRetention = 100

// Ensure Scheduler implements the interfaces.
var (
	_ driving.Scheduler  = (*Scheduler)(nil)
	_ driving.TaskStatus = (*Scheduler)(nil)
)

// Phases are the pipeline runners the scheduler drives. Any may be nil,
// in which case its task records an error when due.
type Phases struct {
	Extraction driving.TextExtraction
	Metadata   driving.MetadataGeneration
	Archive    driving.Archival

	// Metrics is optional.
	Metrics driven.MetricsRecorder

	// Locker guards each phase against a concurrent CLI run. Optional.
	Locker driven.PhaseLocker
}

// Scheduler manages background task execution.
// It is a pure core service with no external control API.
type Scheduler struct {
	config   domain.SchedulerConfig
	store    driven.SchedulerStore
	phases   Phases
	pipeline domain.PipelineConfig

	mu       sync.Mutex
	running  bool
	inFlight map[string]bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	phases Phases,
	pipeline domain.PipelineConfig,
) *Scheduler {
	return &Scheduler{
		config:   config,
		store:    store,
		phases:   phases,
		pipeline: pipeline,
		inFlight: make(map[string]bool),
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		logger.Info("scheduler: disabled by configuration")
	}

	// Initialise tasks in store
	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx)
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// ListTasks returns every task known to the store.
func (s *Scheduler) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	return s.store.ListTasks(ctx)
}

// History returns recent results for a task, most recent first.
func (s *Scheduler) History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	return s.store.GetTaskHistory(ctx, taskID, limit)
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	for _, id := range domain.TaskIDs() {
		taskCfg := s.config.GetTaskConfig(id)
		if taskCfg.Interval <= 0 {
			continue
		}
		if err := s.ensureTask(ctx, id, domain.TaskName(id), taskCfg); err != nil {
			return fmt.Errorf("ensure task %s: %w", id, err)
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		// New tasks are due immediately.
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now(),
		}
	} else {
		// Update interval if changed
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			// Recalculate next run from now
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context) error {
	// Check for due tasks immediately on startup
	s.checkAndRunDueTasks(ctx)

	// Use a 1-minute ticker to check for due tasks
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	if !s.config.Enabled {
		return
	}
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("scheduler: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || !task.NextRun.After(now) {
			s.runTask(ctx, &task)
		}
	}
}

// runTask executes a single task in the background. A task still running
// from a previous tick is not started again.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	if s.inFlight[task.ID] {
		s.mu.Unlock()
		logger.Debug("scheduler: %s still running, skipping", task.ID)
		return
	}
	s.inFlight[task.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDTextExtraction:
			result.ItemsProcessed, err = s.runExtraction(ctx)
		case domain.TaskIDMetadataGeneration:
			result.ItemsProcessed, err = s.runMetadata(ctx)
		case domain.TaskIDArchive:
			result.ItemsProcessed, err = s.runArchive(ctx)
		default:
			logger.Warn("scheduler: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = time.Now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
			logger.Error("scheduler: %s failed: %v", task.ID, err)
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		// Update task state
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("scheduler: failed to save task %s: %v", task.ID, saveErr)
		}

		// Record result for history
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("scheduler: failed to record result for %s: %v", task.ID, recordErr)
		}

		if pruneErr := s.store.PruneHistory(ctx, historyRetention); pruneErr != nil {
			logger.Warn("scheduler: failed to prune history: %v", pruneErr)
		}

		if s.phases.Metrics != nil {
			if flushErr := s.phases.Metrics.Flush(); flushErr != nil {
				logger.Warn("scheduler: failed to flush metrics: %v", flushErr)
			}
		}
	}()
}

func (s *Scheduler) runExtraction(ctx context.Context) (int, error) {
	if s.phases.Extraction == nil {
		return 0, fmt.Errorf("%s: extraction not configured", domain.TaskIDTextExtraction)
	}
	start := time.Now()
	var report domain.BatchReport
	err := RunLocked(s.phases.Locker, domain.PhaseExtraction, func() (err error) {
		report, err = s.phases.Extraction.RunBatch(ctx, s.pipeline)
		return err
	})
	if s.phases.Metrics != nil {
		s.phases.Metrics.ObserveBatch(report, time.Since(start), err)
	}
	return report.Processed, err
}

func (s *Scheduler) runMetadata(ctx context.Context) (int, error) {
	if s.phases.Metadata == nil {
		return 0, fmt.Errorf("%s: %w", domain.TaskIDMetadataGeneration, domain.ErrLLMUnavailable)
	}
	start := time.Now()
	var report domain.BatchReport
	err := RunLocked(s.phases.Locker, domain.PhaseMetadata, func() (err error) {
		report, err = s.phases.Metadata.RunBatch(ctx, s.pipeline)
		return err
	})
	if s.phases.Metrics != nil {
		s.phases.Metrics.ObserveBatch(report, time.Since(start), err)
	}
	return report.Processed, err
}

func (s *Scheduler) runArchive(ctx context.Context) (int, error) {
	if s.phases.Archive == nil {
		return 0, fmt.Errorf("%s: archive not configured", domain.TaskIDArchive)
	}
	start := time.Now()
	var report domain.ArchiveReport
	err := RunLocked(s.phases.Locker, domain.PhaseArchive, func() (err error) {
		report, err = s.phases.Archive.Run(ctx, s.pipeline)
		return err
	})
	if s.phases.Metrics != nil {
		s.phases.Metrics.ObserveArchive(report, time.Since(start), err)
	}
	return report.Copied, err
}
