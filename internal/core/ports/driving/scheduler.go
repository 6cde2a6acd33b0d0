package driving

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// Scheduler runs the pipeline phases on their configured intervals.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or an error occurs.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}

// TaskStatus reports scheduler state for display.
type TaskStatus interface {
	// ListTasks returns every known task.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// History returns recent results for a task, most recent first.
	History(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error)
}
