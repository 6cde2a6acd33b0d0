package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

var historyLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scheduled tasks and their recent results",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&historyLimit, "limit", 5, "results shown per task")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Tasks == nil {
		return errors.New("task status not configured")
	}

	ctx := cmd.Context()
	tasks, err := svc.Tasks.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks recorded yet. Start the scheduler with 'archivist run'.")
		return nil
	}

	now := time.Now()
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.Name,
			yesNo(t.Enabled),
			t.Interval.String(),
			relative(t.LastRun, now),
			relative(t.NextRun, now),
			t.LastError,
		})
	}
	cmd.Println(renderTable(
		[]string{"Task", "Enabled", "Interval", "Last run", "Next run", "Last error"},
		rows,
		nil,
	))

	if historyLimit <= 0 {
		return nil
	}

	var history [][]string
	for _, t := range tasks {
		results, err := svc.Tasks.History(ctx, t.ID, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load history for %s: %w", t.ID, err)
		}
		for _, r := range results {
			history = append(history, []string{
				t.Name,
				relative(r.StartedAt, now),
				r.EndedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
				outcome(r),
				strconv.Itoa(r.ItemsProcessed),
			})
		}
	}
	if len(history) > 0 {
		cmd.Println()
		cmd.Println(renderTable(
			[]string{"Task", "Started", "Took", "Result", "Items"},
			history,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
		))
	}
	return nil
}

func relative(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func outcome(r domain.TaskResult) string {
	if r.Success {
		return "ok"
	}
	return "error: " + r.Error
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
