package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archivist/internal/logger"
)

var runCmd = pipelineCommand(&cobra.Command{
	Use:   "run",
	Short: "Run the pipeline phases on their schedule",
	Long: `Starts the scheduler in the foreground. Each phase runs on its configured
interval (see the [scheduler] table in config.toml) and records its result for
'archivist status'. Interrupt or SIGTERM stops it once running tasks finish.`,
	RunE: runScheduler,
})

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScheduler(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("scheduler started, press Ctrl+C to stop")
	err = svc.Scheduler.Start(ctx)
	stopErr := svc.Scheduler.Stop()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err == nil && stopErr == nil {
		logger.Info("scheduler stopped")
	}
	return errors.Join(err, stopErr)
}
