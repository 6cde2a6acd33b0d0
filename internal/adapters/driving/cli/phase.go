package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/archivist/internal/core/domain"
	coreservices "github.com/custodia-labs/archivist/internal/core/services"
	"github.com/custodia-labs/archivist/internal/logger"
)

// batchRunner is satisfied by both the extraction and the metadata phase.
type batchRunner interface {
	RunBatch(ctx context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error)
}

var (
	pageSize     int
	archiveSrcID string
	archiveDstID string
)

var extractCmd = pipelineCommand(&cobra.Command{
	Use:   "extract",
	Short: "Run one text extraction batch",
	Long: `Finds source documents without a text sidecar, extracts their text and
writes <base>.txt next to each. Stops after --page-size successful writes.`,
	RunE: runExtract,
})

var metadataCmd = pipelineCommand(&cobra.Command{
	Use:   "metadata",
	Short: "Run one metadata generation batch",
	Long: `Finds text sidecars without a metadata sidecar, asks the configured LLM
to fill the metadata template and writes <base>Metadata.json.
Requires an LLM provider (see 'archivist settings').`,
	RunE: runMetadata,
})

var archiveCmd = pipelineCommand(&cobra.Command{
	Use:   "archive",
	Short: "Mirror the source tree into the archive and move files across",
	Long: `Recreates the folder structure of the source tree under the archive
folder, then copies every allow-listed file across and trashes the original
once the copy is verified. Files already present in the archive are left alone.`,
	RunE: runArchive,
})

func init() {
	extractCmd.Flags().IntVar(&pageSize, "page-size", 0, "maximum sidecars written in this batch (default from config)")
	metadataCmd.Flags().IntVar(&pageSize, "page-size", 0, "maximum sidecars written in this batch (default from config)")
	archiveCmd.Flags().StringVar(&archiveSrcID, "source", "", "folder ID of the tree to archive (default: the pipeline root)")
	archiveCmd.Flags().StringVar(&archiveDstID, "dest", "", "folder ID of the archive tree (overrides pipeline.archive.dest_folder_id)")

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Extraction == nil {
		return errors.New("extraction service not configured")
	}
	return runBatchPhase(cmd, svc, domain.PhaseExtraction, svc.Extraction)
}

func runMetadata(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Metadata == nil {
		return fmt.Errorf("metadata generation: %w. Configure one with 'archivist settings set llm.provider'",
			domain.ErrLLMUnavailable)
	}
	return runBatchPhase(cmd, svc, domain.PhaseMetadata, svc.Metadata)
}

func runBatchPhase(cmd *cobra.Command, svc *Services, phase domain.Phase, runner batchRunner) error {
	cfg := svc.Pipeline
	if pageSize > 0 {
		cfg.PageSize = pageSize
	}

	logger.Section(string(phase))
	start := time.Now()

	var report domain.BatchReport
	err := coreservices.RunLocked(svc.Locker, phase, func() (err error) {
		report, err = runner.RunBatch(cmd.Context(), cfg)
		return err
	})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrPhaseLocked) {
		recordMetrics(svc, func() { svc.Metrics.ObserveBatch(report, elapsed, err) })
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", phase, err)
	}

	printBatchReport(cmd, report, elapsed)
	return nil
}

func runArchive(cmd *cobra.Command, _ []string) error {
	svc, err := requireServices()
	if err != nil {
		return err
	}
	if svc.Archive == nil {
		return errors.New("archive service not configured")
	}

	cfg := svc.Pipeline
	if archiveSrcID != "" {
		cfg.Archive.SourceFolderID = archiveSrcID
	}
	if archiveDstID != "" {
		cfg.Archive.DestFolderID = archiveDstID
	}

	logger.Section(string(domain.PhaseArchive))
	start := time.Now()

	var report domain.ArchiveReport
	err = coreservices.RunLocked(svc.Locker, domain.PhaseArchive, func() (err error) {
		report, err = svc.Archive.Run(cmd.Context(), cfg)
		return err
	})
	elapsed := time.Since(start)

	if !errors.Is(err, domain.ErrPhaseLocked) {
		recordMetrics(svc, func() { svc.Metrics.ObserveArchive(report, elapsed, err) })
	}
	if err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	printArchiveReport(cmd, report, elapsed)
	return nil
}

// recordMetrics observes and flushes when a recorder is wired.
// A failed flush is logged, never returned.
func recordMetrics(svc *Services, observe func()) {
	if svc.Metrics == nil {
		return
	}
	observe()
	if err := svc.Metrics.Flush(); err != nil {
		logger.Warn("failed to flush metrics: %v", err)
	}
}

func printBatchReport(cmd *cobra.Command, r domain.BatchReport, elapsed time.Duration) {
	cmd.Printf("%s: %d candidates, %d processed, %d skipped, %d failed (%s)\n",
		r.Phase, r.Candidates, r.Processed, r.Skipped, r.Failed, elapsed.Round(time.Millisecond))
	if r.Candidates == 0 {
		cmd.Println("Nothing to do.")
	}
}

func printArchiveReport(cmd *cobra.Command, r domain.ArchiveReport, elapsed time.Duration) {
	cmd.Printf("archive: %d folders created, %d copied, %d skipped, %d failed, %s moved (%s)\n",
		r.FoldersCreated, r.Copied, r.Skipped, r.Failed,
		humanize.Bytes(uint64(max(r.BytesMoved, 0))), elapsed.Round(time.Millisecond))
}
