// Package cli is the cobra command tree of the archivist binary.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Command annotations read by setupServices.
const (
	annotationPipeline     = "pipeline"
	annotationSkipServices = "skip-services"
)

var version = "dev"

// Options are the global flags handed to the Builder.
type Options struct {
	ConfigDir    string
	Backend      string
	RootFolderID string
	Verbose      bool

	// Pipeline is set when the command needs the document store and the
	// phase services. Settings and status commands run without it.
	Pipeline bool
}

// Services are the ports the commands drive. Any field may be nil when the
// command that runs does not need it.
type Services struct {
	Extraction driving.TextExtraction
	Metadata   driving.MetadataGeneration
	Archive    driving.Archival
	Scheduler  driving.Scheduler
	Tasks      driving.TaskStatus
	Settings   driving.SettingsService
	Config     driven.ConfigStore
	Locker     driven.PhaseLocker
	Metrics    driven.MetricsRecorder

	// Pipeline is the resolved configuration passed to every phase.
	Pipeline domain.PipelineConfig

	// Close releases what the builder opened.
	Close func() error
}

// Builder wires Services from the parsed global flags.
type Builder func(ctx context.Context, opts Options) (*Services, error)

var (
	buildServices Builder
	services      *Services
	globalOpts    Options
)

var rootCmd = &cobra.Command{
	Use:   "archivist",
	Short: "Turn document trees into text and metadata sidecars, then archive them",
	Long: `archivist scans a document tree, writes a plain-text sidecar and a
structured metadata sidecar next to every source document, and moves
processed documents into an archive tree.

Each command does a bounded amount of work and can be re-run at any time;
sidecar presence is the only record of progress.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setupServices,
	PersistentPostRunE: teardownServices,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&globalOpts.Verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&globalOpts.ConfigDir, "config-dir", "", "configuration directory (default ~/.archivist)")
	flags.StringVar(&globalOpts.Backend, "backend", "", "document store backend: drive or local (overrides store.backend)")
	flags.StringVar(&globalOpts.RootFolderID, "root", "", "folder ID of the tree to process (overrides pipeline.root_folder_id)")
}

// SetBuilder installs the function that wires services for each command.
func SetBuilder(b Builder) {
	buildServices = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func setupServices(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(globalOpts.Verbose)

	if cmd.Annotations[annotationSkipServices] == "true" {
		return nil
	}
	if buildServices == nil {
		return errors.New("services not configured")
	}

	opts := globalOpts
	opts.Pipeline = cmd.Annotations[annotationPipeline] == "true"

	svc, err := buildServices(cmd.Context(), opts)
	if err != nil {
		return fmt.Errorf("failed to initialise: %w", err)
	}
	services = svc
	return nil
}

func teardownServices(_ *cobra.Command, _ []string) error {
	if services == nil {
		return nil
	}
	svc := services
	services = nil
	if svc.Close != nil {
		return svc.Close()
	}
	return nil
}

// pipelineCommand marks cmd as needing the document store.
func pipelineCommand(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[annotationPipeline] = "true"
	return cmd
}

func requireServices() (*Services, error) {
	if services == nil {
		return nil, errors.New("services not configured")
	}
	return services, nil
}
