package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/archivist/internal/adapters/driven/ai"
	"github.com/custodia-labs/archivist/internal/adapters/driven/config/file"
	"github.com/custodia-labs/archivist/internal/adapters/driven/language"
	"github.com/custodia-labs/archivist/internal/adapters/driven/lock"
	"github.com/custodia-labs/archivist/internal/adapters/driven/metrics"
	"github.com/custodia-labs/archivist/internal/adapters/driven/ocr"
	"github.com/custodia-labs/archivist/internal/adapters/driven/schema"
	"github.com/custodia-labs/archivist/internal/adapters/driven/spreadsheet"
	"github.com/custodia-labs/archivist/internal/adapters/driven/storage/local"
	"github.com/custodia-labs/archivist/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/archivist/internal/adapters/driving/cli"
	"github.com/custodia-labs/archivist/internal/connectors/google"
	"github.com/custodia-labs/archivist/internal/connectors/google/drive"
	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/services"
	"github.com/custodia-labs/archivist/internal/logger"
	"github.com/custodia-labs/archivist/internal/normalisers"
)

// Config keys read only at wiring time.
const (
	keyScratchFolder   = "store.scratch_folder_id"
	keyMetricsTextfile = "metrics.textfile"
	keyTesseract       = "ocr.tesseract"
	keyPdftoppm        = "ocr.pdftoppm"
	keyTessdata        = "ocr.tessdata_dir"
	keyOCRMaxPages     = "ocr.max_pages"
	keyLanguages       = "language.candidates"
)

// backend is a document store plus the recognition capabilities that go with it.
type backend struct {
	store     driven.DocumentStore
	ocr       driven.OCRService
	converter driven.ConversionService
}

// build wires the services for one command invocation.
func build(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	dir := filepath.Dir(configStore.Path())

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, err
	}
	if opts.Backend != "" {
		b := domain.StoreBackend(opts.Backend)
		if !b.IsValid() {
			return nil, fmt.Errorf("%w: invalid backend %q", domain.ErrInvalidInput, opts.Backend)
		}
		settings.Store.Backend = b
	}

	pipeline, err := file.LoadPipelineConfig(configStore.Path())
	if err != nil {
		return nil, err
	}
	if opts.RootFolderID != "" {
		pipeline.RootFolderID = opts.RootFolderID
	}

	db, err := sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return nil, err
	}
	closers := []func() error{db.Close}
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	locker, err := lock.NewLocker(filepath.Join(dir, "locks"))
	if err != nil {
		_ = closeAll()
		return nil, err
	}

	svc := &cli.Services{
		Settings: settingsService,
		Config:   configStore,
		Locker:   locker,
		Metrics:  metrics.NewRecorder(configStore.GetString(keyMetricsTextfile)),
		Pipeline: pipeline,
		Close:    closeAll,
	}
	schedulerConfig := settingsService.GetSchedulerConfig()

	if !opts.Pipeline {
		svc.Tasks = services.NewScheduler(schedulerConfig, db.SchedulerStore(), services.Phases{}, pipeline)
		return svc, nil
	}

	registry := normalisers.Default()
	be, err := openBackend(ctx, settings.Store, configStore, db, registry, dir)
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	logger.Debug("backend: %s", settings.Store.Backend.Description())

	index := services.NewPairingIndex(be.store)
	chains := services.NewStrategyTable(services.StrategyDeps{
		Normalisers: registry,
		OCR:         be.ocr,
		Converter:   be.converter,
		Sheets:      spreadsheet.NewReader(),
	})
	extraction := services.NewExtractionService(be.store, index, services.NewTextExtractor(be.store, chains))
	archive := services.NewArchiveService(be.store)
	svc.Extraction = extraction
	svc.Archive = archive

	phases := services.Phases{
		Extraction: extraction,
		Archive:    archive,
		Metrics:    svc.Metrics,
		Locker:     locker,
	}

	llm, err := ai.CreateAndValidateLLMService(ctx, &settings.LLM)
	switch {
	case err != nil:
		logger.Warn("metadata generation disabled: %v", err)
	case llm == nil:
		logger.Debug("no LLM configured, metadata generation disabled")
	default:
		closers = append(closers, llm.Close)
		metadata, err := newMetadataService(be.store, index, llm, registry, configStore, dir)
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		svc.Metadata = metadata
		phases.Metadata = metadata
	}

	scheduler := services.NewScheduler(schedulerConfig, db.SchedulerStore(), phases, pipeline)
	svc.Scheduler = scheduler
	svc.Tasks = scheduler
	return svc, nil
}

func newMetadataService(
	store driven.DocumentStore,
	index *services.PairingIndex,
	llm driven.LLMService,
	registry driven.NormaliserRegistry,
	configStore driven.ConfigStore,
	dir string,
) (*services.MetadataService, error) {
	prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewMetadataValidator()
	if err != nil {
		return nil, err
	}
	detector := language.NewDetector(language.WithCandidates(configStore.GetStringSlice(keyLanguages)...))
	metadata := services.NewMetadataService(store, index, llm, prompts, validator, detector)
	metadata.SetNormalisers(registry)
	return metadata, nil
}

func openBackend(
	ctx context.Context,
	st domain.StoreSettings,
	configStore driven.ConfigStore,
	db *sqlite.Store,
	registry driven.NormaliserRegistry,
	dir string,
) (*backend, error) {
	switch st.Backend {
	case domain.BackendDrive:
		ts, err := google.NewTokenSource(ctx, st.CredentialsFile)
		if err != nil {
			return nil, err
		}
		driveService, err := google.NewDriveService(ctx, ts)
		if err != nil {
			return nil, err
		}
		limiter := google.NewRateLimiter()
		cfg := drive.DefaultConfig()
		cfg.ScratchFolderID = configStore.GetString(keyScratchFolder)
		return &backend{
			store:     drive.NewStore(driveService, limiter, cfg),
			ocr:       drive.NewOCR(driveService, limiter, cfg),
			converter: drive.NewConverter(driveService, limiter, cfg),
		}, nil

	case domain.BackendLocal:
		if st.LocalRoot == "" {
			return nil, fmt.Errorf("%w: the local backend requires store.local_root", domain.ErrInvalidInput)
		}
		store, err := local.NewDocumentStore(st.LocalRoot, db.MarkerStore())
		if err != nil {
			return nil, err
		}
		tesseract, err := ocr.NewTesseract(ocr.Config{
			Tesseract:   configStore.GetString(keyTesseract),
			Pdftoppm:    configStore.GetString(keyPdftoppm),
			TessdataDir: configStore.GetString(keyTessdata),
			MaxPages:    configStore.GetInt(keyOCRMaxPages),
			ScratchDir:  filepath.Join(dir, "scratch", "ocr"),
		})
		if err != nil {
			return nil, err
		}
		converter, err := ocr.NewConverter(registry, filepath.Join(dir, "scratch", "convert"))
		if err != nil {
			return nil, err
		}
		return &backend{store: store, ocr: tesseract, converter: converter}, nil

	default:
		return nil, fmt.Errorf("%w: invalid store backend %q", domain.ErrInvalidInput, st.Backend)
	}
}
