package domain

import (
	"fmt"
	"time"
)

// Pipeline policy defaults.
const (
	DefaultPageSize         = 10
	DefaultOCRLanguage      = "pl"
	DefaultMinTextLength    = 30
	DefaultLowTextThreshold = 20
	DefaultRawTextLimit     = 10000
	DefaultLanguageSample   = 150
	DefaultIntakeRootName   = "Intake"
	DefaultFolderDelimiter  = "-"
	DefaultMaxTokens        = 2500
	DefaultTemperature      = 0.1
	DefaultConvertAttempts  = 8
	DefaultConvertDelay     = 500 * time.Millisecond

	// LowTextWarning is appended to extracted text shorter than the
	// low-text threshold.
	LowTextWarning = "\n\n⚠️ Ostrzeżenie: mała ilość tekstu."
)

// QualityOptions tunes the extraction quality gate.
type QualityOptions struct {
	// MinLength is the minimum trimmed rune count.
	MinLength int `koanf:"min_length"`

	// AllowNumericTables disables the 0.3 letter-ratio floor.
	AllowNumericTables bool `koanf:"allow_numeric_tables"`
}

// DefaultQualityOptions returns the gate defaults: 30 runes, tables allowed.
func DefaultQualityOptions() QualityOptions {
	return QualityOptions{MinLength: DefaultMinTextLength, AllowNumericTables: true}
}

// PollSettings bounds polling of an asynchronous capability.
type PollSettings struct {
	Attempts int           `koanf:"attempts"`
	Delay    time.Duration `koanf:"delay"`
}

// CompletionSettings tunes the metadata completion request.
type CompletionSettings struct {
	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`
}

// ArchiveSettings configures the archival mover.
type ArchiveSettings struct {
	// SourceFolderID is the tree being archived. Defaults to the pipeline root.
	SourceFolderID string `koanf:"source_folder_id"`

	// DestFolderID is the archive tree.
	DestFolderID string `koanf:"dest_folder_id"`

	// AllowedExtensions lists extensions (with dot) eligible for moving.
	AllowedExtensions []string `koanf:"allowed_extensions"`

	// RequireMetadata leaves base-name groups without a metadata sidecar in place.
	RequireMetadata bool `koanf:"require_metadata"`
}

// PipelineConfig is the configuration passed into every phase entry point.
type PipelineConfig struct {
	// RootFolderID is the tree scanned by extraction and metadata phases.
	RootFolderID string `koanf:"root_folder_id"`

	// IntakeRootName is the sentinel folder whose children encode
	// "location-customer".
	IntakeRootName string `koanf:"intake_root_name"`

	// FolderDelimiter splits project folder names.
	FolderDelimiter string `koanf:"folder_delimiter"`

	// PageSize caps successful items per batch.
	PageSize int `koanf:"page_size"`

	// OCRLanguage is passed to the OCR capability.
	OCRLanguage string `koanf:"ocr_language"`

	Quality QualityOptions `koanf:"quality"`

	// LowTextThreshold is the rune count below which the warning is appended.
	LowTextThreshold int `koanf:"low_text_threshold"`

	// RawTextLimit is the largest text inlined into textData.rawText.
	RawTextLimit int `koanf:"raw_text_limit"`

	// LanguageSample is how many leading runes the language detector sees.
	LanguageSample int `koanf:"language_sample"`

	// SourceExtensions is the probe order used to find a text sidecar's source.
	SourceExtensions []string `koanf:"source_extensions"`

	Conversion PollSettings       `koanf:"conversion"`
	Completion CompletionSettings `koanf:"completion"`
	Archive    ArchiveSettings    `koanf:"archive"`
}

// DefaultPipelineConfig returns the pipeline defaults. Folder IDs are left
// empty and must be supplied by configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		IntakeRootName:   DefaultIntakeRootName,
		FolderDelimiter:  DefaultFolderDelimiter,
		PageSize:         DefaultPageSize,
		OCRLanguage:      DefaultOCRLanguage,
		Quality:          DefaultQualityOptions(),
		LowTextThreshold: DefaultLowTextThreshold,
		RawTextLimit:     DefaultRawTextLimit,
		LanguageSample:   DefaultLanguageSample,
		SourceExtensions: []string{"pdf", "jpg", "jpeg", "png", "docx", "xlsx"},
		Conversion: PollSettings{
			Attempts: DefaultConvertAttempts,
			Delay:    DefaultConvertDelay,
		},
		Completion: CompletionSettings{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		Archive: ArchiveSettings{
			AllowedExtensions: []string{".pdf", ".docx", ".xlsx", ".jpg", ".png", ".tiff", ".txt", ".json"},
		},
	}
}

// ArchiveSource returns the folder the mover reads from.
func (c PipelineConfig) ArchiveSource() string {
	if c.Archive.SourceFolderID != "" {
		return c.Archive.SourceFolderID
	}
	return c.RootFolderID
}

// Validate checks the values every phase depends on.
func (c PipelineConfig) Validate() error {
	switch {
	case c.PageSize <= 0:
		return fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidInput, c.PageSize)
	case c.Quality.MinLength < 0:
		return fmt.Errorf("%w: quality min length must not be negative", ErrInvalidInput)
	case c.Conversion.Attempts <= 0:
		return fmt.Errorf("%w: conversion attempts must be positive", ErrInvalidInput)
	case c.Conversion.Delay < 0:
		return fmt.Errorf("%w: conversion delay must not be negative", ErrInvalidInput)
	case c.RawTextLimit < 0:
		return fmt.Errorf("%w: raw text limit must not be negative", ErrInvalidInput)
	}
	return nil
}

// Phase names a pipeline stage.
type Phase string

// Pipeline phases.
const (
	PhaseExtraction Phase = "extraction"
	PhaseMetadata   Phase = "metadata"
	PhaseArchive    Phase = "archive"
)

// BatchReport summarises one extraction or metadata batch.
type BatchReport struct {
	Phase      Phase
	Candidates int
	Processed  int
	Skipped    int
	Failed     int
}

// ArchiveReport summarises one archival run.
type ArchiveReport struct {
	FoldersCreated int
	Copied         int
	Skipped        int
	Failed         int
	BytesMoved     int64
}
