package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/core/ports/driving"
	"github.com/custodia-labs/archivist/internal/logger"
)

// Ensure MetadataService implements the interface.
var _ driving.MetadataGeneration = (*MetadataService)(nil)

// requiredMetadataFields must be present in every completion.
var requiredMetadataFields = []string{"fileName", "fileType", "project", "document", "textData"}

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?[ \t]*\r?\n?")
	trailingFence = regexp.MustCompile("\r?\n?```$")
)

// StripCodeFences removes a markdown code fence wrapped around a completion.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// MetadataService builds metadata sidecars from text sidecars.
type MetadataService struct {
	store     driven.DocumentStore
	index     *PairingIndex
	llm       driven.LLMService
	prompts   driven.PromptStore
	validator driven.MetadataValidator
	language  driven.LanguageDetector
	decoder   driven.NormaliserRegistry
	now       func() time.Time
}

// NewMetadataService creates a metadata service. prompts, validator and
// language may be nil; llm may be nil, in which case every run fails with
// domain.ErrLLMUnavailable.
func NewMetadataService(
	store driven.DocumentStore,
	index *PairingIndex,
	llm driven.LLMService,
	prompts driven.PromptStore,
	validator driven.MetadataValidator,
	language driven.LanguageDetector,
) *MetadataService {
	return &MetadataService{
		store:     store,
		index:     index,
		llm:       llm,
		prompts:   prompts,
		validator: validator,
		language:  language,
		now:       time.Now,
	}
}

// SetNormalisers sets the registry used to decode text sidecars. Without
// one, or without a text/plain entry, sidecars are used byte for byte.
func (s *MetadataService) SetNormalisers(registry driven.NormaliserRegistry) {
	s.decoder = registry
}

// RunBatch writes metadata sidecars for up to cfg.PageSize text sidecars.
func (s *MetadataService) RunBatch(ctx context.Context, cfg domain.PipelineConfig) (domain.BatchReport, error) {
	report := domain.BatchReport{Phase: domain.PhaseMetadata}
	if err := cfg.Validate(); err != nil {
		return report, err
	}
	if cfg.RootFolderID == "" {
		return report, fmt.Errorf("%w: root folder not configured", domain.ErrInvalidInput)
	}
	if s.llm == nil {
		return report, domain.ErrLLMUnavailable
	}

	logger.Section("Metadata Generation")
	candidates, err := s.index.FindTextArtifactsNeedingMetadata(ctx, cfg.RootFolderID)
	if err != nil {
		return report, fmt.Errorf("discover text sidecars: %w", err)
	}
	report.Candidates = len(candidates)
	logger.Info("metadata: %d candidates", len(candidates))

	for _, textFile := range candidates {
		if report.Processed >= cfg.PageSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		written, err := s.generate(ctx, cfg, textFile)
		switch {
		case IsMetadataRejection(err):
			logger.Warn("metadata: %s: completion rejected: %v", textFile.Name, err)
			report.Failed++
		case err != nil:
			logger.Error("metadata: %s: %v", textFile.Name, err)
			report.Failed++
		case written:
			report.Processed++
		default:
			report.Skipped++
		}
	}

	logger.Info("metadata: processed %d, skipped %d, failed %d", report.Processed, report.Skipped, report.Failed)
	return report, nil
}

// generate synthesises and persists one record. Panics are recovered.
func (s *MetadataService) generate(ctx context.Context, cfg domain.PipelineConfig, textFile domain.File) (written bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	name := domain.MetadataSidecarName(textFile.BaseName())
	if exists, err := s.exists(ctx, textFile.ParentID, name); err != nil || exists {
		return false, err
	}

	record, err := s.Synthesize(ctx, cfg, textFile)
	if err != nil {
		return false, err
	}
	data, err := record.MarshalIndent()
	if err != nil {
		return false, fmt.Errorf("encode record: %w", err)
	}

	if exists, err := s.exists(ctx, textFile.ParentID, name); err != nil || exists {
		return false, err
	}
	if _, err := s.store.CreateFile(ctx, textFile.ParentID, name, domain.MimeJSON, data); err != nil {
		return false, fmt.Errorf("create sidecar: %w", err)
	}
	logger.Info("metadata: wrote %s", name)
	return true, nil
}

func (s *MetadataService) exists(ctx context.Context, folderID, name string) (bool, error) {
	f, err := s.store.FindByName(ctx, folderID, name)
	if err != nil {
		return false, fmt.Errorf("check sidecar: %w", err)
	}
	return f != nil, nil
}

// Synthesize builds the local template for textFile, asks the LLM to fill
// its blank fields, validates the answer and restores every field the
// template populated. Nothing is persisted.
func (s *MetadataService) Synthesize(ctx context.Context, cfg domain.PipelineConfig, textFile domain.File) (*domain.MetadataRecord, error) {
	if s.llm == nil {
		return nil, domain.ErrLLMUnavailable
	}

	text, err := s.readText(ctx, textFile)
	if err != nil {
		return nil, err
	}

	template, err := s.BuildTemplate(ctx, cfg, textFile, text)
	if err != nil {
		return nil, err
	}

	prompt, err := s.buildPrompt(template, text)
	if err != nil {
		return nil, err
	}
	system := s.loadPrompt(driven.PromptMetadataSystem, domain.DefaultMetadataSystemPrompt)

	resp, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: system},
		{Role: driven.RoleUser, Content: prompt},
	}, driven.ChatOptions{
		MaxTokens:   cfg.Completion.MaxTokens,
		Temperature: cfg.Completion.Temperature,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("completion: %w", err)
	}

	record, err := s.parseCompletion(resp)
	if err != nil {
		return nil, err
	}

	for _, path := range ProtectLocalFields(template, record) {
		logger.Debug("metadata: %s: restored %s overwritten by completion", textFile.Name, path)
	}
	return record, nil
}

func (s *MetadataService) readText(ctx context.Context, textFile domain.File) (string, error) {
	content, err := s.store.ReadContent(ctx, textFile)
	if err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	if s.decoder == nil || !s.decoder.Supports(domain.MimePlainText) {
		return string(content), nil
	}
	text, err := s.decoder.Normalise(ctx, &domain.RawDocument{
		URI:      textFile.ID,
		Name:     textFile.Name,
		MIMEType: domain.MimePlainText,
		Content:  content,
	})
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return text, nil
}

// BuildTemplate fills every field that can be derived without the LLM.
func (s *MetadataService) BuildTemplate(ctx context.Context, cfg domain.PipelineConfig, textFile domain.File, text string) (*domain.MetadataRecord, error) {
	r := domain.NewMetadataRecord()
	r.FileName = textFile.Name
	r.FileType = domain.FileTypeText

	source, err := s.findSource(ctx, cfg, textFile)
	if err != nil {
		return nil, err
	}
	modified := textFile.ModifiedTime
	if source != nil {
		r.SourceFileName = source.Name
		r.SourceMimeType = source.MimeType
		r.FileType = domain.FileTypeFromMime(source.MimeType)
		if !source.ModifiedTime.IsZero() {
			modified = source.ModifiedTime
		}
	} else {
		logger.Warn("metadata: no source document for %s", textFile.Name)
	}
	if !modified.IsZero() {
		r.Document.ModifiedDate = modified.UTC().Format(time.DateOnly)
	}

	project, err := ProjectFromPath(ctx, s.store, textFile.ParentID, cfg)
	if err != nil {
		logger.Warn("metadata: project fields for %s: %v", textFile.Name, err)
	}
	r.Project = project

	length := utf8.RuneCountInString(text)
	if length <= cfg.RawTextLimit {
		r.TextData.RawText = text
	}
	r.TextData.Language = s.detectLanguage(ctx, text, cfg.LanguageSample)

	r.Meta.TextLength = length
	r.Meta.StampGenerated(s.now())
	return r, nil
}

// findSource probes the text sidecar's folder for a same-named source.
func (s *MetadataService) findSource(ctx context.Context, cfg domain.PipelineConfig, textFile domain.File) (*domain.File, error) {
	base := textFile.BaseName()
	for _, ext := range cfg.SourceExtensions {
		f, err := s.store.FindByName(ctx, textFile.ParentID, base+"."+ext)
		if err != nil {
			return nil, fmt.Errorf("probe source %s.%s: %w", base, ext, err)
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, nil
}

func (s *MetadataService) detectLanguage(ctx context.Context, text string, sample int) string {
	if s.language == nil {
		return domain.LanguageUnknown
	}
	head := strings.TrimSpace(truncateRunes(text, sample))
	if head == "" {
		return domain.LanguageUnknown
	}
	code, err := s.language.Detect(ctx, head)
	if err != nil || code == "" {
		logger.Debug("metadata: language detection failed: %v", err)
		return domain.LanguageUnknown
	}
	return code
}

func (s *MetadataService) buildPrompt(template *domain.MetadataRecord, text string) (string, error) {
	shown := *template
	if shown.TextData.Language == domain.LanguageUnknown {
		shown.TextData.Language = ""
	}
	body, err := shown.MarshalIndent()
	if err != nil {
		return "", fmt.Errorf("encode template: %w", err)
	}
	tmpl := s.loadPrompt(driven.PromptMetadataUser, domain.DefaultMetadataUserPrompt)
	return fmt.Sprintf(tmpl, strings.TrimSpace(string(body)), text), nil
}

func (s *MetadataService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	p, err := s.prompts.Load(name)
	if err != nil || strings.TrimSpace(p) == "" {
		return fallback
	}
	return p
}

// parseCompletion turns the raw completion into a record, rejecting
// unparseable or structurally invalid answers.
func (s *MetadataService) parseCompletion(resp string) (*domain.MetadataRecord, error) {
	cleaned := StripCodeFences(resp)

	var doc map[string]any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedCompletion, err)
	}

	if s.validator != nil {
		if err := s.validator.Validate(doc); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
		}
	} else if err := checkRequired(doc); err != nil {
		return nil, err
	}

	// meta and rawText are always rebuilt locally, so their shape in the
	// completion must not reject the record.
	delete(doc, "meta")
	if td, ok := doc["textData"].(map[string]any); ok {
		delete(td, "rawText")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
	}

	record := domain.NewMetadataRecord()
	if err := json.Unmarshal(body, record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidMetadata, err)
	}
	record.Normalise()
	return record, nil
}

func checkRequired(doc map[string]any) error {
	var missing []string
	for _, key := range requiredMetadataFields {
		if _, ok := doc[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidMetadata, strings.Join(missing, ", "))
	}
	return nil
}

// localField is a string field the template owns.
type localField struct {
	path string
	ptr  func(*domain.MetadataRecord) *string
}

// localPlaceholders are template values the completion may replace.
var localPlaceholders = map[string]string{
	"textData.language": domain.LanguageUnknown,
}

var localFields = []localField{
	{"fileName", func(r *domain.MetadataRecord) *string { return &r.FileName }},
	{"fileType", func(r *domain.MetadataRecord) *string { return &r.FileType }},
	{"sourceFileName", func(r *domain.MetadataRecord) *string { return &r.SourceFileName }},
	{"sourceMimeType", func(r *domain.MetadataRecord) *string { return &r.SourceMimeType }},
	{"project.projectName", func(r *domain.MetadataRecord) *string { return &r.Project.ProjectName }},
	{"project.location", func(r *domain.MetadataRecord) *string { return &r.Project.Location }},
	{"project.customer", func(r *domain.MetadataRecord) *string { return &r.Project.Customer }},
	{"project.date", func(r *domain.MetadataRecord) *string { return &r.Project.Date }},
	{"project.stage", func(r *domain.MetadataRecord) *string { return &r.Project.Stage }},
	{"document.modifiedDate", func(r *domain.MetadataRecord) *string { return &r.Document.ModifiedDate }},
	{"textData.language", func(r *domain.MetadataRecord) *string { return &r.TextData.Language }},
}

// ProtectLocalFields copies every non-blank template field back over the
// completion, along with rawText and meta which are always local. It
// returns the paths of the fields the completion had changed.
func ProtectLocalFields(template, record *domain.MetadataRecord) []string {
	var restored []string
	for _, f := range localFields {
		want := *f.ptr(template)
		if want == "" {
			continue
		}
		got := f.ptr(record)
		if placeholder, ok := localPlaceholders[f.path]; ok && want == placeholder {
			if strings.TrimSpace(*got) == "" {
				*got = want
			}
			continue
		}
		if *got != want {
			restored = append(restored, f.path)
			*got = want
		}
	}

	if record.TextData.RawText != template.TextData.RawText {
		restored = append(restored, "textData.rawText")
		record.TextData.RawText = template.TextData.RawText
	}
	if !metaEqual(record.Meta, template.Meta) {
		restored = append(restored, "meta")
	}
	record.Meta = template.Meta
	return restored
}

func metaEqual(a, b domain.Meta) bool {
	if a.Source != b.Source || a.OCRConfidence != b.OCRConfidence ||
		a.TextLength != b.TextLength || a.GeneratedAt != b.GeneratedAt || len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// IsMetadataRejection reports whether err means the completion was
// unusable rather than a collaborator failing.
func IsMetadataRejection(err error) bool {
	return errors.Is(err, domain.ErrMalformedCompletion) || errors.Is(err, domain.ErrInvalidMetadata)
}
