package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/adapters/driven/schema"
	"github.com/custodia-labs/archivist/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
	"github.com/custodia-labs/archivist/internal/normalisers"
)

const completion = `{
  "fileName": "ignored.txt",
  "fileType": "image",
  "sourceFileName": "",
  "sourceMimeType": "",
  "project": {"projectName": "", "location": "X", "customer": "", "date": "2024-05-01", "stage": "oferta"},
  "document": {"title": "Umowa najmu", "sections": "Wstęp", "authors": ["Jan Kowalski"], "createdDate": "", "modifiedDate": ""},
  "communication": {"participants": [], "conversationDate": "", "topic": "", "conclusions": "", "attachment": []},
  "textData": {"rawText": "hallucinated", "summary": "Umowa najmu lokalu.", "keywords": ["najem", 5], "keywordSynonyms": {"najem": "dzierżawa"}, "language": "en"},
  "meta": {"source": "llm", "ocrConfidence": 0.1, "textLength": 1, "generatedAt": "", "tags": ["x"]}
}`

type metadataFixture struct {
	store *memory.DocumentStore
	llm   *fakeLLM
	svc   *MetadataService
	root  domain.Folder
	dir   domain.Folder
	cfg   domain.PipelineConfig
}

func newMetadataFixture(t *testing.T, response string) *metadataFixture {
	t.Helper()
	store := memory.NewDocumentStore()
	root := store.AddFolder("", "Drive")
	intake := store.AddFolder(root.ID, "Intake")
	dir := store.AddFolder(intake.ID, "Kraków-Acme")

	llm := &fakeLLM{response: response}
	svc := NewMetadataService(store, NewPairingIndex(store), llm, nil, nil, &fakeLanguage{code: "pl"})
	svc.now = func() time.Time { return time.Date(2025, 3, 4, 4, 6, 7, 8_000_000, time.UTC) }

	return &metadataFixture{
		store: store,
		llm:   llm,
		svc:   svc,
		root:  root,
		dir:   dir,
		cfg:   testPipelineConfig(root.ID),
	}
}

func (f *metadataFixture) sidecar(t *testing.T, name string) *domain.MetadataRecord {
	t.Helper()
	file, err := f.store.FindByName(context.Background(), f.dir.ID, name)
	require.NoError(t, err)
	if file == nil {
		return nil
	}
	content, ok := f.store.Content(file.ID)
	require.True(t, ok)
	var r domain.MetadataRecord
	require.NoError(t, json.Unmarshal(content, &r))
	return &r
}

func TestMetadataService_WritesSidecarWithLocalFieldsProtected(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.store.AddFile(f.dir.ID, "umowa.pdf", domain.MimePDF, []byte("%PDF"))
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	report, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseMetadata, report.Phase)
	assert.Equal(t, 1, report.Processed)

	r := f.sidecar(t, "umowaMetadata.json")
	require.NotNil(t, r)
	assert.Equal(t, "umowa.txt", r.FileName)
	assert.Equal(t, domain.FileTypePDF, r.FileType)
	assert.Equal(t, "umowa.pdf", r.SourceFileName)
	assert.Equal(t, domain.MimePDF, r.SourceMimeType)
	assert.Equal(t, "Kraków", r.Project.Location)
	assert.Equal(t, "Acme", r.Project.Customer)
	assert.Equal(t, "Kraków-Acme", r.Project.ProjectName)
	assert.Equal(t, "2024-05-01", r.Project.Date, "blank template fields come from the completion")
	assert.Equal(t, "oferta", r.Project.Stage)
	assert.Equal(t, "2025-01-01", r.Document.ModifiedDate)
	assert.Equal(t, domain.StringList{"Wstęp"}, r.Document.Sections)
	assert.Equal(t, domain.StringList{"najem", "5"}, r.TextData.Keywords)
	assert.Equal(t, domain.StringList{"dzierżawa"}, r.TextData.KeywordSynonyms["najem"])
	assert.Equal(t, goodText, r.TextData.RawText)
	assert.Equal(t, "Umowa najmu lokalu.", r.TextData.Summary)
	assert.Equal(t, "pl", r.TextData.Language)
	assert.Equal(t, domain.MetadataSource, r.Meta.Source)
	assert.Equal(t, domain.DefaultOCRConfidence, r.Meta.OCRConfidence)
	assert.Equal(t, len([]rune(goodText)), r.Meta.TextLength)
	assert.Equal(t, "2025-03-04T04:06:07.008Z", r.Meta.GeneratedAt)

	require.Equal(t, 1, f.llm.callCount())
	msgs := f.llm.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, driven.RoleSystem, msgs[0].Role)
	assert.Equal(t, domain.DefaultMetadataSystemPrompt, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, goodText)
	assert.Contains(t, msgs[1].Content, `"location": "Kraków"`)
	assert.True(t, f.llm.opts[0].JSON)
	assert.Equal(t, domain.DefaultMaxTokens, f.llm.opts[0].MaxTokens)
}

func TestMetadataService_DecodesSidecarText(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.svc.SetNormalisers(normalisers.Default())
	windows := "\xef\xbb\xbf" + goodText + "\r\nStrona 2\r\n"
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(windows))

	_, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	r := f.sidecar(t, "umowaMetadata.json")
	require.NotNil(t, r)
	assert.Equal(t, goodText+"\nStrona 2\n", r.TextData.RawText)
}

func TestMetadataService_Idempotent(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	_, err := f.svc.RunBatch(context.Background(), f.cfg)
	require.NoError(t, err)
	report, err := f.svc.RunBatch(context.Background(), f.cfg)
	require.NoError(t, err)

	assert.Zero(t, report.Candidates)
	assert.Equal(t, 1, f.llm.callCount())
}

func TestMetadataService_MalformedCompletionNotPersisted(t *testing.T) {
	f := newMetadataFixture(t, "Sorry, I cannot help with that.")
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	report, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Zero(t, report.Processed)
	assert.Nil(t, f.sidecar(t, "umowaMetadata.json"))
}

func TestMetadataService_InvalidCompletionNotPersisted(t *testing.T) {
	f := newMetadataFixture(t, `{"fileName": "a.txt"}`)
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	report, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Nil(t, f.sidecar(t, "umowaMetadata.json"))
}

func TestMetadataService_ValidatorRejects(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.svc.validator = &fakeValidator{require: "keywords"}
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	_, err := f.svc.Synthesize(context.Background(), f.cfg, mustFind(t, f, "umowa.txt"))

	assert.ErrorIs(t, err, domain.ErrInvalidMetadata)
	assert.True(t, IsMetadataRejection(err))
}

func TestMetadataService_FencedCompletion(t *testing.T) {
	f := newMetadataFixture(t, "```json\n"+completion+"\n```")
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	report, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.NotNil(t, f.sidecar(t, "umowaMetadata.json"))
}

func TestMetadataService_LLMError(t *testing.T) {
	f := newMetadataFixture(t, "")
	f.llm.err = errors.New("connection refused")
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	report, err := f.svc.RunBatch(context.Background(), f.cfg)

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
}

func TestMetadataService_NoLLM(t *testing.T) {
	store := memory.NewDocumentStore()
	root := store.AddFolder("", "root")
	svc := NewMetadataService(store, NewPairingIndex(store), nil, nil, nil, nil)

	_, err := svc.RunBatch(context.Background(), testPipelineConfig(root.ID))

	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestMetadataService_BuildTemplate_LongTextAndNoSource(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.svc.language = nil
	text := strings.Repeat("a", 50)
	file := f.store.AddFile(f.dir.ID, "notatka.txt", domain.MimePlainText, []byte(text))
	f.cfg.RawTextLimit = 10

	r, err := f.svc.BuildTemplate(context.Background(), f.cfg, file, text)

	require.NoError(t, err)
	assert.Empty(t, r.TextData.RawText)
	assert.Equal(t, 50, r.Meta.TextLength)
	assert.Equal(t, domain.FileTypeText, r.FileType)
	assert.Empty(t, r.SourceFileName)
	assert.Equal(t, domain.LanguageUnknown, r.TextData.Language)
}

func TestMetadataService_LanguageSample(t *testing.T) {
	f := newMetadataFixture(t, completion)
	lang := &fakeLanguage{code: "pl"}
	f.svc.language = lang
	f.cfg.LanguageSample = 5
	file := f.store.AddFile(f.dir.ID, "a.txt", domain.MimePlainText, nil)

	_, err := f.svc.BuildTemplate(context.Background(), f.cfg, file, "źdźbło trawy")

	require.NoError(t, err)
	assert.Equal(t, "źdźbł", lang.seen)
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```JSON\r\n{\"a\":1}\r\n```", `{"a":1}`},
		{"```\n{\"a\":1}```", `{"a":1}`},
		{"  ```json {\"a\":1}```  ", `{"a":1}`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeFences(tt.in))
	}
}

func TestProtectLocalFields(t *testing.T) {
	template := domain.NewMetadataRecord()
	template.FileName = "a.txt"
	template.Project.Location = "Kraków"
	template.TextData.RawText = "raw"
	template.Meta.TextLength = 3

	record := domain.NewMetadataRecord()
	record.FileName = "a.txt"
	record.Project.Location = "X"
	record.Project.Customer = "Acme"
	record.TextData.RawText = "other"

	restored := ProtectLocalFields(template, record)

	assert.ElementsMatch(t, []string{"project.location", "textData.rawText", "meta"}, restored)
	assert.Equal(t, "Kraków", record.Project.Location)
	assert.Equal(t, "Acme", record.Project.Customer)
	assert.Equal(t, "raw", record.TextData.RawText)
	assert.Equal(t, 3, record.Meta.TextLength)
}

func mustFind(t *testing.T, f *metadataFixture, name string) domain.File {
	t.Helper()
	file, err := f.store.FindByName(context.Background(), f.dir.ID, name)
	require.NoError(t, err)
	require.NotNil(t, file)
	return *file
}

func TestMetadataService_LooseMetaDoesNotRejectCompletion(t *testing.T) {
	loose := strings.Replace(completion,
		`"meta": {"source": "llm", "ocrConfidence": 0.1, "textLength": 1, "generatedAt": "", "tags": ["x"]}`,
		`"meta": {"ocrConfidence": "0.95", "textLength": "120", "tags": "x"}`, 1)
	require.NotEqual(t, completion, loose)
	f := newMetadataFixture(t, loose)
	validator, err := schema.NewMetadataValidator()
	require.NoError(t, err)
	f.svc.validator = validator
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	r, err := f.svc.Synthesize(context.Background(), f.cfg, mustFind(t, f, "umowa.txt"))

	require.NoError(t, err)
	assert.Equal(t, "Umowa najmu lokalu.", r.TextData.Summary)
	assert.Equal(t, goodText, r.TextData.RawText)
	assert.Equal(t, domain.DefaultOCRConfidence, r.Meta.OCRConfidence)
	assert.Equal(t, len([]rune(goodText)), r.Meta.TextLength)
}

func TestMetadataService_UndetectedLanguageFilledByCompletion(t *testing.T) {
	f := newMetadataFixture(t, completion)
	f.svc.language = &fakeLanguage{err: errors.New("no confident match")}
	f.store.AddFile(f.dir.ID, "umowa.txt", domain.MimePlainText, []byte(goodText))

	r, err := f.svc.Synthesize(context.Background(), f.cfg, mustFind(t, f, "umowa.txt"))

	require.NoError(t, err)
	assert.Equal(t, "en", r.TextData.Language)
	require.Equal(t, 1, f.llm.callCount())
	assert.NotContains(t, f.llm.messages[0][1].Content, `"language": "unknown"`)
}

func TestProtectLocalFields_LanguagePlaceholder(t *testing.T) {
	template := domain.NewMetadataRecord()
	template.TextData.Language = domain.LanguageUnknown

	filled := domain.NewMetadataRecord()
	filled.TextData.Language = "de"
	assert.NotContains(t, ProtectLocalFields(template, filled), "textData.language")
	assert.Equal(t, "de", filled.TextData.Language)

	blank := domain.NewMetadataRecord()
	ProtectLocalFields(template, blank)
	assert.Equal(t, domain.LanguageUnknown, blank.TextData.Language)
}
