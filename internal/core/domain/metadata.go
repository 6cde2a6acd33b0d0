package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Metadata record constants.
const (
	// MetadataSource is the fixed provenance tag of every record.
	MetadataSource = "drive_upload"

	// DefaultOCRConfidence is the nominal confidence recorded for extracted text.
	DefaultOCRConfidence = 0.95

	// LanguageUnknown is recorded when detection fails or the text is empty.
	LanguageUnknown = "unknown"
)

// File type labels written to MetadataRecord.FileType.
const (
	FileTypeImage = "image"
	FileTypePDF   = "pdf"
	FileTypeExcel = "excel"
	FileTypeDoc   = "doc"
	FileTypeText  = "text"
)

// FileTypeFromMime derives the record file type by substring match on the
// source content type. Order matters: image, pdf, spreadsheet, word.
func FileTypeFromMime(mime string) string {
	m := strings.ToLower(mime)
	switch {
	case strings.Contains(m, "image"):
		return FileTypeImage
	case strings.Contains(m, "pdf"):
		return FileTypePDF
	case strings.Contains(m, "excel"), strings.Contains(m, "spreadsheet"):
		return FileTypeExcel
	case strings.Contains(m, "word"):
		return FileTypeDoc
	default:
		return FileTypeText
	}
}

// MetadataRecord is the metadata sidecar. Field order is the persisted key order.
type MetadataRecord struct {
	FileName       string        `json:"fileName"`
	FileType       string        `json:"fileType"`
	SourceFileName string        `json:"sourceFileName"`
	SourceMimeType string        `json:"sourceMimeType"`
	Project        Project       `json:"project"`
	Document       DocumentInfo  `json:"document"`
	Communication  Communication `json:"communication"`
	TextData       TextData      `json:"textData"`
	Meta           Meta          `json:"meta"`
}

// Project holds fields derived from the folder naming convention.
type Project struct {
	ProjectName string `json:"projectName"`
	Location    string `json:"location"`
	Customer    string `json:"customer"`
	Date        string `json:"date"`
	Stage       string `json:"stage"`
}

// DocumentInfo describes the document itself.
type DocumentInfo struct {
	Title        string     `json:"title"`
	Sections     StringList `json:"sections"`
	Authors      StringList `json:"authors"`
	CreatedDate  string     `json:"createdDate"`
	ModifiedDate string     `json:"modifiedDate"`
}

// Communication describes correspondence found in the document.
type Communication struct {
	Participants     StringList `json:"participants"`
	ConversationDate string     `json:"conversationDate"`
	Topic            string     `json:"topic"`
	Conclusions      string     `json:"conclusions"`
	Attachment       StringList `json:"attachment"`
}

// TextData holds the text-derived fields.
type TextData struct {
	RawText         string                `json:"rawText"`
	Summary         string                `json:"summary"`
	Keywords        StringList            `json:"keywords"`
	KeywordSynonyms map[string]StringList `json:"keywordSynonyms"`
	Language        string                `json:"language"`
}

// Meta holds pipeline provenance.
type Meta struct {
	Source        string     `json:"source"`
	OCRConfidence float64    `json:"ocrConfidence"`
	TextLength    int        `json:"textLength"`
	GeneratedAt   string     `json:"generatedAt"`
	Tags          StringList `json:"tags"`
}

// NewMetadataRecord returns a record with every list and map initialised,
// so it marshals as [] and {} rather than null.
func NewMetadataRecord() *MetadataRecord {
	return &MetadataRecord{
		Document: DocumentInfo{
			Sections: StringList{},
			Authors:  StringList{},
		},
		Communication: Communication{
			Participants: StringList{},
			Attachment:   StringList{},
		},
		TextData: TextData{
			Keywords:        StringList{},
			KeywordSynonyms: map[string]StringList{},
		},
		Meta: Meta{
			Source:        MetadataSource,
			OCRConfidence: DefaultOCRConfidence,
			Tags:          StringList{},
		},
	}
}

// Normalise replaces nil lists and maps with empty ones.
func (r *MetadataRecord) Normalise() {
	fix := func(l *StringList) {
		if *l == nil {
			*l = StringList{}
		}
	}
	fix(&r.Document.Sections)
	fix(&r.Document.Authors)
	fix(&r.Communication.Participants)
	fix(&r.Communication.Attachment)
	fix(&r.TextData.Keywords)
	fix(&r.Meta.Tags)
	if r.TextData.KeywordSynonyms == nil {
		r.TextData.KeywordSynonyms = map[string]StringList{}
	}
}

// MarshalIndent renders the record the way it is persisted: two-space
// indentation, no HTML escaping, trailing newline.
func (r *MetadataRecord) MarshalIndent() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StampGenerated sets the generation timestamp in ISO-8601 UTC.
func (m *Meta) StampGenerated(t time.Time) {
	m.GeneratedAt = t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// StringList is a list of strings that also accepts a bare JSON string or
// null on input. Completions often answer "brak" where a list was asked for.
type StringList []string

// UnmarshalJSON accepts an array of strings, a single string, or null.
func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*l = StringList{}
			return nil
		}
		*l = StringList{s}
		return nil
	}
	var items []any
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return err
	}
	out := make(StringList, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case nil:
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			out = append(out, string(b))
		}
	}
	*l = out
	return nil
}

// IsEmpty reports whether the list has no entries.
func (l StringList) IsEmpty() bool {
	return len(l) == 0
}
