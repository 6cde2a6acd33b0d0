package domain

import (
	"strings"
	"time"
)

// Sidecar suffixes.
const (
	// TextSidecarExt is the extension of the extracted-text sidecar.
	TextSidecarExt = "txt"

	// MetadataSidecarSuffix is appended to the base name of a metadata sidecar.
	MetadataSidecarSuffix = "Metadata.json"

	// MarkerProcessedText is the advisory marker written after extraction.
	MarkerProcessedText = "processedText: true"
)

// File is a leaf entry in the document store. It is either a source
// document or a sidecar artifact.
type File struct {
	// ID is the store-specific identifier (Drive ID, relative path).
	ID string

	// Name is the file name including extension.
	Name string

	// MimeType is the content type reported by the store.
	MimeType string

	// Size is the content size in bytes. Native documents report zero.
	Size int64

	// ParentID identifies the containing folder.
	ParentID string

	// Description holds free text; the processing marker lives here.
	Description string

	// ModifiedTime is the last modification time, when known.
	ModifiedTime time.Time
}

// BaseName returns the file name without its final extension.
func (f File) BaseName() string {
	return BaseName(f.Name)
}

// Extension returns the lower-cased final extension of the file name.
func (f File) Extension() string {
	return Extension(f.Name)
}

// Folder is a container node in the document store.
type Folder struct {
	ID       string
	Name     string
	ParentID string
}

// BaseName strips the final extension from name. A name without a dot is
// returned unchanged.
func BaseName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name
	}
	return name[:idx]
}

// Extension returns the lower-cased text after the final dot, or "" when
// the name has no extension.
func Extension(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// TextSidecarName returns the text sidecar name for a base name.
func TextSidecarName(base string) string {
	return base + "." + TextSidecarExt
}

// MetadataSidecarName returns the metadata sidecar name for a base name.
func MetadataSidecarName(base string) string {
	return base + MetadataSidecarSuffix
}

// IsMetadataSidecar reports whether name looks like a metadata sidecar.
func IsMetadataSidecar(name string) bool {
	return strings.HasSuffix(name, MetadataSidecarSuffix)
}

// Kind classifies a source document for extraction dispatch.
type Kind string

// Document kinds.
const (
	KindImage             Kind = "image"
	KindPDF               Kind = "pdf"
	KindWordDocument      Kind = "word"
	KindSpreadsheet       Kind = "spreadsheet"
	KindNativeSpreadsheet Kind = "native-spreadsheet"
	KindUnsupported       Kind = "unsupported"
)

// Content types the pipeline recognises.
const (
	MimePDF               = "application/pdf"
	MimeDocx              = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeMsWord            = "application/msword"
	MimeXlsx              = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeNativeSpreadsheet = "application/vnd.google-apps.spreadsheet"
	MimeNativeDocument    = "application/vnd.google-apps.document"
	MimeFolder            = "application/vnd.google-apps.folder"
	MimePlainText         = "text/plain"
	MimeJSON              = "application/json"

	// NativeMimeMarker appears in every store-native (non-binary) content type.
	NativeMimeMarker = "google-apps"
)

// ClassifyMime maps a content type to the extraction kind.
func ClassifyMime(mime string) Kind {
	m := strings.ToLower(strings.TrimSpace(mime))
	switch {
	case m == MimeNativeSpreadsheet:
		return KindNativeSpreadsheet
	case strings.Contains(m, NativeMimeMarker):
		return KindUnsupported
	case m == "image/jpeg", m == "image/jpg", m == "image/png", m == "image/tiff":
		return KindImage
	case m == MimePDF:
		return KindPDF
	case m == MimeDocx, m == MimeMsWord:
		return KindWordDocument
	case m == MimeXlsx:
		return KindSpreadsheet
	default:
		return KindUnsupported
	}
}

// MimeForExtension guesses a content type from a lower-cased extension.
// Stores that do not record content types (the local filesystem) use it.
func MimeForExtension(ext string) string {
	switch ext {
	case "pdf":
		return MimePDF
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "tif", "tiff":
		return "image/tiff"
	case "docx":
		return MimeDocx
	case "doc":
		return MimeMsWord
	case "xlsx":
		return MimeXlsx
	case "txt":
		return MimePlainText
	case "json":
		return MimeJSON
	default:
		return "application/octet-stream"
	}
}

// Sheet is one worksheet read from a tabular document.
type Sheet struct {
	Name string
	Rows [][]string
}
