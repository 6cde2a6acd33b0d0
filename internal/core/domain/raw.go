package domain

// RawDocument is a source document's bytes handed to a direct-read normaliser.
type RawDocument struct {
	// URI identifies the document in its store (file ID or path).
	URI string

	// Name is the file name, used in log messages.
	Name string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}
