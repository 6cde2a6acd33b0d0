package driven

import "context"

// Scratch is a temporary resource produced by a recognition or conversion
// capability. The caller owns it and must Discard it on every path.
type Scratch interface {
	// ReadBody returns the resource's text.
	// Returns domain.ErrNotReady while the body is not yet available.
	ReadBody(ctx context.Context, resourceID string) (string, error)

	// Discard soft-deletes the resource.
	Discard(ctx context.Context, resourceID string) error
}

// OCRService recognises text in images and scanned documents.
type OCRService interface {
	Scratch

	// Recognize starts recognition of content in the given language and
	// returns the scratch resource holding the result.
	Recognize(ctx context.Context, content []byte, mimeType, language string) (string, error)
}

// ConversionService turns word-processor documents into a readable
// document whose body can be polled.
type ConversionService interface {
	Scratch

	// Convert starts a conversion and returns the scratch resource ID.
	Convert(ctx context.Context, content []byte, mimeType string) (string, error)
}
