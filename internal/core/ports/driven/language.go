package driven

import "context"

// LanguageDetector guesses the language of a text sample.
type LanguageDetector interface {
	// Detect returns an ISO 639-1 code.
	// Returns an error when the sample is too short or ambiguous.
	Detect(ctx context.Context, text string) (string, error)
}
