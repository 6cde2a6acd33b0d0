package domain

import "errors"

// Domain errors represent pipeline failures that callers branch on.
// These are distinct from infrastructure errors, which are wrapped with %w.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a content type no extraction chain handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// Extraction Errors.

	// ErrNotReady indicates a scratch resource (OCR or conversion output)
	// has no readable body yet.
	ErrNotReady = errors.New("resource not ready")

	// ErrEmptyExtraction indicates every stage of a chain produced no text.
	ErrEmptyExtraction = errors.New("no text extracted")

	// Metadata Errors.

	// ErrMalformedCompletion indicates the completion body is not parseable JSON.
	ErrMalformedCompletion = errors.New("malformed completion")

	// ErrInvalidMetadata indicates the parsed completion is missing required
	// fields or has the wrong shape.
	ErrInvalidMetadata = errors.New("invalid metadata")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Metadata synthesis is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Infrastructure Errors.

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable indicates the document store could not be reached.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrPhaseLocked indicates another invocation holds the phase lock.
	ErrPhaseLocked = errors.New("phase already running")
)
