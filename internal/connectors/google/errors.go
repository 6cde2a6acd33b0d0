package google

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// Common Google API errors. Each also matches the corresponding domain
// sentinel with errors.Is.
var (
	// ErrUnauthorized indicates invalid or expired credentials.
	ErrUnauthorized = fmt.Errorf("google: unauthorised (invalid credentials): %w", domain.ErrStoreUnavailable)

	// ErrForbidden indicates insufficient permissions.
	ErrForbidden = fmt.Errorf("google: forbidden (insufficient permissions): %w", domain.ErrStoreUnavailable)

	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = fmt.Errorf("google: resource not found: %w", domain.ErrNotFound)

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = fmt.Errorf("google: rate limit exceeded: %w", domain.ErrRateLimited)
)

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || hasCode(err, http.StatusUnauthorized)
}

// IsForbidden returns true if the error indicates insufficient permissions.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden) || hasCode(err, http.StatusForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || hasCode(err, http.StatusNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
// Drive also reports per-user rate limits as 403 with a rateLimitExceeded reason.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) || hasCode(err, http.StatusTooManyRequests) {
		return true
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusForbidden {
		for _, item := range gerr.Errors {
			if item.Reason == "rateLimitExceeded" || item.Reason == "userRateLimitExceeded" {
				return true
			}
		}
	}
	return false
}

// RetryAfter returns the Retry-After seconds of a rate-limited reply, or 0.
func RetryAfter(err error) int {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) || gerr.Header == nil {
		return 0
	}
	n, convErr := strconv.Atoi(gerr.Header.Get("Retry-After"))
	if convErr != nil || n < 0 {
		return 0
	}
	return n
}

func hasCode(err error, code int) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == code
}

// WrapError converts a Google API error to a more specific error type.
// The original message is kept after the sentinel.
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}

	switch {
	case IsRateLimited(err):
		return fmt.Errorf("%w: %s", ErrRateLimited, gerr.Message)
	case gerr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, gerr.Message)
	case gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, gerr.Message)
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, gerr.Message)
	default:
		return err
	}
}
