package services

import (
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// PollResult is the outcome of Poll.
type PollResult struct {
	// Value is the first non-empty value read, or "" on timeout.
	Value string

	// Attempts is how many reads were made.
	Attempts int

	// TimedOut is set when every attempt came back not ready.
	TimedOut bool
}

// PollFunc reads a value that may not be ready yet. An error or a blank
// value both mean "not ready".
type PollFunc func(ctx context.Context) (string, error)

// Poll calls fn up to settings.Attempts times, sleeping settings.Delay
// after each attempt that is not ready, so a timeout takes at least
// Attempts*Delay. It never returns an error: a cancelled context ends
// polling early and is reported as a timeout.
func Poll(ctx context.Context, settings domain.PollSettings, fn PollFunc) PollResult {
	attempts := settings.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var res PollResult
	for i := 0; i < attempts; i++ {
		res.Attempts++
		value, err := fn(ctx)
		if err == nil && strings.TrimSpace(value) != "" {
			res.Value = value
			return res
		}
		if !sleep(ctx, settings.Delay) {
			break
		}
	}
	res.TimedOut = true
	return res
}

// sleep waits for d or until ctx is done. Returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
