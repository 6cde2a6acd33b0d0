package driven

import "context"

// MarkerStore keeps processing markers for stores that have no
// per-file description field.
type MarkerStore interface {
	// SetMarker records text against a file ID, replacing any previous marker.
	SetMarker(ctx context.Context, fileID, text string) error

	// GetMarker returns the marker for a file ID, or "" if none is set.
	GetMarker(ctx context.Context, fileID string) (string, error)

	// DeleteMarker removes the marker for a file ID.
	DeleteMarker(ctx context.Context, fileID string) error
}
