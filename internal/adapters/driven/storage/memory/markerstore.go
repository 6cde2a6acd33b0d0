package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure MarkerStore implements the interface.
var _ driven.MarkerStore = (*MarkerStore)(nil)

// MarkerStore is an in-memory implementation of driven.MarkerStore.
type MarkerStore struct {
	mu      sync.RWMutex
	markers map[string]string
}

// NewMarkerStore creates a new in-memory marker store.
func NewMarkerStore() *MarkerStore {
	return &MarkerStore{markers: make(map[string]string)}
}

// SetMarker records text against a file.
func (s *MarkerStore) SetMarker(_ context.Context, fileID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markers[fileID] = text
	return nil
}

// GetMarker returns the marker, or "" when none is set.
func (s *MarkerStore) GetMarker(_ context.Context, fileID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.markers[fileID], nil
}

// DeleteMarker removes a marker.
func (s *MarkerStore) DeleteMarker(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markers, fileID)
	return nil
}
