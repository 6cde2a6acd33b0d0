package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// markerStore implements driven.MarkerStore.
type markerStore struct {
	store *Store
}

var _ driven.MarkerStore = (*markerStore)(nil)

// SetMarker records text against a file ID, replacing any previous marker.
func (s *markerStore) SetMarker(ctx context.Context, fileID, text string) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO file_markers (file_id, marker, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			marker = excluded.marker,
			updated_at = excluded.updated_at
	`, fileID, text, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving marker: %w", err)
	}
	return nil
}

// GetMarker returns the marker for a file ID, or "" if none is set.
func (s *markerStore) GetMarker(ctx context.Context, fileID string) (string, error) {
	var marker string
	err := s.store.db.QueryRowContext(ctx,
		"SELECT marker FROM file_markers WHERE file_id = ?", fileID).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading marker: %w", err)
	}
	return marker, nil
}

// DeleteMarker removes the marker for a file ID.
func (s *markerStore) DeleteMarker(ctx context.Context, fileID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM file_markers WHERE file_id = ?", fileID)
	if err != nil {
		return fmt.Errorf("deleting marker: %w", err)
	}
	return nil
}
