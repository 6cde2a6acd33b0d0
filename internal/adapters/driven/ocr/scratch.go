package ocr

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// scratchDir holds recognition and conversion results as <id>.txt files.
type scratchDir struct {
	dir string
}

func newScratchDir(dir string) (scratchDir, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "archivist-scratch")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return scratchDir{}, fmt.Errorf("create scratch directory: %w", err)
	}
	return scratchDir{dir: dir}, nil
}

func (s scratchDir) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("%w: scratch id %q", domain.ErrInvalidInput, id)
	}
	return filepath.Join(s.dir, id+".txt"), nil
}

func (s scratchDir) store(text string) (string, error) {
	id := uuid.New().String()
	p, _ := s.path(id)
	if err := os.WriteFile(p, []byte(text), 0600); err != nil {
		return "", fmt.Errorf("write scratch %s: %w", id, err)
	}
	return id, nil
}

// ReadBody returns the stored text. A missing or empty body is not ready.
func (s scratchDir) ReadBody(_ context.Context, id string) (string, error) {
	p, err := s.path(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", domain.ErrNotReady
	}
	if err != nil {
		return "", fmt.Errorf("read scratch %s: %w", id, err)
	}
	if len(data) == 0 {
		return "", domain.ErrNotReady
	}
	return string(data), nil
}

// Discard removes the stored text. Discarding twice is not an error.
func (s scratchDir) Discard(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("discard scratch %s: %w", id, err)
	}
	return nil
}
