package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

type storedFile struct {
	file    domain.File
	content []byte
}

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// It also exposes helpers for building trees and injecting failures in tests.
type DocumentStore struct {
	mu      sync.RWMutex
	seq     int
	folders map[string]domain.Folder
	files   map[string]*storedFile
	trash   map[string]*storedFile

	listErrs map[string]error
	onCopy   func(copied *domain.File)
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		folders:  make(map[string]domain.Folder),
		files:    make(map[string]*storedFile),
		trash:    make(map[string]*storedFile),
		listErrs: make(map[string]error),
	}
}

// AddFolder creates a folder. An empty parentID creates a top-level folder.
func (s *DocumentStore) AddFolder(parentID, name string) domain.Folder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFolderLocked(parentID, name)
}

// AddFile creates a file with content and returns it.
func (s *DocumentStore) AddFile(folderID, name, mimeType string, content []byte) domain.File {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addFileLocked(folderID, name, mimeType, content)
}

// FailListing makes ListFiles and ListFolders on folderID return err.
func (s *DocumentStore) FailListing(folderID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErrs[folderID] = err
}

// OnCopy registers a hook that may alter each copy before it is stored.
func (s *DocumentStore) OnCopy(fn func(copied *domain.File)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCopy = fn
}

// Trashed returns the soft-deleted files.
func (s *DocumentStore) Trashed() []domain.File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.File, 0, len(s.trash))
	for _, sf := range s.trash {
		out = append(out, sf.file)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Content returns a live file's bytes.
func (s *DocumentStore) Content(fileID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.files[fileID]
	if !ok {
		return nil, false
	}
	return sf.content, true
}

// ListFiles returns the files directly inside a folder, sorted by name.
func (s *DocumentStore) ListFiles(_ context.Context, folderID string) ([]domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.listErrs[folderID]; err != nil {
		return nil, err
	}
	if _, ok := s.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	var out []domain.File
	for _, sf := range s.files {
		if sf.file.ParentID == folderID {
			out = append(out, sf.file)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListFolders returns the folders directly inside a folder, sorted by name.
func (s *DocumentStore) ListFolders(_ context.Context, folderID string) ([]domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.listErrs[folderID]; err != nil {
		return nil, err
	}
	if _, ok := s.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	var out []domain.Folder
	for _, f := range s.folders {
		if f.ParentID == folderID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GetFolder retrieves a folder by ID.
func (s *DocumentStore) GetFolder(_ context.Context, folderID string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.folders[folderID]
	if !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	return &f, nil
}

// GetParent returns the folder containing a file or folder.
func (s *DocumentStore) GetParent(_ context.Context, id string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var parentID string
	if f, ok := s.folders[id]; ok {
		parentID = f.ParentID
	} else if sf, ok := s.files[id]; ok {
		parentID = sf.file.ParentID
	} else {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrNotFound)
	}
	if parentID == "" {
		return nil, nil
	}
	parent, ok := s.folders[parentID]
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

// FindByName returns the file with the exact name inside a folder.
func (s *DocumentStore) FindByName(_ context.Context, folderID, name string) (*domain.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sf := range s.files {
		if sf.file.ParentID == folderID && sf.file.Name == name {
			f := sf.file
			return &f, nil
		}
	}
	return nil, nil
}

// FindFolderByName returns the child folder with the exact name.
func (s *DocumentStore) FindFolderByName(_ context.Context, parentID, name string) (*domain.Folder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.folders {
		if f.ParentID == parentID && f.Name == name {
			out := f
			return &out, nil
		}
	}
	return nil, nil
}

// CreateFile writes a new file.
func (s *DocumentStore) CreateFile(_ context.Context, folderID, name, mimeType string, data []byte) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[folderID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", folderID, domain.ErrNotFound)
	}
	f := s.addFileLocked(folderID, name, mimeType, data)
	return &f, nil
}

// CreateFolder creates a child folder.
func (s *DocumentStore) CreateFolder(_ context.Context, parentID, name string) (*domain.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[parentID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", parentID, domain.ErrNotFound)
	}
	f := s.addFolderLocked(parentID, name)
	return &f, nil
}

// CopyFile copies a file into a folder under the given name.
func (s *DocumentStore) CopyFile(_ context.Context, file domain.File, name, destFolderID string) (*domain.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.files[file.ID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", file.ID, domain.ErrNotFound)
	}
	if _, ok := s.folders[destFolderID]; !ok {
		return nil, fmt.Errorf("folder %s: %w", destFolderID, domain.ErrNotFound)
	}
	content := append([]byte(nil), src.content...)
	copied := s.addFileLocked(destFolderID, name, src.file.MimeType, content)
	if s.onCopy != nil {
		s.onCopy(&copied)
		s.files[copied.ID].file = copied
	}
	return &copied, nil
}

// SoftDelete moves a file to the trash.
func (s *DocumentStore) SoftDelete(_ context.Context, file domain.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", file.ID, domain.ErrNotFound)
	}
	delete(s.files, file.ID)
	s.trash[file.ID] = sf
	return nil
}

// SetMarker stores the marker in the file description.
func (s *DocumentStore) SetMarker(_ context.Context, file domain.File, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", file.ID, domain.ErrNotFound)
	}
	sf.file.Description = text
	return nil
}

// ReadContent returns the file bytes.
func (s *DocumentStore) ReadContent(_ context.Context, file domain.File) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sf, ok := s.files[file.ID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", file.ID, domain.ErrNotFound)
	}
	return append([]byte(nil), sf.content...), nil
}

func (s *DocumentStore) addFolderLocked(parentID, name string) domain.Folder {
	s.seq++
	f := domain.Folder{ID: fmt.Sprintf("folder-%d", s.seq), Name: name, ParentID: parentID}
	s.folders[f.ID] = f
	return f
}

func (s *DocumentStore) addFileLocked(folderID, name, mimeType string, content []byte) domain.File {
	s.seq++
	f := domain.File{
		ID:           fmt.Sprintf("file-%d", s.seq),
		Name:         name,
		MimeType:     mimeType,
		Size:         int64(len(content)),
		ParentID:     folderID,
		ModifiedTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Minute),
	}
	s.files[f.ID] = &storedFile{file: f, content: content}
	return f
}
