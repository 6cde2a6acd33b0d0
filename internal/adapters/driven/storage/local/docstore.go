// Package local implements the document store over a directory tree.
//
// File and folder IDs are slash-separated paths relative to the root
// directory; the root itself is ".". Entries whose name starts with a dot
// are never listed, which keeps the trash directory out of every scan.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// RootID identifies the root directory.
const RootID = "."

// TrashDir is the directory under the root that soft-deleted files move to.
const TrashDir = ".trash"

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is a driven.DocumentStore backed by the local filesystem.
// Processing markers are kept in a MarkerStore since files carry no
// description field.
type DocumentStore struct {
	root    string
	markers driven.MarkerStore
	now     func() time.Time
}

// NewDocumentStore opens the tree rooted at root. markers may be nil, in
// which case markers are dropped.
func NewDocumentStore(root string, markers driven.MarkerStore) (*DocumentStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: local root %s: %v", domain.ErrStoreUnavailable, abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: local root %s is not a directory", domain.ErrInvalidInput, abs)
	}
	return &DocumentStore{root: abs, markers: markers, now: time.Now}, nil
}

// Root returns the absolute root directory.
func (s *DocumentStore) Root() string {
	return s.root
}

// ListFiles returns the files directly inside a folder, sorted by name.
func (s *DocumentStore) ListFiles(ctx context.Context, folderID string) ([]domain.File, error) {
	id, entries, err := s.readDir(folderID)
	if err != nil {
		return nil, err
	}

	var files []domain.File //nolint:prealloc // hidden entries and folders are skipped
	for _, entry := range entries {
		if entry.IsDir() || hidden(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		file, err := s.fileFromInfo(ctx, id, info)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

// ListFolders returns the folders directly inside a folder, sorted by name.
func (s *DocumentStore) ListFolders(_ context.Context, folderID string) ([]domain.Folder, error) {
	id, entries, err := s.readDir(folderID)
	if err != nil {
		return nil, err
	}

	var folders []domain.Folder //nolint:prealloc // hidden entries and files are skipped
	for _, entry := range entries {
		if !entry.IsDir() || hidden(entry.Name()) {
			continue
		}
		folders = append(folders, domain.Folder{
			ID:       childID(id, entry.Name()),
			Name:     entry.Name(),
			ParentID: id,
		})
	}
	return folders, nil
}

// GetFolder retrieves a folder by ID.
func (s *DocumentStore) GetFolder(_ context.Context, folderID string) (*domain.Folder, error) {
	id := normaliseID(folderID)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: folder %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("stat folder %s: %w", id, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a folder", domain.ErrNotFound, id)
	}

	folder := &domain.Folder{ID: id, Name: info.Name()}
	if id != RootID {
		folder.ParentID = parentID(id)
	}
	return folder, nil
}

// GetParent returns the folder containing the given ID, or nil at the root.
func (s *DocumentStore) GetParent(ctx context.Context, id string) (*domain.Folder, error) {
	id = normaliseID(id)
	if id == RootID {
		return nil, nil
	}
	return s.GetFolder(ctx, parentID(id))
}

// FindByName returns the file with the exact name inside a folder.
func (s *DocumentStore) FindByName(ctx context.Context, folderID, name string) (*domain.File, error) {
	id := childID(normaliseID(folderID), name)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", id, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	file, err := s.fileFromInfo(ctx, normaliseID(folderID), info)
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// FindFolderByName returns the child folder with the exact name.
func (s *DocumentStore) FindFolderByName(_ context.Context, parentFolderID, name string) (*domain.Folder, error) {
	parent := normaliseID(parentFolderID)
	id := childID(parent, name)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", id, err)
	}
	if !info.IsDir() {
		return nil, nil
	}
	return &domain.Folder{ID: id, Name: name, ParentID: parent}, nil
}

// CreateFile writes a new file, replacing any existing file of that name.
func (s *DocumentStore) CreateFile(
	ctx context.Context, folderID, name, _ string, data []byte,
) (*domain.File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	parent := normaliseID(folderID)
	full, err := s.resolve(childID(parent, name))
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}
	return s.FindByName(ctx, parent, name)
}

// CreateFolder creates a child folder.
func (s *DocumentStore) CreateFolder(_ context.Context, parentFolderID, name string) (*domain.Folder, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	parent := normaliseID(parentFolderID)
	id := childID(parent, name)
	full, err := s.resolve(id)
	if err != nil {
		return nil, err
	}
	if err := os.Mkdir(full, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: folder %s", domain.ErrAlreadyExists, id)
		}
		return nil, fmt.Errorf("creating folder %s: %w", id, err)
	}
	return &domain.Folder{ID: id, Name: name, ParentID: parent}, nil
}

// CopyFile streams a file into a folder under the given name. The returned
// file reports the size actually written.
func (s *DocumentStore) CopyFile(
	ctx context.Context, file domain.File, name, destFolderID string,
) (*domain.File, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	src, err := s.resolve(file.ID)
	if err != nil {
		return nil, err
	}
	dest := normaliseID(destFolderID)
	dst, err := s.resolve(childID(dest, name))
	if err != nil {
		return nil, err
	}

	if err := copyFile(src, dst); err != nil {
		return nil, fmt.Errorf("copying %s: %w", file.Name, err)
	}
	return s.FindByName(ctx, dest, name)
}

// SoftDelete moves a file to <root>/.trash/<timestamp>-<name> and drops its marker.
func (s *DocumentStore) SoftDelete(ctx context.Context, file domain.File) error {
	src, err := s.resolve(file.ID)
	if err != nil {
		return err
	}
	trash := filepath.Join(s.root, TrashDir)
	if err := os.MkdirAll(trash, 0o700); err != nil {
		return fmt.Errorf("creating trash: %w", err)
	}

	dst := filepath.Join(trash, fmt.Sprintf("%s-%s", s.now().UTC().Format("20060102T150405.000000000"), file.Name))
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("trashing %s: %w", file.Name, err)
	}

	if s.markers != nil {
		if err := s.markers.DeleteMarker(ctx, normaliseID(file.ID)); err != nil {
			return fmt.Errorf("dropping marker for %s: %w", file.Name, err)
		}
	}
	return nil
}

// SetMarker records the processing marker for a file.
func (s *DocumentStore) SetMarker(ctx context.Context, file domain.File, text string) error {
	if s.markers == nil {
		return nil
	}
	return s.markers.SetMarker(ctx, normaliseID(file.ID), text)
}

// ReadContent returns the file bytes.
func (s *DocumentStore) ReadContent(_ context.Context, file domain.File) ([]byte, error) {
	full, err := s.resolve(file.ID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %s", domain.ErrNotFound, file.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file.Name, err)
	}
	return data, nil
}

// resolve maps an ID to a path that cannot escape the root.
func (s *DocumentStore) resolve(id string) (string, error) {
	full, err := securejoin.SecureJoin(s.root, filepath.FromSlash(normaliseID(id)))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, id, err)
	}
	return full, nil
}

func (s *DocumentStore) readDir(folderID string) (string, []os.DirEntry, error) {
	id := normaliseID(folderID)
	full, err := s.resolve(id)
	if err != nil {
		return "", nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("%w: folder %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return "", nil, fmt.Errorf("listing %s: %w", id, err)
	}
	return id, entries, nil
}

func (s *DocumentStore) fileFromInfo(ctx context.Context, folderID string, info fs.FileInfo) (domain.File, error) {
	id := childID(folderID, info.Name())
	file := domain.File{
		ID:           id,
		Name:         info.Name(),
		MimeType:     domain.MimeForExtension(domain.Extension(info.Name())),
		Size:         info.Size(),
		ParentID:     folderID,
		ModifiedTime: info.ModTime().UTC(),
	}
	if s.markers != nil {
		marker, err := s.markers.GetMarker(ctx, id)
		if err != nil {
			return domain.File{}, fmt.Errorf("reading marker for %s: %w", id, err)
		}
		file.Description = marker
	}
	return file, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

func normaliseID(id string) string {
	if id == "" {
		return RootID
	}
	return path.Clean(strings.TrimPrefix(filepath.ToSlash(id), "/"))
}

func childID(folderID, name string) string {
	if folderID == RootID {
		return name
	}
	return folderID + "/" + name
}

func parentID(id string) string {
	return path.Dir(id)
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid name %q", domain.ErrInvalidInput, name)
	}
	return nil
}
