package driven

import (
	"context"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

// DocumentStore is the hierarchical tree the pipeline reads sources from
// and writes sidecars to. Files are only ever created, copied or
// soft-deleted; nothing is mutated in place except the marker.
type DocumentStore interface {
	// ListFiles returns the files directly inside a folder.
	ListFiles(ctx context.Context, folderID string) ([]domain.File, error)

	// ListFolders returns the folders directly inside a folder.
	ListFolders(ctx context.Context, folderID string) ([]domain.Folder, error)

	// GetFolder retrieves a folder by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetFolder(ctx context.Context, folderID string) (*domain.Folder, error)

	// GetParent returns the folder containing the given file or folder ID.
	// Returns nil and no error at the top of the tree.
	GetParent(ctx context.Context, id string) (*domain.Folder, error)

	// FindByName returns the file with the exact name inside a folder.
	// Returns nil and no error if there is none.
	FindByName(ctx context.Context, folderID, name string) (*domain.File, error)

	// FindFolderByName returns the child folder with the exact name.
	// Returns nil and no error if there is none.
	FindFolderByName(ctx context.Context, parentID, name string) (*domain.Folder, error)

	// CreateFile writes a new file. It does not check for an existing file
	// of the same name; callers guard with FindByName.
	CreateFile(ctx context.Context, folderID, name, mimeType string, data []byte) (*domain.File, error)

	// CreateFolder creates a child folder.
	CreateFolder(ctx context.Context, parentID, name string) (*domain.Folder, error)

	// CopyFile copies a file into a folder under the given name and returns the copy.
	CopyFile(ctx context.Context, file domain.File, name, destFolderID string) (*domain.File, error)

	// SoftDelete moves a file to the store's recoverable trash.
	SoftDelete(ctx context.Context, file domain.File) error

	// SetMarker records the advisory processing marker on a file.
	SetMarker(ctx context.Context, file domain.File, text string) error

	// ReadContent returns the file bytes. Store-native spreadsheets are
	// exported in xlsx form.
	ReadContent(ctx context.Context, file domain.File) ([]byte, error)
}
