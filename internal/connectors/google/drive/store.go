// Package drive implements the document store, OCR and conversion ports
// on Google Drive.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/archivist/internal/connectors/google"
	"github.com/custodia-labs/archivist/internal/core/domain"
	"github.com/custodia-labs/archivist/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.DocumentStore = (*Store)(nil)

const (
	fileFields = "id, name, mimeType, size, parents, description, modifiedTime"
	listFields = googleapi.Field("nextPageToken, files(" + fileFields + ")")
)

// Store is a DocumentStore over a Drive folder tree.
type Store struct {
	svc     *drive.Service
	limiter *google.RateLimiter
	cfg     Config
}

// NewStore creates a Drive-backed document store.
// A nil limiter uses the Drive defaults.
func NewStore(svc *drive.Service, limiter *google.RateLimiter, cfg Config) *Store {
	if limiter == nil {
		limiter = google.NewRateLimiter()
	}
	return &Store{svc: svc, limiter: limiter, cfg: cfg.withDefaults()}
}

// ListFiles returns the non-folder children of a folder.
func (s *Store) ListFiles(ctx context.Context, folderID string) ([]domain.File, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", escape(folderID), domain.MimeFolder)
	items, err := s.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list files in %s: %w", folderID, err)
	}
	files := make([]domain.File, 0, len(items))
	for _, item := range items {
		files = append(files, toFile(item))
	}
	return files, nil
}

// ListFolders returns the folder children of a folder.
func (s *Store) ListFolders(ctx context.Context, folderID string) ([]domain.Folder, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and mimeType = '%s'", escape(folderID), domain.MimeFolder)
	items, err := s.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list folders in %s: %w", folderID, err)
	}
	folders := make([]domain.Folder, 0, len(items))
	for _, item := range items {
		folders = append(folders, toFolder(item))
	}
	return folders, nil
}

// GetFolder retrieves a folder by ID.
func (s *Store) GetFolder(ctx context.Context, folderID string) (*domain.Folder, error) {
	item, err := s.get(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("get folder %s: %w", folderID, err)
	}
	if item.MimeType != domain.MimeFolder {
		return nil, fmt.Errorf("%w: %s is not a folder", domain.ErrInvalidInput, folderID)
	}
	folder := toFolder(item)
	return &folder, nil
}

// GetParent returns the first parent of a file or folder. Drive items
// have at most one parent since 2020; a missing parent is the top.
func (s *Store) GetParent(ctx context.Context, id string) (*domain.Folder, error) {
	item, err := s.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get parent of %s: %w", id, err)
	}
	if len(item.Parents) == 0 {
		return nil, nil
	}
	parent, err := s.get(ctx, item.Parents[0])
	if google.IsNotFound(err) {
		// The parent exists but is outside what we may read.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get parent of %s: %w", id, err)
	}
	folder := toFolder(parent)
	return &folder, nil
}

// FindByName returns the non-folder child with the exact name.
func (s *Store) FindByName(ctx context.Context, folderID, name string) (*domain.File, error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false and mimeType != '%s'",
		escape(folderID), escape(name), domain.MimeFolder)
	items, err := s.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find %q in %s: %w", name, folderID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	file := toFile(items[0])
	return &file, nil
}

// FindFolderByName returns the child folder with the exact name.
func (s *Store) FindFolderByName(ctx context.Context, parentID, name string) (*domain.Folder, error) {
	q := fmt.Sprintf("'%s' in parents and name = '%s' and trashed = false and mimeType = '%s'",
		escape(parentID), escape(name), domain.MimeFolder)
	items, err := s.list(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find folder %q in %s: %w", name, parentID, err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	folder := toFolder(items[0])
	return &folder, nil
}

// CreateFile uploads a new file.
func (s *Store) CreateFile(ctx context.Context, folderID, name, mimeType string, data []byte) (*domain.File, error) {
	var created *drive.File
	err := s.limiter.Do(ctx, func() error {
		var err error
		created, err = s.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: mimeType,
			Parents:  []string{folderID},
		}).
			Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields(fileFields).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create %q in %s: %w", name, folderID, err)
	}
	file := toFile(created)
	return &file, nil
}

// CreateFolder creates a child folder.
func (s *Store) CreateFolder(ctx context.Context, parentID, name string) (*domain.Folder, error) {
	var created *drive.File
	err := s.limiter.Do(ctx, func() error {
		var err error
		created, err = s.svc.Files.Create(&drive.File{
			Name:     name,
			MimeType: domain.MimeFolder,
			Parents:  []string{parentID},
		}).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields(fileFields).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create folder %q in %s: %w", name, parentID, err)
	}
	folder := toFolder(created)
	return &folder, nil
}

// CopyFile copies a file into a folder under the given name.
func (s *Store) CopyFile(ctx context.Context, file domain.File, name, destFolderID string) (*domain.File, error) {
	var copied *drive.File
	err := s.limiter.Do(ctx, func() error {
		var err error
		copied, err = s.svc.Files.Copy(file.ID, &drive.File{
			Name:    name,
			Parents: []string{destFolderID},
		}).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields(fileFields).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("copy %s to %s: %w", file.Name, destFolderID, err)
	}
	out := toFile(copied)
	return &out, nil
}

// SoftDelete moves a file to the Drive trash.
func (s *Store) SoftDelete(ctx context.Context, file domain.File) error {
	if err := s.update(ctx, file.ID, &drive.File{Trashed: true}); err != nil {
		return fmt.Errorf("trash %s: %w", file.Name, err)
	}
	return nil
}

// SetMarker writes the marker to the file description.
func (s *Store) SetMarker(ctx context.Context, file domain.File, text string) error {
	if err := s.update(ctx, file.ID, &drive.File{Description: text}); err != nil {
		return fmt.Errorf("set marker on %s: %w", file.Name, err)
	}
	return nil
}

// ReadContent downloads a file. Native spreadsheets are exported as xlsx.
func (s *Store) ReadContent(ctx context.Context, file domain.File) ([]byte, error) {
	var data []byte
	err := s.limiter.Do(ctx, func() error {
		var resp *http.Response
		var err error
		if file.MimeType == domain.MimeNativeSpreadsheet {
			resp, err = s.svc.Files.Export(file.ID, ExportMimeXlsx).Context(ctx).Download()
		} else {
			resp, err = s.svc.Files.Get(file.ID).SupportsAllDrives(s.cfg.SharedDrives).Context(ctx).Download()
		}
		if err != nil {
			return err
		}
		data, err = readLimited(resp, s.cfg.MaxDownloadSize)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file.Name, err)
	}
	return data, nil
}

func (s *Store) list(ctx context.Context, q string) ([]*drive.File, error) {
	var out []*drive.File
	pageToken := ""
	for {
		var page *drive.FileList
		err := s.limiter.Do(ctx, func() error {
			call := s.svc.Files.List().
				Q(q).
				Fields(listFields).
				PageSize(s.cfg.PageSize).
				OrderBy("name").
				Context(ctx)
			if s.cfg.SharedDrives {
				call = call.SupportsAllDrives(true).IncludeItemsFromAllDrives(true)
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			var err error
			page, err = call.Do()
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page.Files...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (s *Store) get(ctx context.Context, id string) (*drive.File, error) {
	var item *drive.File
	err := s.limiter.Do(ctx, func() error {
		var err error
		item, err = s.svc.Files.Get(id).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields(fileFields).
			Context(ctx).
			Do()
		return err
	})
	return item, err
}

func (s *Store) update(ctx context.Context, id string, patch *drive.File) error {
	return s.limiter.Do(ctx, func() error {
		_, err := s.svc.Files.Update(id, patch).
			SupportsAllDrives(s.cfg.SharedDrives).
			Fields("id").
			Context(ctx).
			Do()
		return err
	})
}

func toFile(f *drive.File) domain.File {
	file := domain.File{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		Description: f.Description,
	}
	if len(f.Parents) > 0 {
		file.ParentID = f.Parents[0]
	}
	if t, err := time.Parse(time.RFC3339, f.ModifiedTime); err == nil {
		file.ModifiedTime = t
	}
	return file
}

func toFolder(f *drive.File) domain.Folder {
	folder := domain.Folder{ID: f.Id, Name: f.Name}
	if len(f.Parents) > 0 {
		folder.ParentID = f.Parents[0]
	}
	return folder
}

// escape quotes a value for a Drive query string literal.
func escape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func readLimited(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", domain.ErrInvalidInput, limit)
	}
	return data, nil
}
