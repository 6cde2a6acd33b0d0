package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/archivist/internal/core/domain"
)

func TestNewDocumentStore(t *testing.T) {
	store := NewDocumentStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.folders)
	assert.NotNil(t, store.files)
	assert.NotNil(t, store.trash)
}

func TestDocumentStore_ListFiles_SortedAndScoped(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	root := store.AddFolder("", "root")
	sub := store.AddFolder(root.ID, "sub")
	store.AddFile(root.ID, "b.pdf", domain.MimePDF, []byte("b"))
	store.AddFile(root.ID, "a.pdf", domain.MimePDF, []byte("a"))
	store.AddFile(sub.ID, "c.pdf", domain.MimePDF, []byte("c"))

	files, err := store.ListFiles(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, "b.pdf", files[1].Name)

	folders, err := store.ListFolders(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "sub", folders[0].Name)
}

func TestDocumentStore_ListFiles_UnknownFolder(t *testing.T) {
	store := NewDocumentStore()

	_, err := store.ListFiles(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_FailListing(t *testing.T) {
	store := NewDocumentStore()
	root := store.AddFolder("", "root")
	boom := errors.New("boom")
	store.FailListing(root.ID, boom)

	_, err := store.ListFiles(context.Background(), root.ID)
	assert.ErrorIs(t, err, boom)
	_, err = store.ListFolders(context.Background(), root.ID)
	assert.ErrorIs(t, err, boom)
}

func TestDocumentStore_GetParent(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()

	root := store.AddFolder("", "root")
	sub := store.AddFolder(root.ID, "sub")
	file := store.AddFile(sub.ID, "a.pdf", domain.MimePDF, nil)

	parent, err := store.GetParent(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, parent.ID)

	parent, err = store.GetParent(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, root.ID, parent.ID)

	parent, err = store.GetParent(ctx, root.ID)
	require.NoError(t, err)
	assert.Nil(t, parent)

	_, err = store.GetParent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_FindByName(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	root := store.AddFolder("", "root")
	store.AddFile(root.ID, "a.pdf", domain.MimePDF, nil)
	store.AddFolder(root.ID, "Projects")

	f, err := store.FindByName(ctx, root.ID, "a.pdf")
	require.NoError(t, err)
	require.NotNil(t, f)

	f, err = store.FindByName(ctx, root.ID, "A.pdf")
	require.NoError(t, err)
	assert.Nil(t, f)

	folder, err := store.FindFolderByName(ctx, root.ID, "Projects")
	require.NoError(t, err)
	require.NotNil(t, folder)

	folder, err = store.FindFolderByName(ctx, root.ID, "Other")
	require.NoError(t, err)
	assert.Nil(t, folder)
}

func TestDocumentStore_CreateFile(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	root := store.AddFolder("", "root")

	created, err := store.CreateFile(ctx, root.ID, "a.txt", domain.MimePlainText, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), created.Size)

	content, err := store.ReadContent(ctx, *created)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = store.CreateFile(ctx, "missing", "a.txt", domain.MimePlainText, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_CopyAndSoftDelete(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	src := store.AddFolder("", "src")
	dst := store.AddFolder("", "dst")
	file := store.AddFile(src.ID, "a.pdf", domain.MimePDF, []byte("pdf-bytes"))

	copied, err := store.CopyFile(ctx, file, file.Name, dst.ID)
	require.NoError(t, err)
	assert.NotEqual(t, file.ID, copied.ID)
	assert.Equal(t, dst.ID, copied.ParentID)
	assert.Equal(t, file.Size, copied.Size)

	require.NoError(t, store.SoftDelete(ctx, file))
	_, ok := store.Content(file.ID)
	assert.False(t, ok)

	trashed := store.Trashed()
	require.Len(t, trashed, 1)
	assert.Equal(t, "a.pdf", trashed[0].Name)

	assert.ErrorIs(t, store.SoftDelete(ctx, file), domain.ErrNotFound)
}

func TestDocumentStore_OnCopy(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	src := store.AddFolder("", "src")
	dst := store.AddFolder("", "dst")
	file := store.AddFile(src.ID, "a.pdf", domain.MimePDF, []byte("pdf-bytes"))

	store.OnCopy(func(f *domain.File) { f.Size = 1 })

	copied, err := store.CopyFile(ctx, file, file.Name, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), copied.Size)

	again, err := store.FindByName(ctx, dst.ID, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Size)
}

func TestDocumentStore_SetMarker(t *testing.T) {
	store := NewDocumentStore()
	ctx := context.Background()
	root := store.AddFolder("", "root")
	file := store.AddFile(root.ID, "a.pdf", domain.MimePDF, nil)

	require.NoError(t, store.SetMarker(ctx, file, domain.MarkerProcessedText))

	files, err := store.ListFiles(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MarkerProcessedText, files[0].Description)
}
