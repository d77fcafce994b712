package integration

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/blob"
	"drivefs/internal/common"
	"drivefs/internal/storage"
	"drivefs/internal/vfs"
)

// TestDriveLifecycle runs a full user scenario against on-disk stores:
// uploads, folder operations, a copy that shares blobs, a zip download and a
// recursive delete, then reopens the database to verify persistence.
func TestDriveLifecycle(t *testing.T) {
	t.Parallel()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "metadata.db")
	store, err := storage.Create(dbPath)
	require.NoError(t, err)
	blobs, err := blob.NewOSStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	engine := vfs.NewEngine(store, blobs, vfs.Options{DefaultQuotaBytes: 1 << 20})

	ctx := context.Background()
	const owner = "alice"

	// Build a small tree.
	_, err = engine.CreateFolder(ctx, owner, "/", "photos")
	require.NoError(t, err)
	_, err = engine.CreateFolder(ctx, owner, "/photos", "2026")
	require.NoError(t, err)
	_, err = engine.Upload(ctx, owner, "/photos/2026", "trip.txt", "text/plain", 9, strings.NewReader("mountains"))
	require.NoError(t, err)
	_, err = engine.Upload(ctx, owner, "/", "readme.md", "text/markdown", 6, strings.NewReader("# docs"))
	require.NoError(t, err)

	usage, err := engine.Usage(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(15), usage.UsedBytes)

	// Copy the photos tree, then move the copy.
	photos, err := engine.Resolve(ctx, owner, "/photos")
	require.NoError(t, err)
	backup, err := engine.CreateFolder(ctx, owner, "/", "backup")
	require.NoError(t, err)
	_, err = engine.Copy(ctx, owner, photos.ID, backup.ID)
	require.NoError(t, err)

	usage, err = engine.Usage(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(24), usage.UsedBytes, "copy billed at full size")

	copied, err := engine.Resolve(ctx, owner, "/backup/photos")
	require.NoError(t, err)
	archiveDir, err := engine.CreateFolder(ctx, owner, "/", "archive")
	require.NoError(t, err)
	_, err = engine.Move(ctx, owner, copied.ID, archiveDir.ID)
	require.NoError(t, err)

	// Zip download of the moved copy.
	var buf bytes.Buffer
	moved, err := engine.Resolve(ctx, owner, "/archive/photos")
	require.NoError(t, err)
	require.NoError(t, engine.WriteArchive(ctx, owner, []string{moved.ID}, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "photos/2026/trip.txt" {
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			rc.Close()
			require.NoError(t, err)
			assert.Equal(t, "mountains", string(data))
		}
	}
	assert.Contains(t, names, "photos/2026/trip.txt")

	// Delete the original; the copy keeps working through the shared blob.
	freed, err := engine.Delete(ctx, owner, photos.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), freed)

	tripCopy, err := engine.Resolve(ctx, owner, "/archive/photos/2026/trip.txt")
	require.NoError(t, err)
	rc, _, err := engine.OpenFile(ctx, owner, tripCopy.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "mountains", string(data))

	// Reopen the database and verify everything persisted.
	require.NoError(t, store.Close())
	store2, err := storage.Open(dbPath)
	require.NoError(t, err)
	defer store2.Close()
	engine2 := vfs.NewEngine(store2, blobs, vfs.Options{})

	_, err = engine2.Resolve(ctx, owner, "/photos")
	assert.ErrorIs(t, err, common.ErrNotFound)
	usage, err = engine2.Usage(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(15), usage.UsedBytes)

	got, err := engine2.Resolve(ctx, owner, "/archive/photos/2026/trip.txt")
	require.NoError(t, err)
	assert.Equal(t, tripCopy.ID, got.ID)
}
