package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/common"
)

func TestEnsureRoot(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.True(t, root.IsFolder())

	// Idempotent: second call returns the same row.
	again, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, root.ID, again.ID)

	// Separate owners get separate roots.
	other, err := s.EnsureRoot(ctx, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, root.ID, other.ID)
}

func TestGetEntryScopedToOwner(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	file := insertFile(t, s, "alice", root.ID, "notes.txt", 42, "blob-1")

	got, err := s.GetEntry(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", got.Name)
	assert.Equal(t, int64(42), got.SizeBytes)

	// Another owner cannot see it.
	_, err = s.GetEntry(ctx, "bob", file.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSiblingNameUniqueness(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	insertFolder(t, s, "alice", root.ID, "docs")

	// Same name under the same parent fails, file or folder.
	now := time.Now()
	dup := &Entry{
		ID: "dup-id", OwnerID: "alice", ParentID: root.ID,
		Name: "docs", Kind: KindFile, CreatedAt: now, UpdatedAt: now,
	}
	err = s.InsertEntryWith(s.DB(), ctx, dup)
	assert.ErrorIs(t, err, common.ErrNameConflict)

	// Same name under a different parent is fine.
	sub := insertFolder(t, s, "alice", root.ID, "archive")
	insertFolder(t, s, "alice", sub.ID, "docs")

	// Same name for a different owner is fine.
	bobRoot, err := s.EnsureRoot(ctx, "bob")
	require.NoError(t, err)
	insertFolder(t, s, "bob", bobRoot.ID, "docs")
}

func TestListChildrenOrdered(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	insertFile(t, s, "alice", root.ID, "zebra.txt", 1, "b1")
	insertFolder(t, s, "alice", root.ID, "alpha")
	insertFile(t, s, "alice", root.ID, "midway.txt", 1, "b2")

	children, err := s.ListChildren(ctx, "alice", root.ID)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "alpha", children[0].Name)
	assert.Equal(t, "midway.txt", children[1].Name)
	assert.Equal(t, "zebra.txt", children[2].Name)
}

func TestUpdateNameAndParent(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	docs := insertFolder(t, s, "alice", root.ID, "docs")
	file := insertFile(t, s, "alice", root.ID, "notes.txt", 10, "b1")

	require.NoError(t, s.UpdateNameWith(s.DB(), ctx, "alice", file.ID, "renamed.txt", time.Now()))
	got, err := s.GetEntry(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed.txt", got.Name)

	require.NoError(t, s.UpdateParentWith(s.DB(), ctx, "alice", file.ID, docs.ID, time.Now()))
	got, err = s.GetEntry(ctx, "alice", file.ID)
	require.NoError(t, err)
	assert.Equal(t, docs.ID, got.ParentID)

	// Unknown id reports not found.
	err = s.UpdateNameWith(s.DB(), ctx, "alice", "no-such-id", "x", time.Now())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteEntries(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	a := insertFile(t, s, "alice", root.ID, "a.txt", 1, "b1")
	b := insertFile(t, s, "alice", root.ID, "b.txt", 1, "b2")

	require.NoError(t, s.DeleteEntriesWith(s.DB(), ctx, "alice", []string{a.ID, b.ID}))
	_, err = s.GetEntry(ctx, "alice", a.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Empty id list is a no-op.
	require.NoError(t, s.DeleteEntriesWith(s.DB(), ctx, "alice", nil))
}

func TestBlobRefCounting(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	aliceRoot, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	bobRoot, err := s.EnsureRoot(ctx, "bob")
	require.NoError(t, err)

	// The same blob referenced by two owners counts across both.
	insertFile(t, s, "alice", aliceRoot.ID, "shared.bin", 5, "shared-blob")
	bobFile := insertFile(t, s, "bob", bobRoot.ID, "shared.bin", 5, "shared-blob")

	n, err := s.CountBlobRefsWith(s.DB(), ctx, "shared-blob")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.DeleteEntriesWith(s.DB(), ctx, "bob", []string{bobFile.ID}))
	n, err = s.CountBlobRefsWith(s.DB(), ctx, "shared-blob")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	refs, err := s.ListBlobRefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"shared-blob"}, refs)
}

func TestCountEntriesAndListOwners(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	ctx := context.Background()

	root, err := s.EnsureRoot(ctx, "alice")
	require.NoError(t, err)
	insertFolder(t, s, "alice", root.ID, "docs")
	insertFile(t, s, "alice", root.ID, "a.txt", 1, "b1")
	_, err = s.EnsureRoot(ctx, "bob")
	require.NoError(t, err)

	files, folders, err := s.CountEntries(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, files)
	assert.Equal(t, 2, folders, "root folder counts")

	owners, err := s.ListOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, owners)
}
