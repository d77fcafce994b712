package blob

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS(t *testing.T) *FS {
	t.Helper()
	return NewFS(memfs.New())
}

func TestPutOpenRoundTrip(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()
	ref := NewRef()

	n, err := f.Put(ctx, ref, strings.NewReader("hello blob"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	rc, err := f.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello blob", string(data))

	size, err := f.Size(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestPutEmptyBlob(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()
	ref := NewRef()

	n, err := f.Put(ctx, ref, strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	size, err := f.Size(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestOpenMissing(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()

	_, err := f.Open(ctx, NewRef())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.Size(ctx, NewRef())
	assert.ErrorIs(t, err, ErrNotFound)
	err = f.Delete(ctx, NewRef())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()
	ref := NewRef()

	_, err := f.Put(ctx, ref, strings.NewReader("x"))
	require.NoError(t, err)
	require.NoError(t, f.Delete(ctx, ref))

	_, err = f.Open(ctx, ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRename(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()
	oldRef, newRef := NewRef(), NewRef()

	_, err := f.Put(ctx, oldRef, strings.NewReader("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Rename(ctx, oldRef, newRef))

	_, err = f.Open(ctx, oldRef)
	assert.ErrorIs(t, err, ErrNotFound)

	rc, err := f.Open(ctx, newRef)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	err = f.Rename(ctx, NewRef(), NewRef())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidRefs(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()

	for _, ref := range []string{"", "a", "../etc/passwd", "ab/cd", "ab\\cd"} {
		_, err := f.Put(ctx, ref, strings.NewReader("x"))
		assert.Error(t, err, "ref %q should be rejected", ref)
	}
}

func TestPutCancelledContext(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Put(ctx, NewRef(), strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestList(t *testing.T) {
	t.Parallel()

	f := testFS(t)
	ctx := context.Background()

	refs := []string{NewRef(), NewRef(), NewRef()}
	for _, ref := range refs {
		_, err := f.Put(ctx, ref, strings.NewReader("x"))
		require.NoError(t, err)
	}

	got, err := f.List(ctx)
	require.NoError(t, err)
	sort.Strings(refs)
	sort.Strings(got)
	assert.Equal(t, refs, got)
}

func TestNewOSStore(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "blobs")
	f, err := NewOSStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	ref := NewRef()
	_, err = f.Put(ctx, ref, strings.NewReader("on disk"))
	require.NoError(t, err)

	rc, err := f.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))
}
