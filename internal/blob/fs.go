package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// FS is a blob store over a billy filesystem. Production wires osfs rooted at
// the configured blob directory; tests wire memfs. Blobs are sharded into
// two-character prefix directories to keep directory fanout flat.
type FS struct {
	fs billy.Filesystem
}

// NewFS creates a blob store over the given billy filesystem.
func NewFS(fs billy.Filesystem) *FS {
	return &FS{fs: fs}
}

// NewOSStore creates a blob store on the local disk rooted at dir.
func NewOSStore(dir string) (*FS, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return NewFS(osfs.New(dir)), nil
}

func (f *FS) blobPath(ref string) (string, error) {
	if len(ref) < 2 || strings.ContainsAny(ref, "/\\") {
		return "", fmt.Errorf("invalid blob ref %q", ref)
	}
	return f.fs.Join(ref[:2], ref), nil
}

// Put streams r into the blob identified by ref. The data lands in a temp
// file first and is renamed into place, so a failed write never leaves a
// readable partial blob.
func (f *FS) Put(ctx context.Context, ref string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := f.blobPath(ref)
	if err != nil {
		return 0, err
	}

	dir := f.fs.Join(ref[:2])
	if err := f.fs.MkdirAll(dir, 0700); err != nil {
		return 0, fmt.Errorf("failed to create blob shard: %w", err)
	}

	tmp, err := f.fs.TempFile(dir, ".put-")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp blob: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to write blob %s: %w", ref, err)
	}

	if err := f.fs.Rename(tmpName, path); err != nil {
		_ = f.fs.Remove(tmpName)
		return 0, fmt.Errorf("failed to publish blob %s: %w", ref, err)
	}
	return n, nil
}

// Open returns a streaming reader for the blob.
func (f *FS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.blobPath(ref)
	if err != nil {
		return nil, err
	}
	file, err := f.fs.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", ref, err)
	}
	return file, nil
}

// Size returns the stored byte length of the blob.
func (f *FS) Size(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := f.blobPath(ref)
	if err != nil {
		return 0, err
	}
	info, err := f.fs.Stat(path)
	if os.IsNotExist(err) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat blob %s: %w", ref, err)
	}
	return info.Size(), nil
}

// Rename re-keys a blob, moving it into the shard of the new ref.
func (f *FS) Rename(ctx context.Context, oldRef, newRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	oldPath, err := f.blobPath(oldRef)
	if err != nil {
		return err
	}
	newPath, err := f.blobPath(newRef)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(f.fs.Join(newRef[:2]), 0700); err != nil {
		return fmt.Errorf("failed to create blob shard: %w", err)
	}
	err = f.fs.Rename(oldPath, newPath)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to rename blob %s: %w", oldRef, err)
	}
	return nil
}

// Delete removes the blob.
func (f *FS) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.blobPath(ref)
	if err != nil {
		return err
	}
	err = f.fs.Remove(path)
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}
	return nil
}

// List returns every blob ref currently stored. Used by the orphan sweep;
// not part of the Store contract the engine depends on.
func (f *FS) List(ctx context.Context) ([]string, error) {
	shards, err := f.fs.ReadDir(".")
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var refs []string
	for _, shard := range shards {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !shard.IsDir() {
			continue
		}
		files, err := f.fs.ReadDir(shard.Name())
		if err != nil {
			return nil, err
		}
		for _, fi := range files {
			if fi.IsDir() || strings.HasPrefix(fi.Name(), ".put-") {
				continue
			}
			refs = append(refs, fi.Name())
		}
	}
	return refs, nil
}

// contextReader aborts a long copy when the caller disconnects.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
