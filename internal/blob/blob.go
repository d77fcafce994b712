// Package blob stores file content as opaque byte objects keyed by blob refs.
//
// The blob store manages only raw bytes. It does not know about owners, the
// entry tree, quotas, or reference counts; all of that lives in the metadata
// store, which decides when a ref may be deleted.
package blob

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a blob ref does not exist.
var ErrNotFound = errors.New("blob not found")

// Store is the byte-storage contract consumed by the engine. Refs are opaque;
// only the store implementation interprets them. Implementations must be safe
// for concurrent use.
type Store interface {
	// Put streams r into a new blob under ref and returns the byte count.
	// A partial write must not leave a readable blob behind.
	Put(ctx context.Context, ref string, r io.Reader) (int64, error)

	// Open returns a streaming reader for the blob. The caller must close it.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Size returns the stored byte length without reading the data.
	Size(ctx context.Context, ref string) (int64, error)

	// Rename re-keys an existing blob under a new ref. Renaming a missing
	// ref returns ErrNotFound.
	Rename(ctx context.Context, oldRef, newRef string) error

	// Delete removes the blob. Deleting a missing ref returns ErrNotFound.
	Delete(ctx context.Context, ref string) error
}

// NewRef allocates a fresh opaque blob ref, used to stage content before it
// is published under its final ref.
func NewRef() string {
	return uuid.NewString()
}
