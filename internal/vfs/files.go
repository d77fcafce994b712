// Copyright 2025 DriveFS Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"drivefs/internal/blob"
	"drivefs/internal/common"
	"drivefs/internal/storage"
)

// Upload stores the file content read from r as parentPath/name. size is the
// declared content length; the upload fails if r yields a different number of
// bytes. An existing file with the same name is replaced in place (same entry
// id); an existing folder with the same name is a name conflict.
//
// Content is deduplicated: blobs are keyed by the SHA-256 of their bytes, so
// uploading content that is already stored reuses the existing blob instead
// of writing a second copy. Quota is still charged per entry.
//
// Quota is reserved for the size delta before any blob byte is written, so a
// reader that stalls mid-upload never leaves the owner over quota. On any
// failure after reservation the bytes are released and the partial blob
// removed.
func (e *Engine) Upload(ctx context.Context, owner, parentPath, name, mimeType string, size int64, r io.Reader) (*storage.Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", common.ErrInvalidName, size)
	}
	if size > e.maxUpload {
		return nil, fmt.Errorf("%w: %d bytes exceeds the %d byte upload limit", common.ErrTooLarge, size, e.maxUpload)
	}

	unlock := e.locks.Lock(owner)
	defer unlock()

	if _, err := e.ensureAccount(ctx, owner); err != nil {
		return nil, err
	}
	parent, err := e.ResolveFolder(ctx, owner, parentPath)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.GetChild(ctx, owner, parent.ID, name)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	var oldSize int64
	if existing != nil {
		if !existing.IsFile() {
			return nil, fmt.Errorf("%w: %q is a folder", common.ErrNameConflict, name)
		}
		oldSize = existing.SizeBytes
	}

	// Reserve growth up front; shrinkage settles in the final transaction.
	delta := size - oldSize
	if delta > 0 {
		err = e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
			return e.store.ReserveQuotaWith(tx, ctx, owner, delta)
		})
		if err != nil {
			return nil, err
		}
	}

	entry, err := e.commitUpload(ctx, owner, parent.ID, name, mimeType, size, existing, r)
	if err != nil {
		e.releaseReserved(owner, delta)
		return nil, err
	}

	log.WithFields(log.Fields{
		"owner": owner,
		"id":    entry.ID,
		"name":  name,
		"size":  size,
	}).Info("file uploaded")
	return entry, nil
}

// commitUpload writes the blob and then records the entry in one metadata
// transaction. The growth part of the quota delta is already reserved.
//
// The content is staged under a throwaway ref and hashed as it streams in.
// Once complete it is published under its hash, unless a blob with that hash
// already exists, in which case the staging copy is discarded and the entry
// points at the existing blob.
func (e *Engine) commitUpload(ctx context.Context, owner, parentID, name, mimeType string, size int64, existing *storage.Entry, r io.Reader) (*storage.Entry, error) {
	staging := blob.NewRef()
	hasher := sha256.New()
	n, err := e.blobs.Put(ctx, staging, io.TeeReader(io.LimitReader(r, size), hasher))
	if err != nil {
		return nil, mapBlobErr(err)
	}
	if n != size {
		e.discardBlob(ctx, staging)
		return nil, fmt.Errorf("%w: declared %d bytes, read %d", common.ErrBlobIO, size, n)
	}

	ref := hex.EncodeToString(hasher.Sum(nil))
	switch _, serr := e.blobs.Size(ctx, ref); {
	case serr == nil:
		e.discardBlob(ctx, staging)
	case errors.Is(serr, blob.ErrNotFound):
		if err := e.blobs.Rename(ctx, staging, ref); err != nil {
			e.discardBlob(ctx, staging)
			return nil, mapBlobErr(err)
		}
	default:
		e.discardBlob(ctx, staging)
		return nil, mapBlobErr(serr)
	}

	var entry *storage.Entry
	var oldRef string
	err = e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		if existing != nil {
			if err := e.store.UpdateContentWith(tx, ctx, owner, existing.ID, size, mimeType, ref, now); err != nil {
				return err
			}
			// Shrinking replace: release the difference now that the new
			// content is committed in the same transaction.
			if shrink := existing.SizeBytes - size; shrink > 0 {
				if err := e.store.ReserveQuotaWith(tx, ctx, owner, -shrink); err != nil {
					return err
				}
			}
			updated := *existing
			updated.SizeBytes = size
			updated.MimeType = mimeType
			updated.BlobRef = ref
			updated.UpdatedAt = now
			entry = &updated
			oldRef = existing.BlobRef
			return nil
		}
		entry = &storage.Entry{
			ID:        uuid.NewString(),
			OwnerID:   owner,
			ParentID:  parentID,
			Name:      name,
			Kind:      storage.KindFile,
			SizeBytes: size,
			MimeType:  mimeType,
			BlobRef:   ref,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return e.store.InsertEntryWith(tx, ctx, entry)
	})
	if err != nil {
		e.deleteIfUnreferenced(ctx, ref)
		return nil, err
	}

	if oldRef != "" && oldRef != ref {
		e.deleteIfUnreferenced(ctx, oldRef)
	}
	return entry, nil
}

// releaseReserved undoes the quota growth reserved for a failed upload.
// Best effort; a later reconcile corrects anything missed here.
func (e *Engine) releaseReserved(owner string, delta int64) {
	if delta <= 0 {
		return
	}
	ctx := context.Background()
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return e.store.ReserveQuotaWith(tx, ctx, owner, -delta)
	})
	if err != nil {
		log.WithFields(log.Fields{"owner": owner}).WithError(err).Warn("failed to release reserved quota")
	}
}

// discardBlob removes a blob that never became visible in metadata.
func (e *Engine) discardBlob(ctx context.Context, ref string) {
	if err := e.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, blob.ErrNotFound) {
		log.WithFields(log.Fields{"blob": ref}).WithError(err).Warn("failed to remove staged blob")
	}
}

// deleteIfUnreferenced removes a blob when no entry points at it anymore.
func (e *Engine) deleteIfUnreferenced(ctx context.Context, ref string) {
	remaining, err := e.store.CountBlobRefsWith(e.store.DB(), ctx, ref)
	if err != nil {
		log.WithFields(log.Fields{"blob": ref}).WithError(err).Warn("failed to count blob references")
		return
	}
	if remaining > 0 {
		return
	}
	if err := e.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, blob.ErrNotFound) {
		log.WithFields(log.Fields{"blob": ref}).WithError(err).Warn("failed to delete replaced blob")
	}
}

// OpenFile opens the content of a file entry for reading and returns the
// entry alongside, for content type and length. The caller closes the reader.
func (e *Engine) OpenFile(ctx context.Context, owner, entryID string) (io.ReadCloser, *storage.Entry, error) {
	entry, err := e.store.GetEntry(ctx, owner, entryID)
	if err != nil {
		return nil, nil, err
	}
	if !entry.IsFile() {
		return nil, nil, fmt.Errorf("%w: %q is a folder", common.ErrNotFound, entry.Name)
	}
	rc, err := e.blobs.Open(ctx, entry.BlobRef)
	if err != nil {
		return nil, nil, mapBlobErr(err)
	}
	return rc, entry, nil
}
