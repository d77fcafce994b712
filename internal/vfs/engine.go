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

// Package vfs implements the virtual-filesystem storage engine: the
// authoritative metadata tree for every owner's files and folders, the
// structural operations over it, quota accounting and archive streaming.
//
// The engine trusts the caller to have resolved authentication and coarse
// permissions; owner ids arrive pre-verified. Structural invariants (sibling
// uniqueness, acyclic parent chains, quota ceilings) are enforced here
// regardless of what the caller checked.
package vfs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"drivefs/internal/blob"
	"drivefs/internal/common"
	"drivefs/internal/storage"
)

// DefaultQuotaBytes is the quota assigned to an owner on first use. 10 GiB.
const DefaultQuotaBytes = int64(10) << 30

// DefaultMaxUploadBytes caps a single file upload. 10 GiB.
const DefaultMaxUploadBytes = int64(10) << 30

// Options tune per-engine limits. Zero values fall back to the defaults.
type Options struct {
	DefaultQuotaBytes int64
	MaxUploadBytes    int64
}

// Engine executes all structural mutations against the metadata store and
// coordinates them with blob I/O and quota accounting. It is request-scoped:
// no locks are held between calls except the short per-owner mutation lock.
type Engine struct {
	store        *storage.Store
	blobs        blob.Store
	locks        *ownerLocks
	defaultQuota int64
	maxUpload    int64
}

// NewEngine creates an engine over the given metadata and blob stores.
func NewEngine(store *storage.Store, blobs blob.Store, opts Options) *Engine {
	if opts.DefaultQuotaBytes <= 0 {
		opts.DefaultQuotaBytes = DefaultQuotaBytes
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &Engine{
		store:        store,
		blobs:        blobs,
		locks:        newOwnerLocks(),
		defaultQuota: opts.DefaultQuotaBytes,
		maxUpload:    opts.MaxUploadBytes,
	}
}

// Store exposes the underlying metadata store (CLI and tests).
func (e *Engine) Store() *storage.Store {
	return e.store
}

// ensureAccount lazily creates the owner's root folder and quota row.
func (e *Engine) ensureAccount(ctx context.Context, owner string) (*storage.Entry, error) {
	root, err := e.store.EnsureRoot(ctx, owner)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.EnsureQuota(ctx, owner, e.defaultQuota); err != nil {
		return nil, err
	}
	return root, nil
}

// CreateFolder creates a new folder under parentPath. Folders are free with
// respect to quota.
func (e *Engine) CreateFolder(ctx context.Context, owner, parentPath, name string) (*storage.Entry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
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

	now := time.Now()
	folder := &storage.Entry{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		ParentID:  parent.ID,
		Name:      name,
		Kind:      storage.KindFolder,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		exists, err := e.store.ChildExistsWith(tx, ctx, owner, parent.ID, name)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrNameConflict
		}
		return e.store.InsertEntryWith(tx, ctx, folder)
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"owner": owner, "id": folder.ID, "name": name}).Debug("folder created")
	return folder, nil
}

// Rename changes an entry's name. Renaming to the current name is a no-op
// success. Descendant paths are derived, so no cascading writes happen.
func (e *Engine) Rename(ctx context.Context, owner, entryID, newName string) (*storage.Entry, error) {
	if err := ValidateName(newName); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(owner)
	defer unlock()

	var renamed *storage.Entry
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		entry, err := e.store.GetEntryWith(tx, ctx, owner, entryID)
		if err != nil {
			return err
		}
		if entry.IsRoot() {
			return fmt.Errorf("%w: cannot rename the root folder", common.ErrInvalidName)
		}
		if entry.Name == newName {
			renamed = entry
			return nil
		}
		exists, err := e.store.ChildExistsWith(tx, ctx, owner, entry.ParentID, newName)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrNameConflict
		}
		now := time.Now()
		if err := e.store.UpdateNameWith(tx, ctx, owner, entryID, newName, now); err != nil {
			return err
		}
		entry.Name = newName
		entry.UpdatedAt = now
		renamed = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"owner": owner, "id": entryID, "name": newName}).Debug("entry renamed")
	return renamed, nil
}

// Move reparents an entry under destParentID. Only the moved entry's row is
// touched; descendants follow implicitly. Moving an entry into itself or any
// of its descendants fails with ErrCyclicMove. Moving into the current parent
// is a no-op success.
func (e *Engine) Move(ctx context.Context, owner, entryID, destParentID string) (*storage.Entry, error) {
	unlock := e.locks.Lock(owner)
	defer unlock()

	var moved *storage.Entry
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		entry, err := e.store.GetEntryWith(tx, ctx, owner, entryID)
		if err != nil {
			return err
		}
		if entry.IsRoot() {
			return fmt.Errorf("%w: cannot move the root folder", common.ErrInvalidPath)
		}
		dest, err := e.validateDestinationWith(tx, ctx, owner, entryID, destParentID)
		if err != nil {
			return err
		}
		if dest.ID == entry.ParentID {
			moved = entry
			return nil
		}
		exists, err := e.store.ChildExistsWith(tx, ctx, owner, dest.ID, entry.Name)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrNameConflict
		}
		now := time.Now()
		if err := e.store.UpdateParentWith(tx, ctx, owner, entryID, dest.ID, now); err != nil {
			return err
		}
		entry.ParentID = dest.ID
		entry.UpdatedAt = now
		moved = entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"owner": owner, "id": entryID, "dest": destParentID}).Debug("entry moved")
	return moved, nil
}

// Copy duplicates an entry (recursively for folders) under destParentID.
// Blob bytes are not duplicated: the copy shares the source's blob refs and
// the metadata store tracks the references, so the copy stays readable after
// the source is deleted. Quota is charged for the full subtree size up front,
// inside the same transaction that inserts the clone rows, so a failed copy
// is neither visible nor billed.
func (e *Engine) Copy(ctx context.Context, owner, entryID, destParentID string) (*storage.Entry, error) {
	unlock := e.locks.Lock(owner)
	defer unlock()

	if _, err := e.ensureAccount(ctx, owner); err != nil {
		return nil, err
	}

	var copied *storage.Entry
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		src, err := e.store.GetEntryWith(tx, ctx, owner, entryID)
		if err != nil {
			return err
		}
		if src.IsRoot() {
			return fmt.Errorf("%w: cannot copy the root folder", common.ErrInvalidPath)
		}
		dest, err := e.validateDestinationWith(tx, ctx, owner, entryID, destParentID)
		if err != nil {
			return err
		}
		exists, err := e.store.ChildExistsWith(tx, ctx, owner, dest.ID, src.Name)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrNameConflict
		}

		// Precompute the subtree before touching anything so the quota
		// check happens before a single row is written.
		subtree, totalBytes, err := e.collectSubtreeWith(tx, ctx, owner, src)
		if err != nil {
			return err
		}
		if err := e.store.ReserveQuotaWith(tx, ctx, owner, totalBytes); err != nil {
			return err
		}

		now := time.Now()
		idMap := make(map[string]string, len(subtree))
		for _, orig := range subtree {
			clone := &storage.Entry{
				ID:        uuid.NewString(),
				OwnerID:   owner,
				Name:      orig.Name,
				Kind:      orig.Kind,
				SizeBytes: orig.SizeBytes,
				MimeType:  orig.MimeType,
				BlobRef:   orig.BlobRef,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if orig.ID == src.ID {
				clone.ParentID = dest.ID
			} else {
				clone.ParentID = idMap[orig.ParentID]
			}
			idMap[orig.ID] = clone.ID
			if err := e.store.InsertEntryWith(tx, ctx, clone); err != nil {
				return err
			}
			if orig.ID == src.ID {
				copied = clone
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"owner": owner, "src": entryID, "copy": copied.ID}).Info("entry copied")
	return copied, nil
}

// Delete removes an entry and its entire subtree, releases the freed bytes
// from the owner's quota and deletes blobs whose last reference is gone.
// Returns the number of bytes freed. Deleting a non-empty folder is allowed.
func (e *Engine) Delete(ctx context.Context, owner, entryID string) (int64, error) {
	unlock := e.locks.Lock(owner)
	defer unlock()

	var freedBytes int64
	var orphanedBlobs []string
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		freedBytes = 0
		orphanedBlobs = orphanedBlobs[:0]

		entry, err := e.store.GetEntryWith(tx, ctx, owner, entryID)
		if err != nil {
			return err
		}
		if entry.IsRoot() {
			return fmt.Errorf("%w: cannot delete the root folder", common.ErrInvalidPath)
		}

		subtree, totalBytes, err := e.collectSubtreeWith(tx, ctx, owner, entry)
		if err != nil {
			return err
		}

		ids := make([]string, len(subtree))
		blobRefs := make(map[string]struct{})
		for i, sub := range subtree {
			ids[i] = sub.ID
			if sub.BlobRef != "" {
				blobRefs[sub.BlobRef] = struct{}{}
			}
		}

		if err := e.store.DeleteEntriesWith(tx, ctx, owner, ids); err != nil {
			return err
		}
		if err := e.store.ReserveQuotaWith(tx, ctx, owner, -totalBytes); err != nil {
			return err
		}

		// A blob is released only when its last referencing entry is gone;
		// copies and deduplicated uploads may still point at it.
		for ref := range blobRefs {
			remaining, err := e.store.CountBlobRefsWith(tx, ctx, ref)
			if err != nil {
				return err
			}
			if remaining == 0 {
				orphanedBlobs = append(orphanedBlobs, ref)
			}
		}
		freedBytes = totalBytes
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Metadata is committed; physical blob deletion failures here leave
	// orphans that the gc sweep reclaims later.
	for _, ref := range orphanedBlobs {
		if err := e.blobs.Delete(ctx, ref); err != nil && !errors.Is(err, blob.ErrNotFound) {
			log.WithFields(log.Fields{"blob": ref}).WithError(err).Warn("failed to delete unreferenced blob")
		}
	}

	log.WithFields(log.Fields{"owner": owner, "id": entryID, "freed": freedBytes}).Info("entry deleted")
	return freedBytes, nil
}

// validateDestinationWith checks that destParentID resolves to a folder owned
// by owner and that it is not movingID itself or one of its descendants.
// The cycle check walks parent links from the destination up to the root.
func (e *Engine) validateDestinationWith(tx bun.Tx, ctx context.Context, owner, movingID, destParentID string) (*storage.Entry, error) {
	dest, err := e.store.GetEntryWith(tx, ctx, owner, destParentID)
	if err != nil {
		return nil, err
	}
	if !dest.IsFolder() {
		return nil, common.ErrNotAFolder
	}

	cur := dest
	for hops := 0; ; hops++ {
		if hops > maxTreeDepth {
			return nil, fmt.Errorf("parent chain exceeds %d hops for entry %s", maxTreeDepth, dest.ID)
		}
		if cur.ID == movingID {
			return nil, common.ErrCyclicMove
		}
		if cur.IsRoot() {
			return dest, nil
		}
		parentID := cur.ParentID
		cur, err = e.store.GetEntryWith(tx, ctx, owner, parentID)
		if err != nil {
			return nil, fmt.Errorf("broken parent chain at %s: %w", parentID, err)
		}
	}
}

// collectSubtreeWith walks the subtree rooted at root iteratively (explicit
// queue, parents before children) and returns all entries plus the total
// file bytes. Bounded by the size of the subtree, not the whole tree.
func (e *Engine) collectSubtreeWith(idb bun.IDB, ctx context.Context, owner string, root *storage.Entry) ([]*storage.Entry, int64, error) {
	entries := []*storage.Entry{root}
	var totalBytes int64
	if root.IsFile() {
		return entries, root.SizeBytes, nil
	}

	queue := []*storage.Entry{root}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		folder := queue[0]
		queue = queue[1:]

		children, err := e.store.ListChildrenWith(idb, ctx, owner, folder.ID)
		if err != nil {
			return nil, 0, err
		}
		for _, child := range children {
			entries = append(entries, child)
			if child.IsFolder() {
				queue = append(queue, child)
			} else {
				totalBytes += child.SizeBytes
			}
		}
	}
	return entries, totalBytes, nil
}

// mapBlobErr folds blob-store failures into the engine's error taxonomy.
func mapBlobErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", common.ErrCancelled, err)
	default:
		return fmt.Errorf("%w: %v", common.ErrBlobIO, err)
	}
}
