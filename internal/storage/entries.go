package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"drivefs/internal/common"
)

// isUniqueViolation detects the sibling-name unique index firing.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Entry reads ---

// GetEntry retrieves an entry by id, scoped to its owner.
func (s *Store) GetEntry(ctx context.Context, owner, id string) (*Entry, error) {
	return s.GetEntryWith(s.bun, ctx, owner, id)
}

// GetEntryWith is like GetEntry but uses the provided bun.IDB (for transaction support).
func (s *Store) GetEntryWith(idb bun.IDB, ctx context.Context, owner, id string) (*Entry, error) {
	var model EntryModel
	err := idb.NewSelect().
		Model(&model).
		Where("id = ?", id).
		Where("owner_id = ?", owner).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToEntry(), nil
}

// GetChild retrieves the child of parentID with the given name.
func (s *Store) GetChild(ctx context.Context, owner, parentID, name string) (*Entry, error) {
	return s.GetChildWith(s.bun, ctx, owner, parentID, name)
}

// GetChildWith is like GetChild but uses the provided bun.IDB.
func (s *Store) GetChildWith(idb bun.IDB, ctx context.Context, owner, parentID, name string) (*Entry, error) {
	var model EntryModel
	err := idb.NewSelect().
		Model(&model).
		Where("owner_id = ?", owner).
		Where("parent_id = ?", parentID).
		Where("name = ?", name).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToEntry(), nil
}

// ChildExistsWith reports whether parentID already has a child with the name.
func (s *Store) ChildExistsWith(idb bun.IDB, ctx context.Context, owner, parentID, name string) (bool, error) {
	return idb.NewSelect().
		Model((*EntryModel)(nil)).
		Where("owner_id = ?", owner).
		Where("parent_id = ?", parentID).
		Where("name = ?", name).
		Exists(ctx)
}

// ListChildren returns the direct children of a folder, ordered by name.
func (s *Store) ListChildren(ctx context.Context, owner, parentID string) ([]*Entry, error) {
	return s.ListChildrenWith(s.bun, ctx, owner, parentID)
}

// ListChildrenWith is like ListChildren but uses the provided bun.IDB.
func (s *Store) ListChildrenWith(idb bun.IDB, ctx context.Context, owner, parentID string) ([]*Entry, error) {
	var models []EntryModel
	err := idb.NewSelect().
		Model(&models).
		Where("owner_id = ?", owner).
		Where("parent_id = ?", parentID).
		Order("name").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, len(models))
	for i := range models {
		entries[i] = models[i].ToEntry()
	}
	return entries, nil
}

// --- Root management ---

// GetRoot returns the owner's root folder entry.
func (s *Store) GetRoot(ctx context.Context, owner string) (*Entry, error) {
	return s.GetRootWith(s.bun, ctx, owner)
}

// GetRootWith is like GetRoot but uses the provided bun.IDB.
func (s *Store) GetRootWith(idb bun.IDB, ctx context.Context, owner string) (*Entry, error) {
	return s.GetChildWith(idb, ctx, owner, "", "")
}

// EnsureRoot returns the owner's root folder, creating it on first use.
func (s *Store) EnsureRoot(ctx context.Context, owner string) (*Entry, error) {
	root, err := s.GetRoot(ctx, owner)
	if err == nil {
		return root, nil
	}
	if err != common.ErrNotFound {
		return nil, err
	}

	now := time.Now()
	root = &Entry{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		ParentID:  "",
		Name:      "",
		Kind:      KindFolder,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.InsertEntryWith(s.bun, ctx, root); err != nil {
		// Lost a race with another request creating the same root.
		if isUniqueViolation(err) {
			return s.GetRoot(ctx, owner)
		}
		return nil, err
	}
	return root, nil
}

// --- Entry mutations (transaction-scoped) ---

// InsertEntryWith inserts a new entry row.
func (s *Store) InsertEntryWith(idb bun.IDB, ctx context.Context, e *Entry) error {
	_, err := idb.NewInsert().Model(EntryModelFromEntry(e)).Exec(ctx)
	if isUniqueViolation(err) {
		return common.ErrNameConflict
	}
	return err
}

// UpdateNameWith renames an entry and bumps updated_at.
func (s *Store) UpdateNameWith(idb bun.IDB, ctx context.Context, owner, id, newName string, now time.Time) error {
	res, err := idb.NewUpdate().
		Model((*EntryModel)(nil)).
		Set("name = ?", newName).
		Set("updated_at = ?", now.Unix()).
		Where("id = ?", id).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if isUniqueViolation(err) {
		return common.ErrNameConflict
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateParentWith reparents an entry and bumps updated_at. Descendants are
// untouched; their derived paths move with the entry.
func (s *Store) UpdateParentWith(idb bun.IDB, ctx context.Context, owner, id, newParentID string, now time.Time) error {
	res, err := idb.NewUpdate().
		Model((*EntryModel)(nil)).
		Set("parent_id = ?", newParentID).
		Set("updated_at = ?", now.Unix()).
		Where("id = ?", id).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if isUniqueViolation(err) {
		return common.ErrNameConflict
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateContentWith replaces a file entry's content metadata after an
// overwrite upload.
func (s *Store) UpdateContentWith(idb bun.IDB, ctx context.Context, owner, id string, sizeBytes int64, mimeType, blobRef string, now time.Time) error {
	res, err := idb.NewUpdate().
		Model((*EntryModel)(nil)).
		Set("size_bytes = ?", sizeBytes).
		Set("mime_type = ?", mimeType).
		Set("blob_ref = ?", blobRef).
		Set("updated_at = ?", now.Unix()).
		Where("id = ?", id).
		Where("owner_id = ?", owner).
		Exec(ctx)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteEntriesWith deletes entry rows by id.
func (s *Store) DeleteEntriesWith(idb bun.IDB, ctx context.Context, owner string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := idb.NewDelete().
		Model((*EntryModel)(nil)).
		Where("owner_id = ?", owner).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	return err
}

// CountBlobRefsWith counts entries (across all owners) referencing a blob.
// Used to decide whether a blob may be physically deleted.
func (s *Store) CountBlobRefsWith(idb bun.IDB, ctx context.Context, blobRef string) (int, error) {
	return idb.NewSelect().
		Model((*EntryModel)(nil)).
		Where("blob_ref = ?", blobRef).
		Count(ctx)
}

// ListBlobRefs returns every blob ref currently referenced by any entry.
// Used by the orphan sweep.
func (s *Store) ListBlobRefs(ctx context.Context) ([]string, error) {
	var refs []string
	err := s.bun.NewRaw(`SELECT DISTINCT blob_ref FROM entries WHERE blob_ref != ''`).Scan(ctx, &refs)
	return refs, err
}

// CountEntries returns the number of file and folder rows for an owner
// (the root folder included).
func (s *Store) CountEntries(ctx context.Context, owner string) (files, folders int, err error) {
	type row struct {
		Kind  string `bun:"kind"`
		Count int    `bun:"count"`
	}
	var rows []row
	err = s.bun.NewRaw(`SELECT kind, COUNT(*) AS count FROM entries WHERE owner_id = ? GROUP BY kind`, owner).Scan(ctx, &rows)
	if err != nil {
		return 0, 0, err
	}
	for _, r := range rows {
		switch Kind(r.Kind) {
		case KindFile:
			files = r.Count
		case KindFolder:
			folders = r.Count
		}
	}
	return files, folders, nil
}

// ListOwners returns every owner id that has at least one entry.
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	var owners []string
	err := s.bun.NewRaw(`SELECT DISTINCT owner_id FROM entries ORDER BY owner_id`).Scan(ctx, &owners)
	return owners, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
