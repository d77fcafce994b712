package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"drivefs/internal/common"
)

// GetQuota returns the owner's quota row.
func (s *Store) GetQuota(ctx context.Context, owner string) (*Quota, error) {
	return s.GetQuotaWith(s.bun, ctx, owner)
}

// GetQuotaWith is like GetQuota but uses the provided bun.IDB.
func (s *Store) GetQuotaWith(idb bun.IDB, ctx context.Context, owner string) (*Quota, error) {
	var model QuotaModel
	err := idb.NewSelect().
		Model(&model).
		Where("owner_id = ?", owner).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.ToQuota(), nil
}

// EnsureQuota creates the owner's quota row with limitBytes if absent.
// An existing row keeps its limit.
func (s *Store) EnsureQuota(ctx context.Context, owner string, limitBytes int64) (*Quota, error) {
	_, err := s.bun.NewInsert().
		Model(&QuotaModel{OwnerID: owner, LimitBytes: limitBytes, UsedBytes: 0}).
		On("CONFLICT (owner_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetQuota(ctx, owner)
}

// SetQuotaLimit updates the owner's quota ceiling (upserts).
func (s *Store) SetQuotaLimit(ctx context.Context, owner string, limitBytes int64) error {
	_, err := s.bun.NewInsert().
		Model(&QuotaModel{OwnerID: owner, LimitBytes: limitBytes, UsedBytes: 0}).
		On("CONFLICT (owner_id) DO UPDATE").
		Set("limit_bytes = EXCLUDED.limit_bytes").
		Exec(ctx)
	return err
}

// ReserveQuotaWith atomically adds delta to used_bytes, failing with
// ErrQuotaExceeded when a positive delta would push usage past the limit.
// Negative deltas (releases) always apply, clamped at zero.
func (s *Store) ReserveQuotaWith(idb bun.IDB, ctx context.Context, owner string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta < 0 {
		_, err := idb.NewUpdate().
			Model((*QuotaModel)(nil)).
			Set("used_bytes = MAX(0, used_bytes + ?)", delta).
			Where("owner_id = ?", owner).
			Exec(ctx)
		return err
	}

	res, err := idb.NewUpdate().
		Model((*QuotaModel)(nil)).
		Set("used_bytes = used_bytes + ?", delta).
		Where("owner_id = ?", owner).
		Where("used_bytes + ? <= limit_bytes", delta).
		Exec(ctx)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Either no quota row or not enough headroom; distinguish for the caller.
		exists, err := idb.NewSelect().
			Model((*QuotaModel)(nil)).
			Where("owner_id = ?", owner).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("no quota row for owner %s: %w", owner, common.ErrNotFound)
		}
		return common.ErrQuotaExceeded
	}
	return nil
}

// RecomputeUsed rebuilds used_bytes from the sum of the owner's file sizes.
// Returns the recomputed value. Used for drift repair and by tests to verify
// that incremental accounting agrees with the ground truth.
func (s *Store) RecomputeUsed(ctx context.Context, owner string) (int64, error) {
	var total sql.NullInt64
	err := s.bun.NewRaw(
		`SELECT COALESCE(SUM(size_bytes), 0) FROM entries WHERE owner_id = ? AND kind = 'file'`,
		owner).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	used := total.Int64
	_, err = s.bun.NewUpdate().
		Model((*QuotaModel)(nil)).
		Set("used_bytes = ?", used).
		Where("owner_id = ?", owner).
		Exec(ctx)
	return used, err
}
