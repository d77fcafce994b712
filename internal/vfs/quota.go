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

	log "github.com/sirupsen/logrus"
)

// Usage reports an owner's storage consumption.
type Usage struct {
	UsedBytes  int64   `json:"usedBytes"`
	LimitBytes int64   `json:"limitBytes"`
	Percent    float64 `json:"percent"`
}

// Usage returns the owner's current quota usage, creating the account on
// first touch.
func (e *Engine) Usage(ctx context.Context, owner string) (*Usage, error) {
	if _, err := e.ensureAccount(ctx, owner); err != nil {
		return nil, err
	}
	q, err := e.store.GetQuota(ctx, owner)
	if err != nil {
		return nil, err
	}
	u := &Usage{UsedBytes: q.UsedBytes, LimitBytes: q.LimitBytes}
	if q.LimitBytes > 0 {
		u.Percent = float64(q.UsedBytes) / float64(q.LimitBytes) * 100
	}
	return u, nil
}

// SetQuotaLimit changes the owner's quota ceiling. Lowering the limit below
// current usage is allowed; existing content is never deleted, new writes
// fail until usage drops.
func (e *Engine) SetQuotaLimit(ctx context.Context, owner string, limitBytes int64) error {
	if _, err := e.ensureAccount(ctx, owner); err != nil {
		return err
	}
	return e.store.SetQuotaLimit(ctx, owner, limitBytes)
}

// ReconcileQuota recomputes used_bytes from the entries table and writes it
// back, repairing any drift left by crashes between blob and metadata writes.
func (e *Engine) ReconcileQuota(ctx context.Context, owner string) (int64, error) {
	unlock := e.locks.Lock(owner)
	defer unlock()

	if _, err := e.ensureAccount(ctx, owner); err != nil {
		return 0, err
	}
	used, err := e.store.RecomputeUsed(ctx, owner)
	if err != nil {
		return 0, err
	}
	log.WithFields(log.Fields{"owner": owner, "used": used}).Info("quota reconciled")
	return used, nil
}
