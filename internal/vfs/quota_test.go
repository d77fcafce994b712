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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsage(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{DefaultQuotaBytes: 1000})
	ctx := context.Background()

	u, err := e.Usage(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), u.UsedBytes)
	assert.Equal(t, int64(1000), u.LimitBytes)
	assert.Equal(t, 0.0, u.Percent)

	uploadString(t, e, testOwner, "/", "a.txt", "0123456789")
	u, err = e.Usage(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.UsedBytes)
	assert.InDelta(t, 1.0, u.Percent, 0.001)
}

func TestSetQuotaLimitEngine(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{DefaultQuotaBytes: 1000})
	ctx := context.Background()

	uploadString(t, e, testOwner, "/", "a.txt", "0123456789")

	require.NoError(t, e.SetQuotaLimit(ctx, testOwner, 12))
	u, err := e.Usage(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(12), u.LimitBytes)
	assert.Equal(t, int64(10), u.UsedBytes, "lowering the limit keeps content")

	// 2 bytes of headroom left.
	uploadString(t, e, testOwner, "/", "b.txt", "xy")
	_, err = e.Upload(ctx, testOwner, "/", "c.txt", "text/plain", 1, nil)
	assert.Error(t, err)
}

func TestReconcileQuota(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{})
	ctx := context.Background()

	uploadString(t, e, testOwner, "/", "a.txt", "aaaa")
	_, err := e.CreateFolder(ctx, testOwner, "/", "docs")
	require.NoError(t, err)
	uploadString(t, e, testOwner, "/docs", "b.txt", "bbbbbb")

	// Drift the counter directly, then repair.
	require.NoError(t, e.Store().ReserveQuotaWith(e.Store().DB(), ctx, testOwner, 500))

	used, err := e.ReconcileQuota(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)

	u, err := e.Usage(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.UsedBytes)
}
