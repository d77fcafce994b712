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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drivefs/internal/common"
)

func TestValidateName(t *testing.T) {
	t.Parallel()

	valid := []string{
		"report.pdf",
		"Фотографии",
		"with spaces",
		"dots.in.name",
		"...",
		strings.Repeat("a", MaxNameBytes),
	}
	for _, name := range valid {
		assert.NoError(t, ValidateName(name), "name %q should be valid", name)
	}

	invalid := []string{
		"",
		".",
		"..",
		"a/b",
		"a\\b",
		"nul\x00byte",
		strings.Repeat("a", MaxNameBytes+1),
	}
	for _, name := range invalid {
		err := ValidateName(name)
		require.Error(t, err, "name %q should be rejected", name)
		assert.ErrorIs(t, err, common.ErrInvalidName)
	}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{})
	ctx := context.Background()

	_, err := e.CreateFolder(ctx, testOwner, "/", "docs")
	require.NoError(t, err)
	_, err = e.CreateFolder(ctx, testOwner, "/docs", "reports")
	require.NoError(t, err)
	file := uploadString(t, e, testOwner, "/docs/reports", "q1.pdf", "pdf")

	t.Run("resolves root", func(t *testing.T) {
		root, err := e.Resolve(ctx, testOwner, "/")
		require.NoError(t, err)
		assert.True(t, root.IsRoot())
	})

	t.Run("resolves nested file", func(t *testing.T) {
		got, err := e.Resolve(ctx, testOwner, "/docs/reports/q1.pdf")
		require.NoError(t, err)
		assert.Equal(t, file.ID, got.ID)
	})

	t.Run("tolerates messy slashes", func(t *testing.T) {
		got, err := e.Resolve(ctx, testOwner, "//docs///reports/")
		require.NoError(t, err)
		assert.Equal(t, "reports", got.Name)
	})

	t.Run("missing segment", func(t *testing.T) {
		_, err := e.Resolve(ctx, testOwner, "/docs/missing/q1.pdf")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("file in the middle of the path", func(t *testing.T) {
		_, err := e.Resolve(ctx, testOwner, "/docs/reports/q1.pdf/deeper")
		assert.ErrorIs(t, err, common.ErrNotAFolder)
	})

	t.Run("traversal segments rejected", func(t *testing.T) {
		_, err := e.Resolve(ctx, testOwner, "/docs/../docs")
		assert.ErrorIs(t, err, common.ErrInvalidPath)
	})

	t.Run("never creates entries", func(t *testing.T) {
		_, err := e.Resolve(ctx, "brand-new-user", "/")
		require.ErrorIs(t, err, common.ErrNotFound)

		// No root row appeared as a side effect.
		_, err = e.Store().GetRoot(ctx, "brand-new-user")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestEntryPath(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{})
	ctx := context.Background()

	_, err := e.CreateFolder(ctx, testOwner, "/", "a")
	require.NoError(t, err)
	_, err = e.CreateFolder(ctx, testOwner, "/a", "b")
	require.NoError(t, err)
	file := uploadString(t, e, testOwner, "/a/b", "c.txt", "x")

	path, err := e.EntryPath(ctx, testOwner, file.ID)
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c.txt", path)

	root, err := e.Resolve(ctx, testOwner, "/")
	require.NoError(t, err)
	path, err = e.EntryPath(ctx, testOwner, root.ID)
	require.NoError(t, err)
	assert.Equal(t, "/", path)
}

func TestList(t *testing.T) {
	t.Parallel()

	e, _ := testEngine(t, Options{})
	ctx := context.Background()

	_, err := e.CreateFolder(ctx, testOwner, "/", "docs")
	require.NoError(t, err)
	uploadString(t, e, testOwner, "/docs", "b.txt", "x")
	uploadString(t, e, testOwner, "/docs", "a.txt", "x")

	children, err := e.List(ctx, testOwner, "/docs")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a.txt", children[0].Name)
	assert.Equal(t, "b.txt", children[1].Name)

	// Listing a file is an error.
	_, err = e.List(ctx, testOwner, "/docs/a.txt")
	assert.ErrorIs(t, err, common.ErrNotAFolder)
}
