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
	"fmt"
	"strings"

	"drivefs/internal/common"
	"drivefs/internal/storage"
)

// MaxNameBytes bounds a single entry name.
const MaxNameBytes = 255

// maxTreeDepth is a defensive bound on parent-chain walks. The engine keeps
// the tree acyclic, so hitting this means corrupted metadata, not a user error.
const maxTreeDepth = 4096

// ValidateName rejects empty names, names containing a path separator or NUL,
// the reserved "." / ".." names, and names longer than MaxNameBytes bytes.
// Case differences are not rejected; sibling comparison is case-sensitive.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", common.ErrInvalidName)
	case name == "." || name == "..":
		return fmt.Errorf("%w: %q is reserved", common.ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: name contains a path separator", common.ErrInvalidName)
	case len(name) > MaxNameBytes:
		return fmt.Errorf("%w: name exceeds %d bytes", common.ErrInvalidName, MaxNameBytes)
	}
	return nil
}

// Resolve normalizes path and walks it down from the owner's root.
// Resolution only ever follows parent links inside the owner's own tree, so
// escaping it is structurally impossible. Purely a read: it never creates
// entries, and resolving any path for an owner with no root yet is
// ErrNotFound. Mutating operations create the root through ensureAccount.
func (e *Engine) Resolve(ctx context.Context, owner, path string) (*storage.Entry, error) {
	parts, err := common.SplitPath(path)
	if err != nil {
		return nil, err
	}

	cur, err := e.store.GetRoot(ctx, owner)
	if err != nil {
		return nil, err
	}
	for _, part := range parts {
		if !cur.IsFolder() {
			return nil, common.ErrNotAFolder
		}
		cur, err = e.store.GetChild(ctx, owner, cur.ID, part)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

// ResolveFolder resolves path and fails with ErrNotAFolder when it lands on
// a file.
func (e *Engine) ResolveFolder(ctx context.Context, owner, path string) (*storage.Entry, error) {
	entry, err := e.Resolve(ctx, owner, path)
	if err != nil {
		return nil, err
	}
	if !entry.IsFolder() {
		return nil, common.ErrNotAFolder
	}
	return entry, nil
}

// EntryPath derives the logical path of an entry by walking parent links up
// to the root. Paths are a projection of the tree, never stored.
func (e *Engine) EntryPath(ctx context.Context, owner, entryID string) (string, error) {
	entry, err := e.store.GetEntry(ctx, owner, entryID)
	if err != nil {
		return "", err
	}

	var parts []string
	for hops := 0; !entry.IsRoot(); hops++ {
		if hops > maxTreeDepth {
			return "", fmt.Errorf("parent chain exceeds %d hops for entry %s", maxTreeDepth, entryID)
		}
		parts = append(parts, entry.Name)
		entry, err = e.store.GetEntry(ctx, owner, entry.ParentID)
		if err != nil {
			return "", fmt.Errorf("broken parent chain: %w", err)
		}
	}

	// reverse: collected leaf-first
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + common.JoinPath(parts...), nil
}

// List returns the children of the folder at path, ordered by name.
func (e *Engine) List(ctx context.Context, owner, path string) ([]*storage.Entry, error) {
	folder, err := e.ResolveFolder(ctx, owner, path)
	if err != nil {
		return nil, err
	}
	return e.store.ListChildren(ctx, owner, folder.ID)
}
