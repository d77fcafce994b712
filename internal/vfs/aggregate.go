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
	"errors"

	"drivefs/internal/common"
	"drivefs/internal/storage"
)

// Aggregate sums a selection of entries and their subtrees.
type Aggregate struct {
	TotalBytes  int64 `json:"totalBytes"`
	FileCount   int   `json:"fileCount"`
	FolderCount int   `json:"folderCount"`
}

// Aggregate computes total size and counts for the given entry ids,
// recursively for folders. Overlapping selections (a folder and one of its
// descendants) count each entry once. Ids that no longer exist are skipped
// rather than failing the whole request; a concurrent delete is not an error
// from the caller's point of view. Selected folders count toward FolderCount.
func (e *Engine) Aggregate(ctx context.Context, owner string, ids []string) (*Aggregate, error) {
	agg := &Aggregate{}
	seen := make(map[string]struct{})

	// Explicit stack; the walk is bounded by the selected subtrees.
	var stack []*storage.Entry
	for _, id := range ids {
		entry, err := e.store.GetEntry(ctx, owner, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, err
		}
		stack = append(stack, entry)
	}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, dup := seen[entry.ID]; dup {
			continue
		}
		seen[entry.ID] = struct{}{}

		if entry.IsFile() {
			agg.FileCount++
			agg.TotalBytes += entry.SizeBytes
			continue
		}
		agg.FolderCount++
		children, err := e.store.ListChildren(ctx, owner, entry.ID)
		if err != nil {
			return nil, err
		}
		stack = append(stack, children...)
	}
	return agg, nil
}
