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
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	log "github.com/sirupsen/logrus"

	"drivefs/internal/common"
	"drivefs/internal/storage"
)

// storedMimePrefixes lists content types that are already compressed; their
// bytes go into the archive verbatim instead of through Deflate.
var storedMimePrefixes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-7z",
	"application/x-rar",
	"application/x-xz",
	"application/zstd",
}

func archiveMethod(mimeType string) uint16 {
	for _, p := range storedMimePrefixes {
		if strings.HasPrefix(mimeType, p) {
			return zip.Store
		}
	}
	return zip.Deflate
}

// WriteArchive streams a zip of the selected entries to w. Folder selections
// are archived recursively; empty folders appear as directory entries. A
// selected entry that is a descendant of another selected folder is pruned,
// so nothing is archived twice. Archive paths are relative to each selection
// root's parent. Blob bytes flow straight from the blob store to w; memory
// use is bounded by the compressor, not by file sizes.
//
// The zip central directory lands at the end of the stream, so a failed
// archive is truncated and unreadable rather than silently partial.
func (e *Engine) WriteArchive(ctx context.Context, owner string, ids []string, w io.Writer) error {
	roots, err := e.selectArchiveRoots(ctx, owner, ids)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: nothing to archive", common.ErrNotFound)
	}

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	var files, folders int
	for _, root := range roots {
		if err := e.writeArchiveSubtree(ctx, owner, root, zw, &files, &folders); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	log.WithFields(log.Fields{
		"owner":   owner,
		"files":   files,
		"folders": folders,
	}).Info("archive streamed")
	return nil
}

// StreamArchive runs WriteArchive through a pipe and returns the read side.
// A mid-stream failure surfaces as the reader's error via CloseWithError.
func (e *Engine) StreamArchive(ctx context.Context, owner string, ids []string) io.ReadCloser {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(e.WriteArchive(ctx, owner, ids, pw))
	}()
	return pr
}

// selectArchiveRoots resolves the selected ids and drops any selection that
// sits inside another selected folder's subtree. Missing ids are skipped.
// The root folder has no name to build archive paths from, so selecting it
// is rejected; callers archive its children instead.
func (e *Engine) selectArchiveRoots(ctx context.Context, owner string, ids []string) ([]*storage.Entry, error) {
	selected := make(map[string]struct{}, len(ids))
	var entries []*storage.Entry
	for _, id := range ids {
		if _, dup := selected[id]; dup {
			continue
		}
		entry, err := e.store.GetEntry(ctx, owner, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if entry.IsRoot() {
			return nil, fmt.Errorf("%w: cannot archive the root folder, select its contents", common.ErrInvalidPath)
		}
		selected[id] = struct{}{}
		entries = append(entries, entry)
	}

	var roots []*storage.Entry
	for _, entry := range entries {
		covered, err := e.hasSelectedAncestor(ctx, owner, entry, selected)
		if err != nil {
			return nil, err
		}
		if !covered {
			roots = append(roots, entry)
		}
	}
	return roots, nil
}

// hasSelectedAncestor walks parent links from entry to the root, checking
// whether any strict ancestor is in the selection.
func (e *Engine) hasSelectedAncestor(ctx context.Context, owner string, entry *storage.Entry, selected map[string]struct{}) (bool, error) {
	cur := entry
	for hops := 0; !cur.IsRoot(); hops++ {
		if hops > maxTreeDepth {
			return false, fmt.Errorf("parent chain exceeds %d hops for entry %s", maxTreeDepth, entry.ID)
		}
		parent, err := e.store.GetEntry(ctx, owner, cur.ParentID)
		if err != nil {
			return false, fmt.Errorf("broken parent chain: %w", err)
		}
		if _, ok := selected[parent.ID]; ok {
			return true, nil
		}
		cur = parent
	}
	return false, nil
}

// archiveItem pairs an entry with its path inside the archive.
type archiveItem struct {
	entry *storage.Entry
	path  string
}

// writeArchiveSubtree emits root and, for folders, its whole subtree with an
// explicit stack. Paths inside the archive start at the selection root's name.
func (e *Engine) writeArchiveSubtree(ctx context.Context, owner string, root *storage.Entry, zw *zip.Writer, files, folders *int) error {
	stack := []archiveItem{{entry: root, path: root.Name}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.entry.IsFile() {
			if err := e.writeArchiveFile(ctx, zw, item); err != nil {
				return err
			}
			*files++
			continue
		}

		hdr := &zip.FileHeader{Name: item.path + "/", Modified: item.entry.UpdatedAt}
		if _, err := zw.CreateHeader(hdr); err != nil {
			return fmt.Errorf("archive folder %q: %w", item.path, err)
		}
		*folders++

		children, err := e.store.ListChildren(ctx, owner, item.entry.ID)
		if err != nil {
			return err
		}
		// The stack reverses order; push backwards so names come out sorted.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			stack = append(stack, archiveItem{entry: child, path: item.path + "/" + child.Name})
		}
	}
	return nil
}

func (e *Engine) writeArchiveFile(ctx context.Context, zw *zip.Writer, item archiveItem) error {
	hdr := &zip.FileHeader{
		Name:     item.path,
		Method:   archiveMethod(item.entry.MimeType),
		Modified: item.entry.UpdatedAt,
	}
	out, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive file %q: %w", item.path, err)
	}

	rc, err := e.blobs.Open(ctx, item.entry.BlobRef)
	if err != nil {
		return mapBlobErr(fmt.Errorf("open blob for %q: %w", item.path, err))
	}
	_, err = io.Copy(out, rc)
	rc.Close()
	if err != nil {
		return mapBlobErr(fmt.Errorf("stream %q: %w", item.path, err))
	}
	return nil
}
