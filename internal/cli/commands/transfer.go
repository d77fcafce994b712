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

package commands

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"drivefs/internal/common"
)

var flagPutMime string

var putCmd = &cobra.Command{
	Use:   "put <local-file> <drive-path>",
	Short: "Upload a local file",
	Long: `Upload a local file to the given drive path. An existing file at the
destination is replaced; an existing folder is a conflict.

Examples:
  drivefs put report.pdf /documents/report.pdf
  drivefs put photo.jpg /photos/photo.jpg --mime image/jpeg`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var getCmd = &cobra.Command{
	Use:   "get <drive-path> [local-file]",
	Short: "Download a file",
	Long: `Download a drive file to a local path, or to stdout with "-".

If the local path is omitted the file's own name is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runGet,
}

var zipCmd = &cobra.Command{
	Use:   "zip <local-zip> <drive-path>...",
	Short: "Download entries as a zip archive",
	Long: `Stream the selected files and folders into a zip archive. Folders are
archived recursively; a selection inside another selected folder is included
only once.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runZip,
}

func init() {
	putCmd.Flags().StringVar(&flagPutMime, "mime", "", "content type (detected from the extension when empty)")
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(zipCmd)
}

func runPut(cmd *cobra.Command, args []string) error {
	localPath, drivePath := args[0], args[1]

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}

	parent, name, err := splitTargetPath(drivePath)
	if err != nil {
		return err
	}
	mimeType := flagPutMime
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(name))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	entry, err := engine.Upload(cmd.Context(), flagUser, parent, name, mimeType, st.Size(), f)
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (%s, %s)\n", drivePath, formatBytes(entry.SizeBytes), entry.MimeType)
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	drivePath := args[0]

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	entry, err := engine.Resolve(ctx, flagUser, drivePath)
	if err != nil {
		return err
	}
	rc, entry, err := engine.OpenFile(ctx, flagUser, entry.ID)
	if err != nil {
		return err
	}
	defer rc.Close()

	localPath := entry.Name
	if len(args) > 1 {
		localPath = args[1]
	}
	if localPath == "-" {
		_, err = io.Copy(os.Stdout, rc)
		return err
	}

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		os.Remove(localPath)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("Downloaded %s to %s (%s)\n", drivePath, localPath, formatBytes(entry.SizeBytes))
	return nil
}

func runZip(cmd *cobra.Command, args []string) error {
	localPath, drivePaths := args[0], args[1:]

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	ids := make([]string, 0, len(drivePaths))
	for _, path := range drivePaths {
		entry, err := engine.Resolve(ctx, flagUser, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if entry.IsRoot() {
			return fmt.Errorf("%w: cannot archive the root folder, select its contents", common.ErrInvalidPath)
		}
		ids = append(ids, entry.ID)
	}

	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	if err := engine.WriteArchive(ctx, flagUser, ids, out); err != nil {
		out.Close()
		os.Remove(localPath)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Printf("Archived %d selections to %s\n", len(drivePaths), localPath)
	return nil
}
