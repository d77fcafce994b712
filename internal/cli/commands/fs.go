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

	"github.com/spf13/cobra"

	"drivefs/internal/common"
)

var lsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List the contents of a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLs,
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a folder",
	Args:  cobra.ExactArgs(1),
	RunE:  runMkdir,
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an entry and its subtree",
	Args:  cobra.ExactArgs(1),
	RunE:  runRm,
}

var mvCmd = &cobra.Command{
	Use:   "mv <path> <dest-folder>",
	Short: "Move an entry into another folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runMv,
}

var cpCmd = &cobra.Command{
	Use:   "cp <path> <dest-folder>",
	Short: "Copy an entry (recursively) into another folder",
	Args:  cobra.ExactArgs(2),
	RunE:  runCp,
}

var renameCmd = &cobra.Command{
	Use:   "rename <path> <new-name>",
	Short: "Rename an entry in place",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

var duCmd = &cobra.Command{
	Use:   "du <path>...",
	Short: "Show aggregate size and counts for entries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDu,
}

func init() {
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(duCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	path := "/"
	if len(args) > 0 {
		path = args[0]
	}

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	children, err := engine.List(cmd.Context(), flagUser, path)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.IsFolder() {
			fmt.Printf("%-10s %-12s %s/\n", "folder", "", child.Name)
			continue
		}
		fmt.Printf("%-10s %-12s %s\n", "file", formatBytes(child.SizeBytes), child.Name)
	}
	return nil
}

func runMkdir(cmd *cobra.Command, args []string) error {
	parent, name, err := splitTargetPath(args[0])
	if err != nil {
		return err
	}

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	folder, err := engine.CreateFolder(cmd.Context(), flagUser, parent, name)
	if err != nil {
		return err
	}
	fmt.Printf("Created folder %s (%s)\n", args[0], folder.ID)
	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	entry, err := engine.Resolve(ctx, flagUser, args[0])
	if err != nil {
		return err
	}
	freed, err := engine.Delete(ctx, flagUser, entry.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s, freed %s\n", args[0], formatBytes(freed))
	return nil
}

func runMv(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	entry, err := engine.Resolve(ctx, flagUser, args[0])
	if err != nil {
		return err
	}
	dest, err := engine.ResolveFolder(ctx, flagUser, args[1])
	if err != nil {
		return err
	}
	if _, err := engine.Move(ctx, flagUser, entry.ID, dest.ID); err != nil {
		return err
	}
	fmt.Printf("Moved %s to %s\n", args[0], args[1])
	return nil
}

func runCp(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	entry, err := engine.Resolve(ctx, flagUser, args[0])
	if err != nil {
		return err
	}
	dest, err := engine.ResolveFolder(ctx, flagUser, args[1])
	if err != nil {
		return err
	}
	copied, err := engine.Copy(ctx, flagUser, entry.ID, dest.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Copied %s to %s (%s)\n", args[0], args[1], copied.ID)
	return nil
}

func runRename(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	entry, err := engine.Resolve(ctx, flagUser, args[0])
	if err != nil {
		return err
	}
	if _, err := engine.Rename(ctx, flagUser, entry.ID, args[1]); err != nil {
		return err
	}
	fmt.Printf("Renamed %s to %s\n", args[0], args[1])
	return nil
}

func runDu(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	ids := make([]string, 0, len(args))
	for _, path := range args {
		entry, err := engine.Resolve(ctx, flagUser, path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		ids = append(ids, entry.ID)
	}

	agg, err := engine.Aggregate(ctx, flagUser, ids)
	if err != nil {
		return err
	}
	fmt.Printf("Total: %s (%d bytes)\n", formatBytes(agg.TotalBytes), agg.TotalBytes)
	fmt.Printf("Files: %d\n", agg.FileCount)
	fmt.Printf("Folders: %d\n", agg.FolderCount)
	return nil
}

// splitTargetPath splits a path into its parent path and final name.
func splitTargetPath(path string) (parent, name string, err error) {
	norm, err := common.Normalize(path)
	if err != nil {
		return "", "", err
	}
	if norm == "" {
		return "", "", fmt.Errorf("%w: missing target name", common.ErrInvalidPath)
	}
	return common.ParentPath(norm), common.BaseName(norm), nil
}
