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

	"drivefs/internal/config"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show store information for the current user",
	Long: `Show the data directory layout, entry counts and quota usage for the
selected user.

Examples:
  drivefs info
  drivefs info --user alice`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	fmt.Printf("Data directory: %s\n", cfg.DataDir)
	fmt.Printf("Metadata database: %s\n", cfg.DatabasePath)
	fmt.Printf("Blob directory: %s\n", cfg.BlobDir)

	files, folders, err := engine.Store().CountEntries(ctx, flagUser)
	if err != nil {
		return err
	}
	usage, err := engine.Usage(ctx, flagUser)
	if err != nil {
		return err
	}

	fmt.Printf("User: %s\n", flagUser)
	fmt.Printf("  Files: %d\n", files)
	fmt.Printf("  Folders: %d\n", folders)
	fmt.Printf("  Used: %s of %s (%.1f%%)\n",
		formatBytes(usage.UsedBytes), formatBytes(usage.LimitBytes), usage.Percent)
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
