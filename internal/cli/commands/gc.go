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

	"drivefs/internal/blob"
	"drivefs/internal/config"
	"drivefs/internal/storage"
)

var flagGCDryRun bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove orphaned blobs",
	Long: `Remove blobs that no entry references anymore.

Orphans accumulate when a crash lands between a metadata commit and the
physical blob deletion. The sweep compares the blob directory against the
metadata store and deletes the difference.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&flagGCDryRun, "dry-run", false, "report orphans without deleting them")
	rootCmd.AddCommand(gcCmd)
}

func runGC(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	blobs, err := blob.NewOSStore(cfg.BlobDir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	referenced, err := store.ListBlobRefs(ctx)
	if err != nil {
		return err
	}
	live := make(map[string]struct{}, len(referenced))
	for _, ref := range referenced {
		live[ref] = struct{}{}
	}

	onDisk, err := blobs.List(ctx)
	if err != nil {
		return err
	}

	var swept, failed int
	var freed int64
	for _, ref := range onDisk {
		if _, ok := live[ref]; ok {
			continue
		}
		size, err := blobs.Size(ctx, ref)
		if err == nil {
			freed += size
		}
		if flagGCDryRun {
			fmt.Printf("orphan: %s (%s)\n", ref, formatBytes(size))
			swept++
			continue
		}
		if err := blobs.Delete(ctx, ref); err != nil {
			fmt.Printf("failed to delete %s: %v\n", ref, err)
			failed++
			continue
		}
		swept++
	}

	if flagGCDryRun {
		fmt.Printf("Would remove %d orphaned blobs (%s)\n", swept, formatBytes(freed))
		return nil
	}
	fmt.Printf("Removed %d orphaned blobs (%s)\n", swept, formatBytes(freed))
	if failed > 0 {
		return fmt.Errorf("%d blobs could not be deleted", failed)
	}
	return nil
}
