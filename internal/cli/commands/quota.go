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
	"strconv"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and manage the user's storage quota",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show quota usage",
	Args:  cobra.NoArgs,
	RunE:  runQuotaShow,
}

var quotaSetCmd = &cobra.Command{
	Use:   "set <limit-bytes>",
	Short: "Set the quota limit in bytes",
	Long: `Set the user's quota ceiling in bytes.

Lowering the limit below current usage does not delete anything; new writes
fail until usage drops below the new limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuotaSet,
}

var quotaReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recompute used bytes from the metadata tree",
	Args:  cobra.NoArgs,
	RunE:  runQuotaReconcile,
}

func init() {
	quotaCmd.AddCommand(quotaShowCmd)
	quotaCmd.AddCommand(quotaSetCmd)
	quotaCmd.AddCommand(quotaReconcileCmd)
	rootCmd.AddCommand(quotaCmd)
}

func runQuotaShow(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	usage, err := engine.Usage(cmd.Context(), flagUser)
	if err != nil {
		return err
	}
	fmt.Printf("Used: %s (%d bytes)\n", formatBytes(usage.UsedBytes), usage.UsedBytes)
	fmt.Printf("Limit: %s (%d bytes)\n", formatBytes(usage.LimitBytes), usage.LimitBytes)
	fmt.Printf("Usage: %.1f%%\n", usage.Percent)
	return nil
}

func runQuotaSet(cmd *cobra.Command, args []string) error {
	limit, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || limit <= 0 {
		return fmt.Errorf("invalid limit %q: expected a positive byte count", args[0])
	}

	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.SetQuotaLimit(cmd.Context(), flagUser, limit); err != nil {
		return err
	}
	fmt.Printf("Quota limit for %s set to %s\n", flagUser, formatBytes(limit))
	return nil
}

func runQuotaReconcile(cmd *cobra.Command, args []string) error {
	engine, cleanup, err := openEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	used, err := engine.ReconcileQuota(cmd.Context(), flagUser)
	if err != nil {
		return err
	}
	fmt.Printf("Recomputed usage for %s: %s (%d bytes)\n", flagUser, formatBytes(used), used)
	return nil
}
