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
	"os"

	"github.com/spf13/cobra"

	"drivefs/internal/config"
	"drivefs/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the drivefs data directory",
	Long: `Initialize the drivefs data directory with a default configuration and an
empty metadata database.

The data directory defaults to ~/.drivefs and can be overridden with
DRIVEFS_DATA_DIR.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	configPath := config.ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Reinitialized drivefs in %s\n", cfg.DataDir)
		fmt.Printf("  config.yaml already exists (not modified)\n")
	} else {
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("failed to write config.yaml: %w", err)
		}
		fmt.Printf("Initialized drivefs in %s\n", cfg.DataDir)
		fmt.Printf("  created config.yaml\n")
	}

	if _, err := os.Stat(cfg.DatabasePath); err == nil {
		fmt.Printf("  metadata database already exists (not modified)\n")
		return nil
	}
	store, err := storage.Create(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to create metadata database: %w", err)
	}
	defer store.Close()
	fmt.Printf("  created metadata database at %s\n", cfg.DatabasePath)
	return nil
}
