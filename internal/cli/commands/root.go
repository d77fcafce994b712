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
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"drivefs/internal/blob"
	"drivefs/internal/config"
	"drivefs/internal/storage"
	"drivefs/internal/vfs"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version info for --version flag
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

// getVersionString returns the version string with build info
func getVersionString() string {
	buildDate := formatBuildDate(date)
	if strings.HasSuffix(version, "-dev") {
		// Dev build: include epoch and commit for troubleshooting
		return fmt.Sprintf("%s (%s, epoch: %s, commit: %s)", version, buildDate, date, commit)
	}
	return fmt.Sprintf("%s (%s)", version, buildDate)
}

// formatBuildDate converts epoch timestamp to readable date
func formatBuildDate(epoch string) string {
	ts, err := strconv.ParseInt(epoch, 10, 64)
	if err != nil {
		return epoch
	}
	return time.Unix(ts, 0).Format("2006-01-02")
}

var flagUser string

var rootCmd = &cobra.Command{
	Use:   "drivefs",
	Short: "Virtual-filesystem storage engine for a personal cloud drive",
	Long: `drivefs manages a per-user virtual filesystem: a metadata tree backed by
SQLite, content blobs on disk, per-user quotas and streaming zip downloads.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		if err := config.EnsureDataDir(); err != nil {
			return fmt.Errorf("failed to initialize data directory: %w", err)
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		applyLogLevel(cfg.LogLevel())
		return nil
	},
}

func applyLogLevel(level string) {
	switch level {
	case "none":
		log.SetLevel(log.ErrorLevel)
		log.SetOutput(io.Discard)
	default:
		parsed, err := log.ParseLevel(level)
		if err != nil {
			parsed = log.InfoLevel
		}
		log.SetLevel(parsed)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SetVersionTemplate("drivefs version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "local", "owner id to operate as")
}

// openEngine loads the config and opens the metadata and blob stores,
// creating the metadata database on first use.
func openEngine() (*vfs.Engine, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	var store *storage.Store
	if _, err := os.Stat(cfg.DatabasePath); os.IsNotExist(err) {
		store, err = storage.Create(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
	} else {
		store, err = storage.Open(cfg.DatabasePath)
		if err != nil {
			return nil, nil, err
		}
	}

	blobs, err := blob.NewOSStore(cfg.BlobDir)
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	engine := vfs.NewEngine(store, blobs, vfs.Options{
		DefaultQuotaBytes: cfg.DefaultQuotaBytes,
		MaxUploadBytes:    cfg.MaxUploadBytes,
	})
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("failed to close metadata store")
		}
	}
	return engine, cleanup, nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
