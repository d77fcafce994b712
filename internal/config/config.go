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

// Package config loads drivefs settings from config.yaml and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment overrides. DRIVEFS_DATA_DIR is computed dynamically to support
// test isolation.
const (
	EnvConfigPath = "DRIVEFS_CONFIG"
	EnvDataDir    = "DRIVEFS_DATA_DIR"
)

// Config is the on-disk configuration, loaded from {data_dir}/config.yaml.
type Config struct {
	DataDir           string `yaml:"data_dir"`
	DatabasePath      string `yaml:"database_path"`       // default: {data_dir}/metadata.db
	BlobDir           string `yaml:"blob_dir"`            // default: {data_dir}/blobs
	DefaultQuotaBytes int64  `yaml:"default_quota_bytes"` // default: 10 GiB
	MaxUploadBytes    int64  `yaml:"max_upload_bytes"`    // default: 10 GiB
	Logging           string `yaml:"logging"`             // none, error, warn, info, debug, trace
}

// DataDir returns the data directory path. Uses DRIVEFS_DATA_DIR if set,
// otherwise defaults to ~/.drivefs.
func DataDir() string {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".drivefs")
}

// ConfigPath returns the config file path. Uses DRIVEFS_CONFIG if set,
// otherwise {data_dir}/config.yaml.
func ConfigPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(DataDir(), "config.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0700)
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.DataDir == "" {
		cfg.DataDir = DataDir()
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "metadata.db")
	}
	if cfg.BlobDir == "" {
		cfg.BlobDir = filepath.Join(cfg.DataDir, "blobs")
	}
	if cfg.DefaultQuotaBytes <= 0 {
		cfg.DefaultQuotaBytes = int64(10) << 30
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = int64(10) << 30
	}
	if cfg.Logging == "" {
		cfg.Logging = "info"
	}
}

// LogLevel returns the normalized (lowercase) logging level.
func (cfg *Config) LogLevel() string {
	return strings.ToLower(cfg.Logging)
}

// Load reads the config file at ConfigPath(). A missing file is not an
// error; defaults apply.
func Load() (*Config, error) {
	return LoadFromPath(ConfigPath())
}

// LoadFromPath reads a config file from a specific path. Returns a default
// config if the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Save writes the config back to path with restrictive permissions.
func (cfg *Config) Save(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
