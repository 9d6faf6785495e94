// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package bootstrap registers and opens projects against the core's
// persisted layout: a storage directory holding config.json, manifest.json,
// tree.txt, _full_context.txt, converted_files/ and vector_store/.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/cie-core/internal/output"
)

// ProjectConfig is the registration payload persisted as config.json.
type ProjectConfig struct {
	ProjectID          string   `json:"project_id"`
	LocalPath          string   `json:"local_path"`
	StorageDir         string   `json:"storage_path"`
	AllowedExtensions  []string `json:"allowed_extensions"`
	IgnoredPaths       []string `json:"ignored_paths"`
	IncludedPaths      []string `json:"included_paths"`
	EmbeddingDimension int      `json:"embedding_dimension"`
}

// ProjectInfo is what callers receive after a successful registration.
type ProjectInfo struct {
	ProjectID  string
	LocalPath  string
	StorageDir string
}

const configFileName = "config.json"

// RegisterProject validates and persists a project's config.json, creating
// the storage directory tree if needed. Idempotent: re-registering the same
// project_id overwrites the prior configuration.
func RegisterProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required")
	}
	if config.LocalPath == "" {
		return nil, fmt.Errorf("local_path is required")
	}
	if config.StorageDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		config.StorageDir = filepath.Join(homeDir, ".cie-core", "projects", config.ProjectID)
	}
	if config.EmbeddingDimension == 0 {
		config.EmbeddingDimension = 768
	}

	logger.Info("bootstrap.project.register.start",
		"project_id", config.ProjectID,
		"storage_dir", config.StorageDir,
	)

	for _, sub := range []string{"converted_files", "vector_store"} {
		if err := os.MkdirAll(filepath.Join(config.StorageDir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	if err := writeConfig(config); err != nil {
		return nil, fmt.Errorf("write config: %w", err)
	}

	logger.Info("bootstrap.project.register.success",
		"project_id", config.ProjectID,
		"storage_dir", config.StorageDir,
	)

	return &ProjectInfo{
		ProjectID:  config.ProjectID,
		LocalPath:  config.LocalPath,
		StorageDir: config.StorageDir,
	}, nil
}

func writeConfig(config ProjectConfig) error {
	f, err := os.Create(filepath.Join(config.StorageDir, configFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	return output.JSONTo(f, config)
}

// OpenProject reads back a previously registered project's config.json.
func OpenProject(storageDir string, logger *slog.Logger) (*ProjectConfig, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(filepath.Join(storageDir, configFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("project not found: %s (register it first)", storageDir)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var config ProjectConfig
	if err := json.Unmarshal(data, &config); err != nil {
		logger.Warn("bootstrap.project.open.corrupt_config", "storage_dir", storageDir, "err", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	logger.Debug("bootstrap.project.open", "project_id", config.ProjectID, "storage_dir", storageDir)
	return &config, nil
}

// ListProjects returns every project_id registered under baseDir, the
// directory holding one subdirectory per project's storage tree.
func ListProjects(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	var projects []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(baseDir, entry.Name(), configFileName)); err == nil {
			projects = append(projects, entry.Name())
		}
	}
	return projects, nil
}
