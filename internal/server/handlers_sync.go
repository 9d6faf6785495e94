// Copyright 2025 KrakLabs
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
//
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kraklabs/cie-core/internal/bootstrap"
	"github.com/kraklabs/cie-core/internal/errors"
	"github.com/kraklabs/cie-core/pkg/syncengine"
)

type registerRequest struct {
	LocalPath         string   `json:"local_path"`
	StoragePath       string   `json:"storage_path"`
	AllowedExtensions []string `json:"allowed_extensions"`
	IgnoredPaths      []string `json:"ignored_paths"`
	IncludedPaths     []string `json:"included_paths"`
}

// handleListProjects enumerates every project_id registered under the
// daemon's data directory, including ones not yet loaded into memory.
func (a *App) handleListProjects(c echo.Context) error {
	ids, err := bootstrap.ListProjects(a.baseDir)
	if err != nil {
		return errors.NewInternalError("failed to list projects", err.Error(), "check the data directory is readable", err)
	}
	return c.JSONPretty(http.StatusOK, map[string]any{"projects": ids}, "  ")
}

func (a *App) handleRegister(c echo.Context) error {
	projectID := c.Param("project_id")
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewInputError("invalid request body", err.Error(), "send a JSON object matching {local_path, storage_path?, allowed_extensions[], ignored_paths[], included_paths[]}")
	}
	if req.LocalPath == "" {
		return errors.NewInputError("local_path is required", "", "include a local_path field pointing at the project's source tree")
	}

	p, err := a.registerProject(bootstrap.ProjectConfig{
		ProjectID:         projectID,
		LocalPath:         req.LocalPath,
		StorageDir:        req.StoragePath,
		AllowedExtensions: req.AllowedExtensions,
		IgnoredPaths:      req.IgnoredPaths,
		IncludedPaths:     req.IncludedPaths,
	})
	if err != nil {
		return err
	}

	return c.JSONPretty(http.StatusOK, map[string]string{
		"project_id":  projectID,
		"local_path":  p.localPath,
		"storage_dir": p.storageDir,
	}, "  ")
}

// handleSyncRun schedules a full sync in the background and responds
// immediately, matching the spec's "responds immediately" contract.
func (a *App) handleSyncRun(c echo.Context) error {
	projectID := c.Param("project_id")
	p, err := a.getProject(projectID)
	if err != nil {
		return err
	}

	cfg := a.syncConfig(projectID, p)
	go func() {
		if _, err := a.sync.PerformSync(context.Background(), cfg); err != nil {
			a.logger.Error("server.sync_run.failed", "project_id", projectID, "err", err)
		}
	}()

	return c.JSONPretty(http.StatusAccepted, map[string]string{"status": "scheduled"}, "  ")
}

type syncFileRequest struct {
	FilePath string `json:"file_path"`
}

// handleSyncFile schedules an incremental single-file sync, rejecting any
// path that reaches into the project's own storage directory.
func (a *App) handleSyncFile(c echo.Context) error {
	projectID := c.Param("project_id")
	var req syncFileRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewInputError("invalid request body", err.Error(), "send {file_path}")
	}
	if req.FilePath == "" {
		return errors.NewInputError("file_path is required", "", "include a file_path field")
	}

	p, err := a.getProject(projectID)
	if err != nil {
		return err
	}
	if strings.Contains(req.FilePath, ".cie-core") || strings.Contains(filepathToSlash(req.FilePath), filepathToSlash(p.storageDir)) {
		return errors.NewInputError("file_path refers to the storage directory", req.FilePath, "pass a path under the project's source tree")
	}

	cfg := a.syncConfig(projectID, p)
	go func() {
		if _, err := a.sync.SyncSingleFile(context.Background(), cfg, req.FilePath); err != nil {
			a.logger.Error("server.sync_file.failed", "project_id", projectID, "file_path", req.FilePath, "err", err)
		}
	}()

	return c.JSONPretty(http.StatusAccepted, map[string]string{"status": "scheduled"}, "  ")
}

// handleInstallHook writes a git post-commit hook invoking sync/run for
// projectID. Supplemental convenience endpoint, not part of the core RPC
// surface.
func (a *App) handleInstallHook(c echo.Context) error {
	projectID := c.Param("project_id")
	p, err := a.getProject(projectID)
	if err != nil {
		return err
	}

	if err := installPostCommitHook(p.localPath, projectID); err != nil {
		return errors.NewInternalError("failed to install git hook", err.Error(), "ensure .git/hooks exists and is writable", err)
	}
	return c.JSONPretty(http.StatusOK, map[string]string{"status": "installed"}, "  ")
}

func (a *App) syncConfig(projectID string, p *project) syncengine.Config {
	return syncengine.Config{
		ProjectID:         projectID,
		SourceDir:         p.localPath,
		StorageDir:        p.storageDir,
		AllowedExtensions: p.allowedExtensions,
		IgnoredPaths:      p.ignoredPaths,
		IncludedPaths:     p.includedPaths,
	}
}

func filepathToSlash(s string) string {
	return strings.ReplaceAll(s, "\\", "/")
}
