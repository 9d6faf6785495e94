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
	"path/filepath"

	"github.com/kraklabs/cie-core/internal/bootstrap"
	"github.com/kraklabs/cie-core/internal/errors"
	"github.com/kraklabs/cie-core/pkg/agentloop"
	"github.com/kraklabs/cie-core/pkg/experience"
	"github.com/kraklabs/cie-core/pkg/journal"
	"github.com/kraklabs/cie-core/pkg/syncengine"
	"github.com/kraklabs/cie-core/pkg/toolbox"
)

const journalBackupSubdir = "journal"

// registerProject validates and persists cfg, then builds (or rebuilds)
// that project's in-memory runtime.
func (a *App) registerProject(cfg bootstrap.ProjectConfig) (*project, error) {
	if cfg.StorageDir == "" {
		cfg.StorageDir = filepath.Join(a.baseDir, cfg.ProjectID)
	}

	info, err := bootstrap.RegisterProject(cfg, a.logger)
	if err != nil {
		return nil, errors.NewConfigError("cannot register project", err.Error(), "check local_path and storage_path are writable", err)
	}

	p := a.buildRuntime(cfg, info.StorageDir)

	a.mu.Lock()
	a.projects[cfg.ProjectID] = p
	a.mu.Unlock()

	return p, nil
}

// getProject returns the runtime for projectID, loading it from a
// previously persisted config.json if the process has since restarted.
func (a *App) getProject(projectID string) (*project, error) {
	a.mu.Lock()
	p, ok := a.projects[projectID]
	a.mu.Unlock()
	if ok {
		return p, nil
	}

	storageDir := filepath.Join(a.baseDir, projectID)
	cfg, err := bootstrap.OpenProject(storageDir, a.logger)
	if err != nil {
		return nil, errors.NewNotFoundError("project not found", err.Error(), "register it first via POST /sync/register/:project_id")
	}

	p = a.buildRuntime(*cfg, storageDir)

	a.mu.Lock()
	a.projects[projectID] = p
	a.mu.Unlock()

	return p, nil
}

// buildRuntime assembles the tool registry, journal, agent executor and
// experience vault for one project, rooted at its local workspace path.
func (a *App) buildRuntime(cfg bootstrap.ProjectConfig, storageDir string) *project {
	filter := syncengine.NewFilter(cfg.AllowedExtensions, cfg.IgnoredPaths, cfg.IncludedPaths)
	j := journal.New(filepath.Join(storageDir, journalBackupSubdir))

	tools := toolbox.NewRegistry(a.telemetry)
	tools.Register(toolbox.NewListDirTool(cfg.LocalPath, filter))
	tools.Register(toolbox.NewReadFileTool(cfg.LocalPath))
	tools.Register(toolbox.NewApplyEditTool(cfg.LocalPath, j))
	tools.Register(toolbox.NewWebSearchTool(a.keys.SerperKey))
	tools.Register(toolbox.NewAnalyzeVisionTool(a.gw))
	tools.Register(toolbox.FinalAnswerTool{})

	exec := agentloop.New(a.gw, tools)
	exec.Tracer = a.telemetry
	exec.Experience = experience.New()
	exec.Embedder = a.gw

	return &project{
		localPath:         cfg.LocalPath,
		storageDir:        storageDir,
		allowedExtensions: cfg.AllowedExtensions,
		ignoredPaths:      cfg.IgnoredPaths,
		includedPaths:     cfg.IncludedPaths,
		filter:            filter,
		tools:             tools,
		journal:           j,
		executor:          exec,
		experience:        exec.Experience.(*experience.Vault),
	}
}
