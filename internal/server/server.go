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

// Package server wires every component (key pool, model gateway, sync
// engine, tool registry, agent executor, telemetry sink) behind a single
// echo HTTP surface, plus a WebSocket endpoint carrying the agent's
// streamed mission events.
package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/kraklabs/cie-core/internal/errors"
	"github.com/kraklabs/cie-core/pkg/agentloop"
	"github.com/kraklabs/cie-core/pkg/experience"
	"github.com/kraklabs/cie-core/pkg/gateway"
	"github.com/kraklabs/cie-core/pkg/journal"
	"github.com/kraklabs/cie-core/pkg/keypool"
	"github.com/kraklabs/cie-core/pkg/syncengine"
	"github.com/kraklabs/cie-core/pkg/telemetry"
	"github.com/kraklabs/cie-core/pkg/toolbox"
)

// App holds every long-lived component and the registry of active
// projects. One App backs one server process.
type App struct {
	logger    *slog.Logger
	keys      *keypool.Pool
	gw        *gateway.Gateway
	sync      *syncengine.Engine
	telemetry *telemetry.Sink
	baseDir   string

	mu       sync.Mutex
	projects map[string]*project
}

// project is the per-project runtime: its tool registry, edit journal,
// agent executor and experience vault, all rooted at its local path and
// storage directory.
type project struct {
	localPath         string
	storageDir        string
	allowedExtensions []string
	ignoredPaths      []string
	includedPaths     []string
	filter            *syncengine.Filter
	tools             *toolbox.Registry
	journal           *journal.Journal
	executor          *agentloop.Executor
	experience        *experience.Vault
}

// New builds an App. baseDir is the default parent directory used to
// resolve a project's storage path when registration omits storage_path.
func New(logger *slog.Logger, keys *keypool.Pool, gw *gateway.Gateway, syncEngine *syncengine.Engine, sink *telemetry.Sink, baseDir string) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		logger:    logger,
		keys:      keys,
		gw:        gw,
		sync:      syncEngine,
		telemetry: sink,
		baseDir:   baseDir,
		projects:  make(map[string]*project),
	}
}

// Echo builds the routed echo instance. Callers run it with e.Start or
// e.StartServer for graceful-shutdown control.
func (a *App) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.HTTPErrorHandler = a.errorHandler

	e.GET("/projects", a.handleListProjects)
	e.POST("/sync/register/:project_id", a.handleRegister)
	e.POST("/sync/run/:project_id", a.handleSyncRun)
	e.POST("/sync/file/:project_id", a.handleSyncFile)
	e.POST("/sync/hook/:project_id", a.handleInstallHook)
	e.POST("/generate-code-suggestion", a.handleGenerateSuggestion)
	e.POST("/retrieve-context-candidates", a.handleRetrieveCandidates)
	e.POST("/complete", a.handleComplete)
	e.GET("/api/admin/telemetry", a.handleTelemetry)
	e.GET("/api/admin/agent_trace", a.handleAgentTrace)
	e.POST("/api/admin/publish_trace", a.handlePublishTrace)
	e.POST("/api/admin/publish_log", a.handlePublishLog)
	e.GET("/metrics", echo.WrapHandler(a.telemetry.Handler()))
	e.GET("/ws/execute", a.handleExecuteWS)

	return e
}

// errorHandler converts an *errors.UserError into the spec's
// {error, cause, fix} JSON body with the matching HTTP status; any other
// error falls back to a generic 500.
func (a *App) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	if ue, ok := err.(*errors.UserError); ok {
		_ = c.JSON(httpStatusFor(ue.ExitCode), map[string]string{
			"error": ue.Message,
			"cause": ue.Cause,
			"fix":   ue.Fix,
		})
		return
	}

	if he, ok := err.(*echo.HTTPError); ok {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}

	a.logger.Error("server.unhandled_error", "err", err)
	_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func httpStatusFor(exitCode int) int {
	switch exitCode {
	case errors.ExitConfig:
		return http.StatusBadRequest
	case errors.ExitDatabase:
		return http.StatusInternalServerError
	case errors.ExitNetwork:
		return http.StatusBadGateway
	case errors.ExitInput:
		return http.StatusBadRequest
	case errors.ExitPermission:
		return http.StatusForbidden
	case errors.ExitNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
