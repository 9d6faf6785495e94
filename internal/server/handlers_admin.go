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
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kraklabs/cie-core/internal/errors"
	"github.com/kraklabs/cie-core/internal/output"
	"github.com/kraklabs/cie-core/pkg/telemetry"
)

// writeJSON streams data through internal/output's pretty-printing encoder
// directly to the response body, rather than buffering it through echo's
// own JSONPretty.
func writeJSON(c echo.Context, status int, data any) error {
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	c.Response().WriteHeader(status)
	return output.JSONTo(c.Response(), data)
}

// handleTelemetry surfaces the bounded interaction-log ring. Its metrics
// field points to the /metrics Prometheus endpoint; no snapshot of the
// counters is embedded.
func (a *App) handleTelemetry(c echo.Context) error {
	return writeJSON(c, http.StatusOK, map[string]any{
		"metrics": "see /metrics for the Prometheus exposition format",
		"logs":    a.telemetry.LogsJSON(),
	})
}

func (a *App) handleAgentTrace(c echo.Context) error {
	return writeJSON(c, http.StatusOK, a.telemetry.TracesJSON())
}

// handlePublishTrace and handlePublishLog let an external agent runner
// (one that executes the agent loop out-of-process) feed events into this
// server's telemetry sink for centralized observability.
func (a *App) handlePublishTrace(c echo.Context) error {
	var t telemetry.AgentTrace
	if err := c.Bind(&t); err != nil {
		return errors.NewInputError("invalid agent trace body", err.Error(), "send a JSON AgentTrace object")
	}
	a.telemetry.RecordTrace(t)
	return c.NoContent(http.StatusAccepted)
}

func (a *App) handlePublishLog(c echo.Context) error {
	var l telemetry.InteractionLog
	if err := c.Bind(&l); err != nil {
		return errors.NewInputError("invalid interaction log body", err.Error(), "send a JSON InteractionLog object")
	}
	a.telemetry.RecordLog(l)
	return c.NoContent(http.StatusAccepted)
}
