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

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kraklabs/cie-core/pkg/agentloop"
	"github.com/kraklabs/cie-core/pkg/telemetry"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Same-origin enforcement is the caller's job (a reverse proxy or the
	// desktop shell embedding this server); the daemon itself serves only
	// on loopback by default.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// userQuery is the single frame a client sends to open a mission: the
// JSON realization of the spec's ExecuteTask request message.
type userQuery struct {
	Prompt    string `json:"prompt"`
	ProjectID string `json:"project_id"`
	SessionID string `json:"session_id"`
}

// agentResponse is one streamed frame: the JSON realization of the spec's
// AgentResponse stream message.
type agentResponse struct {
	Phase   telemetry.TraceState `json:"phase"`
	Payload string               `json:"payload"`
}

// wsWriter adapts a *websocket.Conn to agentloop.Writer, serializing each
// Event as one JSON frame.
type wsWriter struct {
	conn *websocket.Conn
}

func (w wsWriter) Write(e agentloop.Event) {
	_ = w.conn.WriteJSON(agentResponse{Phase: e.Phase, Payload: e.Payload})
}

// handleExecuteWS upgrades the connection, reads one initial UserQuery
// frame, then runs the mission while streaming AgentResponse frames until
// it concludes.
func (a *App) handleExecuteWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	var q userQuery
	if err := conn.ReadJSON(&q); err != nil {
		_ = conn.WriteJSON(agentResponse{Phase: telemetry.StateError, Payload: "malformed UserQuery frame: " + err.Error()})
		return nil
	}

	p, err := a.getProject(q.ProjectID)
	if err != nil {
		_ = conn.WriteJSON(agentResponse{Phase: telemetry.StateError, Payload: err.Error()})
		return nil
	}

	if q.SessionID == "" {
		q.SessionID = q.ProjectID
	}

	result := p.executor.Run(c.Request().Context(), q.SessionID, q.Prompt, q.ProjectID, wsWriter{conn: conn})
	a.telemetry.RecordLog(result.Log)

	return nil
}
