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

// Package toolbox holds the named tool registry the agent executor
// dispatches against, plus the six built-in tools.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kraklabs/cie-core/pkg/telemetry"
)

// Tool is one dispatchable capability advertised to the model.
type Tool interface {
	Name() string
	Description() string
	// Schema is a JSON-schema string describing the tool's parameters.
	Schema() string
	// Execute runs the tool against args (already decoded from the
	// model's JSON action) and returns the observation text. Tools never
	// return a Go error for expected failure modes — they encode those
	// as "ERROR: ..." strings, per the dispatch contract.
	Execute(ctx context.Context, args map[string]any) string
}

// Advertisement is the JSON-serializable shape a Tool exposes to the model.
type Advertisement struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tracer receives a TOOL_EXEC trace event per dispatch.
type Tracer interface {
	RecordTrace(t telemetry.AgentTrace)
}

// Registry holds named tools and dispatches calls to them.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	tracer Tracer
}

// NewRegistry creates an empty registry. tracer may be nil, in which case
// dispatch emits no TOOL_EXEC events.
func NewRegistry(tracer Tracer) *Registry {
	return &Registry{tools: make(map[string]Tool), tracer: tracer}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Manifest returns the JSON array of tool advertisements, in registration
// order.
func (r *Registry) Manifest() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ads := make([]Advertisement, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		ads = append(ads, Advertisement{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  json.RawMessage(t.Schema()),
		})
	}
	return json.Marshal(ads)
}

// Dispatch runs the named tool against args and returns its observation
// string. An unknown tool name yields the spec's fixed error sentinel
// rather than a Go error. sessionID tags the emitted TOOL_EXEC trace.
func (r *Registry) Dispatch(ctx context.Context, sessionID, name string, args map[string]any) string {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return fmt.Sprintf("ERROR: Tool '%s' not found.", name)
	}

	start := time.Now()
	result := t.Execute(ctx, args)
	duration := time.Since(start)

	if r.tracer != nil {
		r.tracer.RecordTrace(telemetry.AgentTrace{
			SessionID:  sessionID,
			State:      telemetry.StateToolExec,
			Detail:     name,
			DurationMs: duration.Milliseconds(),
			Timestamp:  time.Now(),
		})
	}
	return result
}
