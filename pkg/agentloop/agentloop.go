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

// Package agentloop drives the bounded plan/act/observe cycle: build a
// prompt, call the gateway, extract one JSON tool call, dispatch it
// through the tool registry, and repeat until FINAL_ANSWER or the
// iteration cap is reached.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kraklabs/cie-core/pkg/gateway"
	"github.com/kraklabs/cie-core/pkg/parser"
	"github.com/kraklabs/cie-core/pkg/telemetry"
	"github.com/kraklabs/cie-core/pkg/toolbox"
)

// DefaultMaxIterations bounds the plan/act/observe loop.
const DefaultMaxIterations = 10

// Event is one streamed progress notification.
type Event struct {
	Phase   telemetry.TraceState
	Payload string
}

// Writer receives streamed Events; may be nil.
type Writer interface {
	Write(Event)
}

// Gateway is the narrow slice of pkg/gateway.Gateway the loop needs.
type Gateway interface {
	Generate(ctx context.Context, prompt string) gateway.GenerateResult
}

// Dispatcher is the narrow slice of pkg/toolbox.Registry the loop needs.
type Dispatcher interface {
	Manifest() ([]byte, error)
	Dispatch(ctx context.Context, sessionID, name string, args map[string]any) string
}

// Tracer receives AgentTrace events; may be nil.
type Tracer interface {
	RecordTrace(t telemetry.AgentTrace)
	RecordLog(l telemetry.InteractionLog)
}

// ExperienceRecorder persists a mission outcome; may be nil.
type ExperienceRecorder interface {
	Add(prompt, solution string, embedding []float32, success bool)
}

// Embedder produces the query embedding recorded on the InteractionLog;
// may be nil, in which case QueryVectorHead is omitted.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Executor runs missions against a tool registry and model gateway.
type Executor struct {
	Gateway       Gateway
	Tools         Dispatcher
	Tracer        Tracer
	Experience    ExperienceRecorder
	Embedder      Embedder
	MaxIterations int
}

// New builds an Executor with DefaultMaxIterations. Tracer, Experience and
// Embedder may be left nil.
func New(gw Gateway, tools Dispatcher) *Executor {
	return &Executor{Gateway: gw, Tools: tools, MaxIterations: DefaultMaxIterations}
}

// RunResult is what Run returns once the mission concludes.
type RunResult struct {
	FinalAnswer string
	Log         telemetry.InteractionLog
}

// Run executes one bounded mission. context blob (if any) should already be
// folded into userQuery by the caller's context manager pass.
func (e *Executor) Run(ctx context.Context, sessionID, userQuery, projectID string, writer Writer) RunResult {
	start := time.Now()
	maxIter := e.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	e.emit(writer, sessionID, telemetry.StateStartup, "mission started")

	manifest, err := e.Tools.Manifest()
	if err != nil {
		manifest = []byte("[]")
	}

	var monologue []string
	seenSignatures := make(map[string]bool)
	finalAnswer := ""
	reachedCap := true
	var lastResult gateway.GenerateResult

	for i := 0; i < maxIter; i++ {
		prompt := buildSystemPrompt(string(manifest), userQuery, monologue)

		result := e.Gateway.Generate(ctx, prompt)
		if !result.Success {
			e.emit(writer, sessionID, telemetry.StateError, "gateway generation failed")
			finalAnswer = "ERROR: mission aborted, the model gateway failed to respond."
			reachedCap = false
			break
		}
		lastResult = result
		e.emit(writer, sessionID, telemetry.StateThought, result.Text)

		action, ok := extractAction(result.Text)
		if !ok {
			monologue = append(monologue, fmt.Sprintf("[Step %d] SYSTEM NOTE: no valid JSON action found in your reply; respond with exactly one {\"tool\":...,\"parameters\":{...}} object.", i+1))
			continue
		}

		if action.Tool == toolbox.FinalAnswerName {
			finalAnswer, _ = action.Parameters["answer"].(string)
			e.emit(writer, sessionID, telemetry.StateFinal, finalAnswer)
			reachedCap = false
			break
		}

		sig := signature(action)
		if seenSignatures[sig] {
			monologue = append(monologue, fmt.Sprintf("[Step %d] SYSTEM ALERT: you already tried %s with these exact parameters. Change strategy; do not repeat this action.", i+1, action.Tool))
			continue
		}
		seenSignatures[sig] = true

		if action.Parameters == nil {
			action.Parameters = map[string]any{}
		}
		action.Parameters["project_id"] = projectID

		observation := e.Tools.Dispatch(ctx, sessionID, action.Tool, action.Parameters)

		if action.Tool == "read_file" && !strings.HasPrefix(observation, "ERROR") {
			if symbols, err := parser.XRay(ctx, fmt.Sprint(action.Parameters["path"]), []byte(observation)); err == nil {
				e.emit(writer, sessionID, telemetry.StateASTScan, fmt.Sprintf("[AST DATA: %d symbols detected]", len(symbols)))
				observation += fmt.Sprintf("\n[AST DATA: %d symbols detected]", len(symbols))
			}
		}

		monologue = append(monologue, fmt.Sprintf("[Step %d] CALL %s(%v) -> %s", i+1, action.Tool, action.Parameters, observation))
	}

	if reachedCap {
		finalAnswer = "TIMEOUT: mission did not reach a final answer within the iteration budget."
	}

	latency := time.Since(start)
	log := telemetry.InteractionLog{
		Timestamp:        time.Now(),
		ProjectID:        projectID,
		RequestType:      telemetry.RequestAgent,
		UserQuery:        userQuery,
		FullPrompt:       strings.Join(monologue, "\n"),
		ModelReply:       finalAnswer,
		LatencyMs:        latency.Milliseconds(),
		PromptTokens:     lastResult.PromptTokens,
		CompletionTokens: lastResult.CompletionTokens,
		TotalTokens:      lastResult.TotalTokens,
	}
	if e.Embedder != nil {
		if vec, err := e.Embedder.Embed(ctx, userQuery); err == nil {
			log.QueryVectorHead = headOf(vec, 8)
		}
	}
	if e.Tracer != nil {
		e.Tracer.RecordLog(log)
	}

	return RunResult{FinalAnswer: finalAnswer, Log: log}
}

// RecordOutcome persists an Experience for this mission, if an
// ExperienceRecorder is configured.
func (e *Executor) RecordOutcome(prompt, solution string, embedding []float32, success bool) {
	if e.Experience != nil {
		e.Experience.Add(prompt, solution, embedding, success)
	}
}

func (e *Executor) emit(w Writer, sessionID string, state telemetry.TraceState, detail string) {
	trace := telemetry.AgentTrace{SessionID: sessionID, State: state, Detail: detail, Timestamp: time.Now()}
	if w != nil {
		w.Write(Event{Phase: state, Payload: detail})
	}
	if e.Tracer != nil {
		e.Tracer.RecordTrace(trace)
	}
}

func headOf(v []float32, n int) []float32 {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

const rolePreamble = `You are an autonomous coding agent. Respond with exactly one JSON object per turn: {"tool": "<tool name>", "parameters": {...}}. Use FINAL_ANSWER once you know the answer. Do not repeat a failed step.`

func buildSystemPrompt(manifest, userQuery string, monologue []string) string {
	var b strings.Builder
	b.WriteString(rolePreamble)
	b.WriteString("\n\nAVAILABLE TOOLS:\n")
	b.WriteString(manifest)
	b.WriteString("\n\nMISSION:\n")
	b.WriteString(userQuery)
	if len(monologue) > 0 {
		b.WriteString("\n\nPROGRESS SO FAR:\n")
		b.WriteString(strings.Join(monologue, "\n"))
	}
	return b.String()
}

// action is one extracted tool call.
type action struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
}

// signature returns a deterministic loop-detection key: the tool name plus
// the canonical (key-sorted) JSON of its parameters. encoding/json already
// sorts map[string]any keys lexicographically, so a plain Marshal suffices.
func signature(a action) string {
	data, err := json.Marshal(a.Parameters)
	if err != nil {
		return a.Tool
	}
	return a.Tool + "|" + string(data)
}

// extractAction locates the first balanced top-level {...} object in text
// by brace counting (honoring quoted strings and escapes) and decodes it.
func extractAction(text string) (action, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			if escaped {
				escaped = false
			} else if r == '\\' {
				escaped = true
			} else if r == '"' {
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					var a action
					if err := json.Unmarshal([]byte(text[start:i+1]), &a); err == nil && a.Tool != "" {
						return a, true
					}
					start = -1
				}
			}
		}
	}
	return action{}, false
}
