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

// Package telemetry is a thread-safe bounded ring of InteractionLog and
// AgentTrace records, alongside a Prometheus counters/histograms surface
// for missions, agent-trace events and gateway calls.
package telemetry

import (
	"sync"
	"time"
)

// RequestType classifies an InteractionLog entry.
type RequestType string

const (
	RequestGhost RequestType = "GHOST"
	RequestAgent RequestType = "AGENT"
	RequestChat  RequestType = "CHAT"
)

// InteractionLog is one mission's request/response record.
type InteractionLog struct {
	Timestamp        time.Time   `json:"timestamp"`
	ProjectID        string      `json:"project_id"`
	RequestType      RequestType `json:"request_type"`
	UserQuery        string      `json:"user_query"`
	FullPrompt       string      `json:"full_prompt"`
	ModelReply       string      `json:"model_reply"`
	LatencyMs        int64       `json:"latency_ms"`
	PromptTokens     int         `json:"prompt_tokens"`
	CompletionTokens int         `json:"completion_tokens"`
	TotalTokens      int         `json:"total_tokens"`
	QueryVectorHead  []float32   `json:"query_vector_head,omitempty"`
}

// TraceState is one AgentTrace event's phase tag.
type TraceState string

const (
	StateStartup  TraceState = "STARTUP"
	StateThought  TraceState = "THOUGHT"
	StateToolExec TraceState = "TOOL_EXEC"
	StateASTScan  TraceState = "AST_SCAN"
	StateFinal    TraceState = "FINAL"
	StateError    TraceState = "ERROR"
)

// AgentTrace is one ordered event in a mission's event stream.
type AgentTrace struct {
	SessionID  string     `json:"session_id"`
	State      TraceState `json:"state"`
	Detail     string     `json:"detail"`
	DurationMs int64      `json:"duration_ms"`
	Timestamp  time.Time  `json:"timestamp"`
}

// DefaultCap is the ring eviction threshold absent an override.
const DefaultCap = 500

// Sink is the bounded, thread-safe telemetry ring plus a Prometheus
// exporter reachable through its own metrics handler.
type Sink struct {
	mu     sync.Mutex
	cap    int
	logs   []InteractionLog
	traces []AgentTrace

	metrics *prometheusMetrics
}

// New creates a Sink bounded to capacity entries per ring (<=0 uses
// DefaultCap), with its Prometheus collectors registered.
func New(capacity int) *Sink {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Sink{cap: capacity, metrics: newPrometheusMetrics()}
}

// RecordLog appends an InteractionLog, evicting the oldest entry if the
// ring is at capacity.
func (s *Sink) RecordLog(l InteractionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = appendBounded(s.logs, l, s.cap)
	s.metrics.interactionsTotal.Inc()
	s.metrics.interactionLatency.Observe(float64(l.LatencyMs) / 1000.0)
}

// RecordTrace appends an AgentTrace event, evicting the oldest entry if the
// ring is at capacity.
func (s *Sink) RecordTrace(t AgentTrace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = appendBounded(s.traces, t, s.cap)
	s.metrics.traceEventsTotal.WithLabelValues(string(t.State)).Inc()
}

// RecordGatewayLatency implements gateway.LatencyRecorder.
func (s *Sink) RecordGatewayLatency(call string, d time.Duration, success bool) {
	s.metrics.gatewayLatency.WithLabelValues(call).Observe(d.Seconds())
	if !success {
		s.metrics.gatewayFailuresTotal.WithLabelValues(call).Inc()
	}
}

// LogsJSON returns the current log ring, oldest first.
func (s *Sink) LogsJSON() []InteractionLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]InteractionLog, len(s.logs))
	copy(out, s.logs)
	return out
}

// TracesJSON returns the current trace ring, oldest first.
func (s *Sink) TracesJSON() []AgentTrace {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AgentTrace, len(s.traces))
	copy(out, s.traces)
	return out
}

func appendBounded[T any](ring []T, item T, cap int) []T {
	ring = append(ring, item)
	if len(ring) > cap {
		ring = ring[len(ring)-cap:]
	}
	return ring
}
