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

package agentloop

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cie-core/pkg/gateway"
)

type scriptedGateway struct {
	replies []string
	calls   int
}

func (g *scriptedGateway) Generate(ctx context.Context, prompt string) gateway.GenerateResult {
	if g.calls >= len(g.replies) {
		return gateway.GenerateResult{Text: `{"tool":"FINAL_ANSWER","parameters":{"answer":"fallback"}}`, Success: true}
	}
	reply := g.replies[g.calls]
	g.calls++
	return gateway.GenerateResult{
		Text:             reply,
		Success:          true,
		PromptTokens:     10 * g.calls,
		CompletionTokens: 5 * g.calls,
		TotalTokens:      15 * g.calls,
	}
}

type failingGateway struct{}

func (failingGateway) Generate(ctx context.Context, prompt string) gateway.GenerateResult {
	return gateway.GenerateResult{Success: false}
}

type fakeDispatcher struct {
	observation string
	dispatched  []string
}

func (d *fakeDispatcher) Manifest() ([]byte, error) { return []byte(`[{"name":"read_file"}]`), nil }

func (d *fakeDispatcher) Dispatch(ctx context.Context, sessionID, name string, args map[string]any) string {
	d.dispatched = append(d.dispatched, name)
	return d.observation
}

func TestRunReturnsFinalAnswerImmediately(t *testing.T) {
	gw := &scriptedGateway{replies: []string{`I think I'm done. {"tool":"FINAL_ANSWER","parameters":{"answer":"42"}}`}}
	exec := New(gw, &fakeDispatcher{observation: "ok"})

	result := exec.Run(context.Background(), "s1", "what is the answer?", "proj1", nil)
	assert.Equal(t, "42", result.FinalAnswer)
}

func TestRunLogCarriesLastGenerateTokenCounts(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		`{"tool":"read_file","parameters":{"path":"a.go"}}`,
		`I think I'm done. {"tool":"FINAL_ANSWER","parameters":{"answer":"42"}}`,
	}}
	exec := New(gw, &fakeDispatcher{observation: "ok"})

	result := exec.Run(context.Background(), "s1", "q", "proj1", nil)
	assert.Equal(t, 20, result.Log.PromptTokens)
	assert.Equal(t, 10, result.Log.CompletionTokens)
	assert.Equal(t, 30, result.Log.TotalTokens)
}

func TestRunDispatchesToolThenFinishes(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		`{"tool":"read_file","parameters":{"path":"a.go"}}`,
		`{"tool":"FINAL_ANSWER","parameters":{"answer":"done"}}`,
	}}
	dispatcher := &fakeDispatcher{observation: "package main"}
	exec := New(gw, dispatcher)

	result := exec.Run(context.Background(), "s1", "read a.go", "proj1", nil)
	assert.Equal(t, "done", result.FinalAnswer)
	require.Len(t, dispatcher.dispatched, 1)
	assert.Equal(t, "read_file", dispatcher.dispatched[0])
}

func TestRunGatewayFailureAborts(t *testing.T) {
	exec := New(failingGateway{}, &fakeDispatcher{})
	result := exec.Run(context.Background(), "s1", "q", "proj1", nil)
	assert.Contains(t, result.FinalAnswer, "ERROR")
}

func TestRunTimesOutAtIterationCap(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		`{"tool":"read_file","parameters":{"path":"a.go"}}`,
		`{"tool":"read_file","parameters":{"path":"b.go"}}`,
		`{"tool":"read_file","parameters":{"path":"c.go"}}`,
	}}
	exec := New(gw, &fakeDispatcher{observation: "ok"})
	exec.MaxIterations = 3

	result := exec.Run(context.Background(), "s1", "q", "proj1", nil)
	assert.Contains(t, result.FinalAnswer, "TIMEOUT")
}

func TestRunLoopDetectionAvoidsRepeatDispatch(t *testing.T) {
	gw := &scriptedGateway{replies: []string{
		`{"tool":"read_file","parameters":{"path":"a.go"}}`,
		`{"tool":"read_file","parameters":{"path":"a.go"}}`,
		`{"tool":"FINAL_ANSWER","parameters":{"answer":"done"}}`,
	}}
	dispatcher := &fakeDispatcher{observation: "ok"}
	exec := New(gw, dispatcher)

	result := exec.Run(context.Background(), "s1", "q", "proj1", nil)
	assert.Equal(t, "done", result.FinalAnswer)
	assert.Len(t, dispatcher.dispatched, 1, "repeated identical action must not be re-dispatched")
}

func TestExtractActionTolerateFencesAndProse(t *testing.T) {
	text := "Sure, here's my plan:\n```json\n{\"tool\": \"list_dir\", \"parameters\": {\"path\": \".\"}}\n```\nDone."
	a, ok := extractAction(text)
	require.True(t, ok)
	assert.Equal(t, "list_dir", a.Tool)
}

func TestExtractActionNoJSONReturnsFalse(t *testing.T) {
	_, ok := extractAction("I have no idea what to do next.")
	assert.False(t, ok)
}

func TestExtractActionIgnoresBracesInsideStrings(t *testing.T) {
	text := `{"tool": "apply_edit", "parameters": {"path": "a.go", "content": "func F() { return }"}}`
	a, ok := extractAction(text)
	require.True(t, ok)
	assert.Equal(t, "apply_edit", a.Tool)
	assert.Equal(t, "func F() { return }", a.Parameters["content"])
}
