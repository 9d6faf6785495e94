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
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/kraklabs/cie-core/internal/errors"
	"github.com/kraklabs/cie-core/pkg/contextpack"
	"github.com/kraklabs/cie-core/pkg/retrieval"
	"github.com/kraklabs/cie-core/pkg/telemetry"
)

const retrievalMaxNodes = 20

type generateSuggestionRequest struct {
	ProjectID         string `json:"project_id"`
	Prompt            string `json:"prompt"`
	ActiveFilePath    string `json:"active_file_path"`
	ActiveFileContent string `json:"active_file_content"`
}

func (a *App) handleGenerateSuggestion(c echo.Context) error {
	ctx := c.Request().Context()
	var req generateSuggestionRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewInputError("invalid request body", err.Error(), "send {project_id, prompt, active_file_path?, active_file_content?}")
	}
	if req.ProjectID == "" || req.Prompt == "" {
		return errors.NewInputError("project_id and prompt are required", "", "include both fields in the request body")
	}

	p, err := a.getProject(req.ProjectID)
	if err != nil {
		return err
	}

	start := time.Now()
	queryVec, embedErr := a.gw.Embed(ctx, req.Prompt)
	if embedErr != nil {
		return errors.NewNetworkError("embedding failed", embedErr.Error(), "retry once the model provider recovers", embedErr)
	}

	candidates := retrieval.Retrieve(a.sync.Store(req.ProjectID), queryVec, retrievalMaxNodes, true)
	topology := readSideOutput(p.storageDir, "tree.txt")
	experiences := p.experience.Recall(queryVec)

	focal := req.ActiveFileContent
	if focal == "" && len(candidates) > 0 {
		focal = candidates[0].Node.Content
	}

	contextBlock := retrieval.BuildHierarchicalContext(candidates, contextpack.DefaultMaxChars)
	packed := contextpack.Pack(contextpack.Snapshot{
		FocalPoint:  focal,
		Topology:    topology,
		Experiences: experiences,
		ChatHistory: "",
	}, contextpack.DefaultMaxChars)
	fullPrompt := buildSuggestionPrompt(req.Prompt, req.ActiveFilePath, packed, contextBlock)

	result := a.gw.Generate(ctx, fullPrompt)
	a.telemetry.RecordLog(telemetry.InteractionLog{
		Timestamp:        time.Now(),
		ProjectID:        req.ProjectID,
		RequestType:      telemetry.RequestChat,
		UserQuery:        req.Prompt,
		FullPrompt:       fullPrompt,
		ModelReply:       result.Text,
		LatencyMs:        time.Since(start).Milliseconds(),
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		TotalTokens:      result.TotalTokens,
		QueryVectorHead:  headOf(queryVec, 8),
	})

	if !result.Success {
		return errors.NewNetworkError("generation failed", "model gateway exhausted its retries", "retry shortly", nil)
	}
	return c.JSONPretty(http.StatusOK, map[string]string{"suggestion": result.Text}, "  ")
}

func buildSuggestionPrompt(prompt, activeFilePath, packedContext, contextBlock string) string {
	var b []byte
	b = append(b, packedContext...)
	b = append(b, "\n\n### RELATED CODE\n"...)
	b = append(b, contextBlock...)
	b = append(b, "\n\n### TASK\n"...)
	b = append(b, prompt...)
	if activeFilePath != "" {
		b = append(b, fmt.Sprintf("\n\n### ACTIVE FILE: %s\n", activeFilePath)...)
	}
	return string(b)
}

type retrieveCandidatesRequest struct {
	ProjectID string `json:"project_id"`
	Prompt    string `json:"prompt"`
}

type candidateJSON struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	FilePath  string  `json:"file_path"`
	Type      string  `json:"type"`
	Score     float64 `json:"score"`
	AISummary string  `json:"ai_summary,omitempty"`
}

func (a *App) handleRetrieveCandidates(c echo.Context) error {
	ctx := c.Request().Context()
	var req retrieveCandidatesRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewInputError("invalid request body", err.Error(), "send {project_id, prompt}")
	}
	if req.ProjectID == "" || req.Prompt == "" {
		return errors.NewInputError("project_id and prompt are required", "", "include both fields in the request body")
	}

	if _, err := a.getProject(req.ProjectID); err != nil {
		return err
	}

	queryVec, err := a.gw.Embed(ctx, req.Prompt)
	if err != nil {
		return errors.NewNetworkError("embedding failed", err.Error(), "retry once the model provider recovers", err)
	}

	candidates := retrieval.Retrieve(a.sync.Store(req.ProjectID), queryVec, retrievalMaxNodes, true)
	out := make([]candidateJSON, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, candidateJSON{
			ID:        cand.Node.ID,
			Name:      cand.Node.Name,
			FilePath:  cand.Node.FilePath,
			Type:      string(cand.Node.Type),
			Score:     cand.FinalScore,
			AISummary: cand.Node.AISummary,
		})
	}

	return c.JSONPretty(http.StatusOK, map[string]any{"candidates": out}, "  ")
}

type completeRequest struct {
	Prefix string `json:"prefix"`
	Suffix string `json:"suffix"`
}

func (a *App) handleComplete(c echo.Context) error {
	ctx := c.Request().Context()
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return errors.NewInputError("invalid request body", err.Error(), "send {prefix, suffix?}")
	}
	if req.Prefix == "" {
		return errors.NewInputError("prefix is required", "", "include a prefix field")
	}

	prefix := req.Prefix
	if req.Suffix != "" {
		prefix = req.Prefix + "\n/* completion must connect to the following code */\n" + req.Suffix
	}

	completion := a.gw.Autocomplete(ctx, prefix)
	return c.JSONPretty(http.StatusOK, map[string]string{"completion": completion}, "  ")
}

func headOf(v []float32, n int) []float32 {
	if len(v) <= n {
		return v
	}
	return v[:n]
}

func readSideOutput(storageDir, name string) string {
	data, err := os.ReadFile(filepath.Join(storageDir, name))
	if err != nil {
		return ""
	}
	return string(data)
}
