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

package toolbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const serperEndpoint = "https://google.serper.dev/search"

// WebSearchTool forwards queries to an external search provider keyed by
// the secondary (Serper) credential.
type WebSearchTool struct {
	KeyFn  func() string
	Client *http.Client
}

// NewWebSearchTool builds a web_search tool. keyFn is consulted on every
// call so key rotation in the pool is observed without re-wiring.
func NewWebSearchTool(keyFn func() string) *WebSearchTool {
	return &WebSearchTool{KeyFn: keyFn, Client: &http.Client{Timeout: 15 * time.Second}}
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web for up-to-date information." }
func (t *WebSearchTool) Schema() string {
	return `{"type":"object","properties":{"query":{"type":"string"}},"required":["query"]}`
}

type serperRequest struct {
	Q string `json:"q"`
}

type serperOrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type serperResponse struct {
	Organic []serperOrganicResult `json:"organic"`
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) string {
	query, _ := args["query"].(string)
	if query == "" {
		return "ERROR: query is required."
	}

	key := ""
	if t.KeyFn != nil {
		key = t.KeyFn()
	}
	if key == "" {
		return "ERROR: web_search is not configured."
	}

	body, err := json.Marshal(serperRequest{Q: query})
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serperEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	req.Header.Set("X-API-KEY", key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("ERROR: search provider returned status %d", resp.StatusCode)
	}

	var parsed serperResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if len(parsed.Organic) == 0 {
		return "No results found for: " + query
	}

	var b strings.Builder
	for i, r := range parsed.Organic {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%d. %s - %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return b.String()
}
