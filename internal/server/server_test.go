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
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cie-core/pkg/embedcache"
	"github.com/kraklabs/cie-core/pkg/gateway"
	"github.com/kraklabs/cie-core/pkg/keypool"
	"github.com/kraklabs/cie-core/pkg/llm"
	"github.com/kraklabs/cie-core/pkg/syncengine"
	"github.com/kraklabs/cie-core/pkg/telemetry"
)

type fixedEmbedder struct{ dim int }

func (f fixedEmbedder) Dimension() int { return f.dim }
func (f fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dim)
	v[0] = 1
	return v, nil
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	baseDir := t.TempDir()
	gw := gateway.New(&llm.MockProvider{}, fixedEmbedder{dim: 8}, keypool.New([]string{"k1"}, "serper-key"), embedcache.New(100))
	syncEng := syncengine.New(gw, nil)
	sink := telemetry.New(100)
	return New(nil, keypool.New([]string{"k1"}, "serper-key"), gw, syncEng, sink, baseDir), baseDir
}

func writeSourceProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\nfunc main() {}\n"), 0o644))
	return dir
}

func TestRegisterProjectPersistsConfig(t *testing.T) {
	app, baseDir := newTestApp(t)
	e := app.Echo()
	source := writeSourceProject(t)

	body := `{"local_path":"` + source + `","allowed_extensions":["go"]}`
	req := httptest.NewRequest(http.MethodPost, "/sync/register/proj1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	_, err := os.Stat(filepath.Join(baseDir, "proj1", "config.json"))
	assert.NoError(t, err)
}

func TestListProjectsIncludesRegistered(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()
	source := writeSourceProject(t)

	regBody := `{"local_path":"` + source + `","allowed_extensions":["go"]}`
	regReq := httptest.NewRequest(http.MethodPost, "/sync/register/proj-list", strings.NewReader(regBody))
	regReq.Header.Set("Content-Type", "application/json")
	regRec := httptest.NewRecorder()
	e.ServeHTTP(regRec, regReq)
	require.Equal(t, http.StatusOK, regRec.Code)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "proj-list")
}

func TestSyncRunRespondsImmediately(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()
	source := writeSourceProject(t)

	regBody := `{"local_path":"` + source + `","allowed_extensions":["go"]}`
	regReq := httptest.NewRequest(http.MethodPost, "/sync/register/proj2", strings.NewReader(regBody))
	regReq.Header.Set("Content-Type", "application/json")
	regRec := httptest.NewRecorder()
	e.ServeHTTP(regRec, regReq)
	require.Equal(t, http.StatusOK, regRec.Code)

	runReq := httptest.NewRequest(http.MethodPost, "/sync/run/proj2", nil)
	runRec := httptest.NewRecorder()
	e.ServeHTTP(runRec, runReq)
	assert.Equal(t, http.StatusAccepted, runRec.Code)
}

func TestSyncFileRejectsStoragePath(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()
	source := writeSourceProject(t)

	regBody := `{"local_path":"` + source + `","allowed_extensions":["go"]}`
	regReq := httptest.NewRequest(http.MethodPost, "/sync/register/proj3", strings.NewReader(regBody))
	regReq.Header.Set("Content-Type", "application/json")
	regRec := httptest.NewRecorder()
	e.ServeHTTP(regRec, regReq)
	require.Equal(t, http.StatusOK, regRec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sync/file/proj3", strings.NewReader(`{"file_path":"x/.cie-core/manifest.json"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSuggestionUnknownProjectReturns404(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()

	req := httptest.NewRequest(http.MethodPost, "/generate-code-suggestion", strings.NewReader(`{"project_id":"ghost","prompt":"add a test"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCompleteReturnsCompletion(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()

	req := httptest.NewRequest(http.MethodPost, "/complete", strings.NewReader(`{"prefix":"func add(a, b int) int {"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "completion")
}

func TestTelemetryEndpointServesLogs(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()

	app.telemetry.RecordLog(telemetry.InteractionLog{ProjectID: "p1", UserQuery: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/api/admin/telemetry", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "\"hi\"")
}

func TestPublishTraceAccepted(t *testing.T) {
	app, _ := newTestApp(t)
	e := app.Echo()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/publish_trace", strings.NewReader(`{"session_id":"s1","state":"THOUGHT","detail":"thinking"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, app.telemetry.TracesJSON(), 1)
}
