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

// Command cied is the Code Intelligence Engine daemon: a single
// long-running HTTP/WebSocket server with no subcommands. Configuration
// comes from flags and a JSON keys file; there is nothing to index or
// query from the command line — that happens over the wire.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/kraklabs/cie-core/internal/server"
	"github.com/kraklabs/cie-core/internal/ui"
	"github.com/kraklabs/cie-core/pkg/embedcache"
	"github.com/kraklabs/cie-core/pkg/gateway"
	"github.com/kraklabs/cie-core/pkg/keypool"
	"github.com/kraklabs/cie-core/pkg/llm"
	"github.com/kraklabs/cie-core/pkg/syncengine"
	"github.com/kraklabs/cie-core/pkg/telemetry"
)

// Version information, set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion  = pflag.Bool("version", false, "Show version and exit")
		addr         = pflag.String("addr", ":8080", "HTTP/WebSocket listen address")
		dataDir      = pflag.String("data-dir", defaultDataDir(), "Base directory for per-project storage")
		keysPath     = pflag.String("keys", defaultKeysPath(), "Path to the JSON model-credentials file")
		assetsDir    = pflag.String("assets", "", "Static asset directory required to exist at startup (empty disables the check)")
		llmProvider  = pflag.String("llm-provider", "ollama", "Text generation provider: ollama, openai, anthropic, mock")
		llmBaseURL   = pflag.String("llm-base-url", "", "Base URL for the text provider (defaults per-provider)")
		llmAPIKey    = pflag.String("llm-api-key", "", "API key for the text provider, if required")
		llmModel     = pflag.String("llm-model", "", "Default model name for the text provider")
		embedBaseURL = pflag.String("embed-base-url", "", "Base URL for the Ollama embedding endpoint")
		embedModel   = pflag.String("embed-model", "nomic-embed-text", "Embedding model name")
		embedDim     = pflag.Int("embed-dim", 768, "Embedding vector dimension")
		noColor      = pflag.Bool("no-color", false, "Disable colored startup banner")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, `cied - Code Intelligence Engine daemon

Usage:
  cied [options]

A single long-running server; there are no subcommands. Register a
project, trigger syncs, and run missions over the HTTP/WebSocket surface
documented in the project's API reference.

Options:
`)
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *showVersion {
		fmt.Printf("cied version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	ui.InitColors(*noColor)
	ui.Header("cied " + version)
	ui.Infof("data dir: %s", ui.DimText(*dataDir))

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *assetsDir != "" {
		if info, err := os.Stat(*assetsDir); err != nil || !info.IsDir() {
			ui.Errorf("missing static asset directory: %s", *assetsDir)
			logger.Error("cied.preflight.missing_assets", "path", *assetsDir)
			os.Exit(1)
		}
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		ui.Errorf("cannot create data dir: %v", err)
		logger.Error("cied.preflight.data_dir", "path", *dataDir, "err", err)
		os.Exit(1)
	}

	keys := keypool.Load(*keysPath, logger)

	text, err := llm.NewProvider(llm.ProviderConfig{
		Type:         *llmProvider,
		BaseURL:      *llmBaseURL,
		APIKey:       *llmAPIKey,
		DefaultModel: *llmModel,
	})
	if err != nil {
		logger.Error("cied.preflight.llm_provider", "err", err)
		os.Exit(1)
	}

	embedder := gateway.NewOllamaEmbedder(*embedBaseURL, *embedModel, *embedDim, 30*time.Second)
	cache := embedcache.New(10_000)
	sink := telemetry.New(telemetry.DefaultCap)

	gw := gateway.New(text, embedder, keys, cache,
		gateway.WithTelemetry(sink),
		gateway.WithLogger(logger),
	)

	syncEngine := syncengine.New(gw, logger)
	app := server.New(logger, keys, gw, syncEngine, sink, *dataDir)

	srv := &http.Server{Addr: *addr, Handler: app.Echo()}

	go func() {
		ui.Successf("listening on %s", *addr)
		logger.Info("cied.listen", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("cied.serve.failed", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("cied.shutdown.start")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("cied.shutdown.failed", "err", err)
		os.Exit(1)
	}
	logger.Info("cied.shutdown.complete")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cie-core/projects"
	}
	return filepath.Join(home, ".cie-core", "projects")
}

func defaultKeysPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cie-core/keys.json"
	}
	return filepath.Join(home, ".cie-core", "keys.json")
}
