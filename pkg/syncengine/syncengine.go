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

// Package syncengine walks a project tree under the filtering rules,
// diffs it against the prior manifest, parses and embeds changed files,
// and rebuilds the project's vector store plus its human-readable side
// outputs (tree.txt, _full_context.txt, converted_files mirrors).
package syncengine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kraklabs/cie-core/pkg/codegraph"
	"github.com/kraklabs/cie-core/pkg/parser"
	"github.com/kraklabs/cie-core/pkg/vectorstore"
)

// embedBatchSize is the slice size used when embedding pending nodes.
const embedBatchSize = 50

// Gateway is the narrow slice of pkg/gateway.Gateway the sync engine needs.
type Gateway interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Config parameterizes one perform_sync call.
type Config struct {
	ProjectID         string
	SourceDir         string
	StorageDir        string
	AllowedExtensions []string
	IgnoredPaths      []string
	IncludedPaths     []string
}

// Result is perform_sync's/sync_single_file's outcome.
type Result struct {
	Nodes        []*codegraph.CodeNode
	UpdatedCount int
	DeletedCount int
	Logs         []string
}

// Engine runs syncs, serializing at most one per project at a time.
type Engine struct {
	gateway Gateway
	logger  *slog.Logger

	mu       sync.Mutex
	projLock map[string]*sync.Mutex

	storeMu sync.Mutex
	stores  map[string]*vectorstore.Store
}

// New builds a sync engine backed by gw.
func New(gw Gateway, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		gateway:  gw,
		logger:   logger,
		projLock: make(map[string]*sync.Mutex),
		stores:   make(map[string]*vectorstore.Store),
	}
}

func (e *Engine) lockFor(projectID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.projLock[projectID]
	if !ok {
		l = &sync.Mutex{}
		e.projLock[projectID] = l
	}
	return l
}

// Store returns the in-memory vector store currently held for projectID,
// building an empty one if none exists yet.
func (e *Engine) Store(projectID string) *vectorstore.Store {
	e.storeMu.Lock()
	defer e.storeMu.Unlock()
	s, ok := e.stores[projectID]
	if !ok {
		s = vectorstore.New()
		e.stores[projectID] = s
	}
	return s
}

// PerformSync runs a full project sync. It serializes with any other
// PerformSync/SyncSingleFile call for the same project; distinct projects
// run concurrently.
func (e *Engine) PerformSync(ctx context.Context, cfg Config) (Result, error) {
	lock := e.lockFor(cfg.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	var logs []string
	log := func(format string, args ...any) {
		logs = append(logs, fmt.Sprintf(format, args...))
	}

	filter := NewFilter(cfg.AllowedExtensions, cfg.IgnoredPaths, cfg.IncludedPaths)
	collected, err := walk(cfg.SourceDir, cfg.StorageDir, filter)
	if err != nil {
		return Result{}, fmt.Errorf("syncengine: walk: %w", err)
	}
	log("collected %d files under %s", len(collected), cfg.SourceDir)

	oldManifest := loadManifest(cfg.StorageDir)
	prevStore, _ := vectorstore.Load(vectorStoreDir(cfg.StorageDir)) // best-effort; absent on first sync

	newManifest := make(Manifest, len(collected))
	var allNodes []*codegraph.CodeNode
	var pending []*codegraph.CodeNode
	updated, deleted := 0, 0

	for _, relPath := range collected {
		abs := filepath.Join(cfg.SourceDir, relPath)
		info, err := os.Stat(abs)
		if err != nil {
			log("skip %s: %v", relPath, err)
			continue
		}
		fp := fingerprint(info.Size(), info.ModTime().UnixNano())

		if old, ok := oldManifest[relPath]; ok && old.Fingerprint == fp {
			if nodes, ok := recoverNodes(prevStore, old.NodeIDs); ok {
				allNodes = append(allNodes, nodes...)
				newManifest[relPath] = old
				continue
			}
			log("recovery miss for unchanged %s, re-parsing", relPath)
		} else {
			updated++
		}

		content, err := os.ReadFile(abs)
		if err != nil {
			log("skip %s: %v", relPath, err)
			continue
		}
		nodes := parser.Parse(relPath, string(content))
		allNodes = append(allNodes, nodes...)
		pending = append(pending, nodes...)

		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		newManifest[relPath] = ManifestEntry{Fingerprint: fp, NodeIDs: ids}
	}

	for relPath := range oldManifest {
		if _, ok := newManifest[relPath]; !ok {
			deleted++
		}
	}

	if err := embedPending(ctx, e.gateway, pending); err != nil {
		log("embedding error: %v", err)
	}

	store := vectorstore.New()
	store.Add(allNodes)

	if err := store.Save(vectorStoreDir(cfg.StorageDir)); err != nil {
		return Result{}, fmt.Errorf("syncengine: save store: %w", err)
	}
	if err := saveManifest(cfg.StorageDir, newManifest); err != nil {
		return Result{}, fmt.Errorf("syncengine: save manifest: %w", err)
	}
	if err := writeSideOutputs(cfg.SourceDir, cfg.StorageDir, collected); err != nil {
		log("side outputs error: %v", err)
	}

	e.storeMu.Lock()
	e.stores[cfg.ProjectID] = store
	e.storeMu.Unlock()

	log("sync complete: %d updated, %d deleted, %d total nodes", updated, deleted, len(allNodes))
	return Result{Nodes: allNodes, UpdatedCount: updated, DeletedCount: deleted, Logs: logs}, nil
}

// SyncSingleFile is the incremental variant: parse, embed, and upsert one
// file into the live vector store without a full tree walk.
func (e *Engine) SyncSingleFile(ctx context.Context, cfg Config, relPath string) (Result, error) {
	lock := e.lockFor(cfg.ProjectID)
	lock.Lock()
	defer lock.Unlock()

	abs := filepath.Join(cfg.SourceDir, relPath)
	content, err := os.ReadFile(abs)
	if err != nil {
		return Result{}, fmt.Errorf("syncengine: read %s: %w", relPath, err)
	}

	nodes := parser.Parse(relPath, string(content))
	if err := embedPending(ctx, e.gateway, nodes); err != nil {
		return Result{Nodes: nodes, UpdatedCount: 1, Logs: []string{err.Error()}}, nil
	}

	store := e.Store(cfg.ProjectID)
	store.Add(nodes)

	manifest := loadManifest(cfg.StorageDir)
	info, statErr := os.Stat(abs)
	if statErr == nil {
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		manifest[relPath] = ManifestEntry{Fingerprint: fingerprint(info.Size(), info.ModTime().UnixNano()), NodeIDs: ids}
		_ = saveManifest(cfg.StorageDir, manifest)
	}

	if err := writeMirror(cfg.SourceDir, cfg.StorageDir, relPath); err != nil {
		e.logger.Warn("syncengine.mirror.failed", "path", relPath, "err", err)
	}

	return Result{Nodes: nodes, UpdatedCount: 1}, nil
}

// recoverNodes looks up previously-persisted nodes by id in prevStore.
func recoverNodes(prevStore *vectorstore.Store, ids []string) ([]*codegraph.CodeNode, bool) {
	if prevStore == nil || len(ids) == 0 {
		return nil, false
	}
	nodes := make([]*codegraph.CodeNode, 0, len(ids))
	for _, id := range ids {
		n, ok := prevStore.GetByID(id)
		if !ok {
			return nil, false
		}
		nodes = append(nodes, n)
	}
	return nodes, true
}

// embedPending fills in Embedding for every node with one, in batches of
// embedBatchSize, skipping nodes that already carry an embedding.
func embedPending(ctx context.Context, gw Gateway, nodes []*codegraph.CodeNode) error {
	var need []*codegraph.CodeNode
	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			need = append(need, n)
		}
	}

	var firstErr error
	for start := 0; start < len(need); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(need) {
			end = len(need)
		}
		batch := need[start:end]
		texts := make([]string, len(batch))
		for i, n := range batch {
			texts[i] = n.Content
		}
		vectors, err := gw.EmbedBatch(ctx, texts)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		for i, v := range vectors {
			if len(v) > 0 {
				batch[i].Embedding = v
			}
		}
	}
	return firstErr
}

// walk returns every collected workspace-relative path under sourceDir,
// obeying filter and always skipping storageDir.
func walk(sourceDir, storageDir string, filter *Filter) ([]string, error) {
	absStorage, _ := filepath.Abs(storageDir)
	var collected []string

	var visit func(dir, relDir string) error
	visit = func(dir, relDir string) error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			abs := filepath.Join(dir, entry.Name())
			rel := entry.Name()
			if relDir != "" {
				rel = relDir + "/" + entry.Name()
			}

			if absEntry, err := filepath.Abs(abs); err == nil && absEntry == absStorage {
				continue
			}

			if entry.IsDir() {
				if !filter.entersDir(rel) {
					continue
				}
				if err := visit(abs, rel); err != nil {
					return err
				}
				continue
			}

			if filter.collectsFile(rel) {
				collected = append(collected, filepath.ToSlash(rel))
			}
		}
		return nil
	}

	if err := visit(sourceDir, ""); err != nil {
		return nil, err
	}
	sort.Strings(collected)
	return collected, nil
}

const convertedFilesDir = "converted_files"

func vectorStoreDir(storageDir string) string {
	return filepath.Join(storageDir, "vector_store")
}

// writeSideOutputs rewrites tree.txt, _full_context.txt and the
// converted_files mirrors for every collected path.
func writeSideOutputs(sourceDir, storageDir string, collected []string) error {
	if err := os.WriteFile(filepath.Join(storageDir, "tree.txt"), []byte(renderTree(collected)), 0o644); err != nil {
		return err
	}

	var full strings.Builder
	for _, rel := range collected {
		data, err := os.ReadFile(filepath.Join(sourceDir, rel))
		if err != nil {
			continue
		}
		fmt.Fprintf(&full, "--- FILE: %s ---\n%s\n", rel, data)
	}
	if err := os.WriteFile(filepath.Join(storageDir, "_full_context.txt"), []byte(full.String()), 0o644); err != nil {
		return err
	}

	for _, rel := range collected {
		if err := writeMirror(sourceDir, storageDir, rel); err != nil {
			return err
		}
	}
	return nil
}

func writeMirror(sourceDir, storageDir, relPath string) error {
	data, err := os.ReadFile(filepath.Join(sourceDir, relPath))
	if err != nil {
		return err
	}
	dest := filepath.Join(storageDir, convertedFilesDir, relPath+".txt")
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dest, data, 0o644)
}
