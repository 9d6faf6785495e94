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

package vectorstore

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/kraklabs/cie-core/pkg/codegraph"
)

const (
	indexFileName    = "faiss.index"
	metadataFileName = "metadata.json"
)

// Store wraps an HNSW index with the ordered sequence of CodeNodes it
// indexes, plus the two side maps the spec requires: internal id -> node,
// and node.id -> internal id.
type Store struct {
	mu sync.RWMutex

	index *Index
	byPos map[int]*codegraph.CodeNode
	byID  map[string]int
}

// New creates an empty store with the spec's default HNSW parameters.
func New() *Store {
	return &Store{
		index: NewIndex(DefaultM, DefaultEfConstruction, DefaultEfSearch),
		byPos: make(map[int]*codegraph.CodeNode),
		byID:  make(map[string]int),
	}
}

// Add inserts nodes into the store. Nodes with an empty embedding are
// skipped (pending embedding); every other embedding is L2-normalized in
// place before insertion so callers need not pre-normalize.
func (s *Store) Add(nodes []*codegraph.CodeNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range nodes {
		if len(n.Embedding) == 0 {
			continue
		}
		normalize(n.Embedding)
		pos := s.index.Insert(n.Embedding)
		s.byPos[pos] = n
		s.byID[n.ID] = pos
	}
}

// normalize L2-normalizes v in place. A zero vector is left unchanged.
func normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return
	}
	norm := math.Sqrt(sumSq)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// Hit pairs a node with its similarity score.
type Hit struct {
	Node  *codegraph.CodeNode
	Score float64
}

// Search returns up to k nearest neighbors of query (normalized internally;
// callers need not pre-normalize).
func (s *Store) Search(query []float32, k int) []Hit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalize(normalized)

	results := s.index.Search(normalized, k)
	out := make([]Hit, 0, len(results))
	for _, r := range results {
		if node, ok := s.byPos[r.NodeID]; ok {
			out = append(out, Hit{Node: node, Score: r.Score})
		}
	}
	return out
}

// GetByID returns the node with the given id, if present.
func (s *Store) GetByID(id string) (*codegraph.CodeNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return s.byPos[pos], true
}

// GetByName returns every node whose Name matches exactly.
func (s *Store) GetByName(name string) []*codegraph.CodeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*codegraph.CodeNode
	for _, n := range s.byPos {
		if n.Name == name {
			out = append(out, n)
		}
	}
	return out
}

// All returns every indexed node, in arbitrary order.
func (s *Store) All() []*codegraph.CodeNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*codegraph.CodeNode, 0, len(s.byPos))
	for _, n := range s.byPos {
		out = append(out, n)
	}
	return out
}

// Len returns the number of indexed nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPos)
}

// persistedIndex is the gob-encoded shape of the HNSW graph.
type persistedIndex struct {
	M              int
	Mmax0          int
	EfConstruction int
	EfSearch       int
	EntryPoint     int
	MaxLevel       int
	NextID         int
	Nodes          map[int]*hnswNode
}

// Save persists the ANN graph as a gob binary and the node metadata as
// indented JSON directly under dir (callers pass their project's
// vector_store/ directory).
func (s *Store) Save(dir string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("vectorstore: mkdir: %w", err)
	}

	idxFile, err := os.Create(filepath.Join(dir, indexFileName))
	if err != nil {
		return fmt.Errorf("vectorstore: create index file: %w", err)
	}
	defer idxFile.Close()

	p := persistedIndex{
		M:              s.index.M,
		Mmax0:          s.index.Mmax0,
		EfConstruction: s.index.EfConstruction,
		EfSearch:       s.index.EfSearch,
		EntryPoint:     s.index.EntryPoint,
		MaxLevel:       s.index.MaxLevel,
		NextID:         s.index.nextID,
		Nodes:          s.index.Nodes,
	}
	if err := gob.NewEncoder(idxFile).Encode(p); err != nil {
		return fmt.Errorf("vectorstore: encode index: %w", err)
	}

	metaFile, err := os.Create(filepath.Join(dir, metadataFileName))
	if err != nil {
		return fmt.Errorf("vectorstore: create metadata file: %w", err)
	}
	defer metaFile.Close()

	meta := make(map[string]nodeRecord, len(s.byPos))
	for pos, node := range s.byPos {
		meta[fmt.Sprint(pos)] = nodeRecord{Position: pos, Node: node}
	}
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("vectorstore: encode metadata: %w", err)
	}
	return nil
}

type nodeRecord struct {
	Position int                `json:"position"`
	Node     *codegraph.CodeNode `json:"node"`
}

// Load restores a previously-saved store directly from dir (a project's
// vector_store/ directory). A missing or corrupt file yields a nil store
// and a non-nil error.
func Load(dir string) (*Store, error) {
	idxFile, err := os.Open(filepath.Join(dir, indexFileName))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open index file: %w", err)
	}
	defer idxFile.Close()

	var p persistedIndex
	if err := gob.NewDecoder(idxFile).Decode(&p); err != nil {
		return nil, fmt.Errorf("vectorstore: decode index: %w", err)
	}

	metaFile, err := os.Open(filepath.Join(dir, metadataFileName))
	if err != nil {
		return nil, fmt.Errorf("vectorstore: open metadata file: %w", err)
	}
	defer metaFile.Close()

	var meta map[string]nodeRecord
	if err := json.NewDecoder(metaFile).Decode(&meta); err != nil {
		return nil, fmt.Errorf("vectorstore: decode metadata: %w", err)
	}

	idx := &Index{
		M:              p.M,
		Mmax0:          p.Mmax0,
		EfConstruction: p.EfConstruction,
		EfSearch:       p.EfSearch,
		levelMult:      1.0 / math.Log(float64(p.M)),
		Nodes:          p.Nodes,
		EntryPoint:     p.EntryPoint,
		MaxLevel:       p.MaxLevel,
		nextID:         p.NextID,
	}
	idx.rng = newDeterministicRNG()

	s := &Store{
		index: idx,
		byPos: make(map[int]*codegraph.CodeNode),
		byID:  make(map[string]int),
	}
	for _, rec := range meta {
		s.byPos[rec.Position] = rec.Node
		s.byID[rec.Node.ID] = rec.Position
	}
	return s, nil
}
