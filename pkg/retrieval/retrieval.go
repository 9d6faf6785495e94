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

// Package retrieval runs the seed/expand/score/sort pipeline over a
// vector store and assembles the hierarchical context blob handed to the
// model gateway.
package retrieval

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kraklabs/cie-core/pkg/codegraph"
	"github.com/kraklabs/cie-core/pkg/vectorstore"
)

// byShortName indexes every node in store by both its declared Name and,
// for whole-file nodes, the extension-stripped basename of its path (so a
// dependency token like "a" resolves to the file node for "a.py").
type byShortName map[string][]*codegraph.CodeNode

func buildShortNameIndex(store *vectorstore.Store) byShortName {
	idx := make(byShortName)
	add := func(key string, n *codegraph.CodeNode) {
		if key == "" {
			return
		}
		idx[key] = append(idx[key], n)
	}
	for _, n := range store.All() {
		add(n.Name, n)
		if n.Type == codegraph.NodeFile {
			add(fileBasename(n.FilePath), n)
		}
	}
	return idx
}

func fileBasename(path string) string {
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

const (
	seedSize      = 200
	maxHops       = 3
	alpha         = 0.5
	visitedCapMul = 4 // internal visited-set cap is a generous multiple of max_nodes
)

// Candidate is a transient scored node surfaced during retrieval.
type Candidate struct {
	Node        *codegraph.CodeNode
	GraphScore  float64
	FinalScore  float64
	HopDistance int

	order int // insertion order into the visited set, for deterministic tie-breaking
}

// Retrieve runs seed → expand → score → sort over store, returning at most
// maxNodes candidates.
func Retrieve(store *vectorstore.Store, queryEmbedding []float32, maxNodes int, useGraph bool) []Candidate {
	if maxNodes <= 0 {
		return nil
	}

	visited := make(map[string]*Candidate)
	order := make([]string, 0, seedSize)

	seed := func(id string, c *Candidate) {
		if _, ok := visited[id]; ok {
			return
		}
		c.order = len(order)
		visited[id] = c
		order = append(order, id)
	}

	for _, hit := range store.Search(queryEmbedding, seedSize) {
		if hit.Node == nil {
			continue
		}
		seed(hit.Node.ID, &Candidate{
			Node:        hit.Node,
			GraphScore:  hit.Score,
			HopDistance: 0,
		})
	}

	if useGraph {
		expand(buildShortNameIndex(store), visited, order, maxNodes)
	}

	out := make([]Candidate, 0, len(visited))
	for _, c := range visited {
		c.FinalScore = score(c)
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].order < out[j].order
	})

	if len(out) > maxNodes {
		out = out[:maxNodes]
	}
	return out
}

func score(c *Candidate) float64 {
	structural := 0.0
	if c.Node.Weights != nil {
		structural = c.Node.Weights["structural"]
	}
	return c.GraphScore * (0.8 + 0.2*structural)
}

// expand performs breadth-first dependency-token resolution, adding newly
// discovered candidates to visited in place; each child's order field
// records its insertion position for tie-breaking.
func expand(names byShortName, visited map[string]*Candidate, order []string, maxNodes int) {
	visitedCap := maxNodes * visitedCapMul
	if visitedCap < seedSize {
		visitedCap = seedSize
	}

	frontier := make([]*Candidate, 0, len(order))
	for _, id := range order {
		frontier = append(frontier, visited[id])
	}

	for hop := 1; hop <= maxHops && len(visited) < visitedCap; hop++ {
		var next []*Candidate
		for _, parent := range frontier {
			if parent.HopDistance != hop-1 {
				continue
			}
			for _, dep := range parent.Node.Dependencies {
				if len(visited) >= visitedCap {
					break
				}
				matches := names[dep]
				for _, match := range matches {
					if _, seen := visited[match.ID]; seen {
						continue
					}
					child := &Candidate{
						Node:        match,
						HopDistance: hop,
						GraphScore:  parent.GraphScore * math.Exp(-alpha*float64(hop)),
						order:       len(visited),
					}
					visited[match.ID] = child
					next = append(next, child)
				}
			}
		}
		frontier = append(frontier, next...)
	}
}

const ruleLine = "----------------------------------------"

// BuildHierarchicalContext concatenates candidate blocks, emitting each
// file at most once, halting before exceeding maxChars.
func BuildHierarchicalContext(candidates []Candidate, maxChars int) string {
	seenFiles := make(map[string]bool)
	var b strings.Builder

	for _, c := range candidates {
		if seenFiles[c.Node.FilePath] {
			continue
		}
		block := fmt.Sprintf("# FILE: %s | NODE: %s (Type: %s)\n%s\n%s\n%s\n",
			c.Node.FilePath, c.Node.Name, c.Node.Type, ruleLine, c.Node.Content, ruleLine)

		if b.Len()+len(block) > maxChars {
			break
		}
		b.WriteString(block)
		seenFiles[c.Node.FilePath] = true
	}
	return b.String()
}
