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

// Package experience is a small ANN store of prior (prompt, solution,
// outcome) triples, consulted by the context manager and written by the
// agent executor on mission completion.
package experience

import (
	"fmt"
	"math"
	"sync"

	"github.com/kraklabs/cie-core/pkg/vectorstore"
)

// Outcome is the recorded result of a past mission.
type Outcome int

const (
	OutcomeFailure Outcome = -1
	OutcomeSuccess Outcome = 1
)

// Experience is one recalled (prompt, solution, outcome) record.
type Experience struct {
	Prompt   string
	Solution string
	Outcome  Outcome
}

const maxRecall = 3

// Vault is a thread-safe, in-memory ANN index over Experience records. It
// shares pkg/vectorstore's HNSW graph implementation directly (distinct
// from CodeNode indexing) rather than re-implementing ANN search.
type Vault struct {
	mu       sync.RWMutex
	index    *vectorstore.Index
	metadata map[int]Experience
}

// New creates an empty experience vault.
func New() *Vault {
	return &Vault{
		index:    vectorstore.NewIndex(vectorstore.DefaultM, vectorstore.DefaultEfConstruction, vectorstore.DefaultEfSearch),
		metadata: make(map[int]Experience),
	}
}

// Add appends a record. embedding is L2-normalized in place.
func (v *Vault) Add(prompt, solution string, embedding []float32, success bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}

	normalized := make([]float32, len(embedding))
	copy(normalized, embedding)
	normalizeInPlace(normalized)

	pos := v.index.Insert(normalized)
	v.metadata[pos] = Experience{Prompt: prompt, Solution: solution, Outcome: outcome}
}

// Recall returns up to 3 brief, formatted strings for the experiences
// nearest queryVec, tagged by whether they record a success or failure.
func (v *Vault) Recall(queryVec []float32) []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	normalized := make([]float32, len(queryVec))
	copy(normalized, queryVec)
	normalizeInPlace(normalized)

	hits := v.index.Search(normalized, maxRecall)
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		exp, ok := v.metadata[h.NodeID]
		if !ok {
			continue
		}
		out = append(out, format(exp))
	}
	return out
}

func format(exp Experience) string {
	tag := "FAILED ATTEMPT"
	if exp.Outcome == OutcomeSuccess {
		tag = "SUCCESSFUL STRATEGY"
	}
	return fmt.Sprintf("[%s] Context: %s\nResult: %s", tag, exp.Prompt, exp.Solution)
}

// Len returns the number of recorded experiences.
func (v *Vault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.metadata)
}

func normalizeInPlace(v []float32) {
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
