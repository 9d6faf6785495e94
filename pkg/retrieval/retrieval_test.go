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

package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/cie-core/pkg/codegraph"
	"github.com/kraklabs/cie-core/pkg/vectorstore"
)

func unitVec(dims, hot int) []float32 {
	v := make([]float32, dims)
	v[hot] = 1
	return v
}

func TestRetrieveSeedOnly(t *testing.T) {
	store := vectorstore.New()
	a := &codegraph.CodeNode{ID: "a.py", Name: "a.py", FilePath: "a.py", Type: codegraph.NodeFile,
		Embedding: unitVec(4, 0), Weights: map[string]float64{"structural": 1.0}}
	store.Add([]*codegraph.CodeNode{a})

	cands := Retrieve(store, unitVec(4, 0), 10, false)
	require.Len(t, cands, 1)
	assert.Equal(t, 0, cands[0].HopDistance)
	assert.InDelta(t, 1.0, cands[0].FinalScore, 1e-6)
}

func TestRetrieveExpandsByDependencyShortName(t *testing.T) {
	store := vectorstore.New()
	a := &codegraph.CodeNode{ID: "a.py", Name: "a.py", FilePath: "a.py", Type: codegraph.NodeFile,
		Embedding: unitVec(4, 1), Weights: map[string]float64{"structural": 1.0}}
	b := &codegraph.CodeNode{ID: "b.ts::y", Name: "y", FilePath: "b.ts", Type: codegraph.NodeFunction,
		Dependencies: []string{"a"}, Embedding: unitVec(4, 0), Weights: map[string]float64{"structural": 0.6}}
	store.Add([]*codegraph.CodeNode{a, b})

	cands := Retrieve(store, unitVec(4, 0), 10, true)
	require.True(t, len(cands) >= 1)

	var foundA bool
	for _, c := range cands {
		if c.Node.ID == "a.py" {
			foundA = true
			assert.Equal(t, 1, c.HopDistance)
		}
	}
	assert.True(t, foundA, "expected dependency-resolved a.py to be present")
}

func TestRetrieveSortedDescendingByFinalScore(t *testing.T) {
	store := vectorstore.New()
	hi := &codegraph.CodeNode{ID: "hi", Name: "hi", FilePath: "hi.go", Type: codegraph.NodeFile,
		Embedding: unitVec(4, 0), Weights: map[string]float64{"structural": 1.0}}
	lo := &codegraph.CodeNode{ID: "lo", Name: "lo", FilePath: "lo.go", Type: codegraph.NodeFile,
		Embedding: unitVec(4, 1), Weights: map[string]float64{"structural": 1.0}}
	store.Add([]*codegraph.CodeNode{hi, lo})

	cands := Retrieve(store, unitVec(4, 0), 10, false)
	require.Len(t, cands, 2)
	assert.GreaterOrEqual(t, cands[0].FinalScore, cands[1].FinalScore)
}

func TestRetrieveTruncatesToMaxNodes(t *testing.T) {
	store := vectorstore.New()
	var nodes []*codegraph.CodeNode
	for i := 0; i < 5; i++ {
		nodes = append(nodes, &codegraph.CodeNode{
			ID: string(rune('a' + i)), Name: string(rune('a' + i)), FilePath: string(rune('a'+i)) + ".go",
			Type: codegraph.NodeFile, Embedding: unitVec(5, i), Weights: map[string]float64{"structural": 1.0},
		})
	}
	store.Add(nodes)

	cands := Retrieve(store, unitVec(5, 0), 2, false)
	assert.Len(t, cands, 2)
}

func TestBuildHierarchicalContextEmitsFileOncePerFile(t *testing.T) {
	nodeA := &codegraph.CodeNode{ID: "a.go::F", Name: "F", FilePath: "a.go", Type: codegraph.NodeFunction, Content: "func F() {}"}
	nodeB := &codegraph.CodeNode{ID: "a.go::G", Name: "G", FilePath: "a.go", Type: codegraph.NodeFunction, Content: "func G() {}"}
	cands := []Candidate{{Node: nodeA, FinalScore: 1.0}, {Node: nodeB, FinalScore: 0.5}}

	out := BuildHierarchicalContext(cands, 10_000)
	assert.Contains(t, out, "func F() {}")
	assert.NotContains(t, out, "func G() {}")
}

func TestBuildHierarchicalContextRespectsMaxChars(t *testing.T) {
	nodeA := &codegraph.CodeNode{ID: "a.go", Name: "a.go", FilePath: "a.go", Type: codegraph.NodeFile, Content: "short"}
	nodeB := &codegraph.CodeNode{ID: "b.go", Name: "b.go", FilePath: "b.go", Type: codegraph.NodeFile, Content: "also short"}
	cands := []Candidate{{Node: nodeA, FinalScore: 1.0}, {Node: nodeB, FinalScore: 0.5}}

	out := BuildHierarchicalContext(cands, 1)
	assert.Empty(t, out)
}
