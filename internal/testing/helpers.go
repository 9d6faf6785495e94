// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package testing

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kraklabs/cie-core/pkg/codegraph"
)

// WriteTempProject materializes files (relative path -> content) under a
// fresh temporary directory and returns its root. Parent directories are
// created as needed.
func WriteTempProject(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(full), err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", full, err)
		}
	}
	return root
}

// NewTestNode builds a CodeNode fixture with a deterministic, already
// unit-norm embedding of the requested dimension.
func NewTestNode(id, name, filePath string, nodeType codegraph.NodeType, dims int, deps ...string) *codegraph.CodeNode {
	return &codegraph.CodeNode{
		ID:           id,
		Name:         name,
		Content:      "// fixture body for " + name,
		FilePath:     filePath,
		Type:         nodeType,
		Dependencies: deps,
		Embedding:    UnitVector(dims, seedFromString(id)),
		Weights:      map[string]float64{"structural": 0.5},
	}
}

// UnitVector returns a deterministic L2-normalized vector of length dims,
// seeded from seed so distinct seeds produce distinct directions.
func UnitVector(dims int, seed int) []float32 {
	v := make([]float32, dims)
	var sumSq float64
	for i := range v {
		x := math.Sin(float64(seed+1) * float64(i+1))
		v[i] = float32(x)
		sumSq += x * x
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		norm = 1
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func seedFromString(s string) int {
	h := 0
	for _, r := range s {
		h = h*31 + int(r)
	}
	if h < 0 {
		h = -h
	}
	return h
}
