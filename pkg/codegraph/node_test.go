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

package codegraph

import "testing"

func TestNewFileNodeDefaults(t *testing.T) {
	n := NewFileNode("pkg/a.go", "package a", []string{"fmt"})

	if n.ID != "pkg/a.go" || n.Name != "pkg/a.go" {
		t.Fatalf("expected file node id/name to equal the path, got %q/%q", n.ID, n.Name)
	}
	if n.Type != NodeFile {
		t.Errorf("expected NodeFile, got %v", n.Type)
	}
	if len(n.Embedding) != 0 {
		t.Errorf("expected a pending file node to carry an empty embedding, got %v", n.Embedding)
	}
	if n.Structural() != 1.0 {
		t.Errorf("expected a whole file to carry structural weight 1.0, got %v", n.Structural())
	}
}

func TestBlockIDJoinsPathAndSymbol(t *testing.T) {
	if got := BlockID("pkg/a.go", "Foo"); got != "pkg/a.go::Foo" {
		t.Errorf("unexpected block id: %q", got)
	}
}

func TestStructuralDefaultsToZeroWhenUnset(t *testing.T) {
	n := &CodeNode{}
	if n.Structural() != 0 {
		t.Errorf("expected zero-value weights map to yield structural 0, got %v", n.Structural())
	}
}
