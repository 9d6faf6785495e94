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

// Package parser implements the coarse, polyglot brace-depth scanner that
// extracts declaration blocks and a file-level import set from raw text.
// Precise symbol resolution is explicitly out of scope: the retrieval
// engine tolerates noise via scoring, so one heuristic regex per supported
// language family would be over-engineering here.
package parser

import (
	"regexp"
	"strings"

	"github.com/kraklabs/cie-core/pkg/codegraph"
)

// declarationPattern recognizes a declaration header across the target
// language keywords and captures the identifier that follows.
var declarationPattern = regexp.MustCompile(
	`\b(class|struct|interface|async def|def|func|function|void|int|auto|const|let|var|export)\b\s+([A-Za-z_][A-Za-z0-9_]*)`)

// importSpecifierPattern extracts the quoted module specifier from an
// import line, e.g. import x from './a'; or import "fmt".
var importSpecifierPattern = regexp.MustCompile(`["']([^"']+)["']`)

// Parse runs the brace-depth scanner over text (the raw content of
// filePath, forward-slash workspace-relative) and returns every extracted
// CodeNode: zero or more declaration blocks plus exactly one whole-file
// node.
func Parse(filePath, text string) []*codegraph.CodeNode {
	deps := fileDependencies(text)
	nodes := scanBlocks(filePath, text, deps)
	nodes = append(nodes, codegraph.NewFileNode(filePath, text, deps))
	return nodes
}

// fileDependencies scans every "import " line for a quoted specifier and
// returns the de-duplicated basenames, in first-seen order.
func fileDependencies(text string) []string {
	seen := make(map[string]bool)
	var deps []string

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, "import ") {
			continue
		}
		m := importSpecifierPattern.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		base := basename(m[1])
		if base == "" || seen[base] {
			continue
		}
		seen[base] = true
		deps = append(deps, base)
	}
	return deps
}

// basename strips directory components and a trailing extension from a
// module specifier, e.g. "./pkg/a.ts" -> "a".
func basename(spec string) string {
	spec = strings.TrimSuffix(spec, "/")
	if idx := strings.LastIndex(spec, "/"); idx >= 0 {
		spec = spec[idx+1:]
	}
	if idx := strings.LastIndex(spec, "."); idx > 0 {
		spec = spec[:idx]
	}
	return spec
}

type blockState struct {
	name       string
	nodeType   codegraph.NodeType
	startLine  int
	braceDepth int
	buffer     []string
}

// scanBlocks implements the line-oriented brace-depth scan: a declaration
// header that also opens a brace on the same line starts buffering; lines
// accumulate until brace depth returns to zero.
func scanBlocks(filePath, text string, deps []string) []*codegraph.CodeNode {
	var nodes []*codegraph.CodeNode
	var current *blockState

	lines := strings.Split(text, "\n")
	for _, line := range lines {
		if current == nil {
			m := declarationPattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			opens := strings.Count(line, "{") - strings.Count(line, "}")
			if opens <= 0 {
				// Declaration without an opening brace on this line is not
				// a block per spec 4.4 ("once a declaration line also
				// opens a brace, buffer accumulates").
				continue
			}
			current = &blockState{
				name:       m[2],
				nodeType:   classify(m[1]),
				braceDepth: opens,
				buffer:     []string{line},
			}
			continue
		}

		current.buffer = append(current.buffer, line)
		current.braceDepth += strings.Count(line, "{") - strings.Count(line, "}")
		if current.braceDepth <= 0 {
			nodes = append(nodes, &codegraph.CodeNode{
				ID:           codegraph.BlockID(filePath, current.name),
				Name:         current.name,
				Content:      strings.Join(current.buffer, "\n"),
				FilePath:     filePath,
				Type:         current.nodeType,
				Dependencies: deps,
				Embedding:    []float32{},
				Weights:      map[string]float64{"structural": structuralWeight(current.nodeType)},
			})
			current = nil
		}
	}
	return nodes
}

// classify maps a declaration keyword to a CodeNode type. Keywords with no
// strong function/class signal (const, let, var, export) fall back to the
// generic code_block type; the retrieval engine does not depend on this
// distinction for correctness.
func classify(keyword string) codegraph.NodeType {
	switch keyword {
	case "class", "struct", "interface":
		return codegraph.NodeClass
	case "func", "function", "def", "async def":
		return codegraph.NodeFunction
	case "void", "int", "auto":
		return codegraph.NodeMethod
	default:
		return codegraph.NodeBlock
	}
}

func structuralWeight(t codegraph.NodeType) float64 {
	switch t {
	case codegraph.NodeClass:
		return 0.8
	case codegraph.NodeFunction, codegraph.NodeMethod:
		return 0.6
	default:
		return 0.4
	}
}
