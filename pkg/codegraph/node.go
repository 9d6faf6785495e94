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

// Package codegraph defines the atomic indexed unit shared by the parser,
// vector store, retrieval engine and context manager.
package codegraph

// NodeType classifies a CodeNode.
type NodeType string

const (
	NodeFile     NodeType = "file"
	NodeBlock    NodeType = "code_block"
	NodeClass    NodeType = "class"
	NodeFunction NodeType = "function"
	NodeMethod   NodeType = "method"
	NodeUnknown  NodeType = "unknown"
)

// DefaultEmbeddingDimension is used when a project does not override it.
const DefaultEmbeddingDimension = 768

// CodeNode is the atomic indexed record: a whole file or one declaration
// block extracted from it.
type CodeNode struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Content   string   `json:"content"`
	Docstring string   `json:"docstring,omitempty"`
	FilePath  string   `json:"file_path"`
	Type      NodeType `json:"type"`

	// Dependencies holds short, unresolved import tokens (basenames of
	// imported module specifiers), not resolved paths.
	Dependencies []string `json:"dependencies"`

	// Embedding is empty ([]float32{}) when pending, or exactly the
	// store's dimension once computed.
	Embedding []float32 `json:"embedding,omitempty"`

	// Weights always carries a "structural" entry in [0,1].
	Weights map[string]float64 `json:"weights"`

	AISummary      string  `json:"ai_summary,omitempty"`
	AIQualityScore float64 `json:"ai_quality_score,omitempty"`
}

// Structural returns the node's structural weight, defaulting to 0 if unset.
func (n *CodeNode) Structural() float64 {
	if n.Weights == nil {
		return 0
	}
	return n.Weights["structural"]
}

// NewFileNode builds the whole-file node every parsed file must yield.
func NewFileNode(filePath, content string, dependencies []string) *CodeNode {
	return &CodeNode{
		ID:           filePath,
		Name:         filePath,
		Content:      content,
		FilePath:     filePath,
		Type:         NodeFile,
		Dependencies: dependencies,
		Embedding:    []float32{},
		Weights:      map[string]float64{"structural": 1.0},
	}
}

// BlockID derives the stable id for a declaration block: "<path>::<symbol>".
func BlockID(filePath, symbol string) string {
	return filePath + "::" + symbol
}
