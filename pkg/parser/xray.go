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

package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Symbol is one named declaration surfaced by the X-ray pass.
type Symbol struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Line int    `json:"line"`
}

// namedNodeKinds maps a tree-sitter node type to the observational kind
// reported in a Symbol, per supported grammar.
var namedNodeKinds = map[string]map[string]string{
	"go": {
		"function_declaration": "function",
		"method_declaration":   "method",
		"type_spec":            "type",
	},
	"python": {
		"function_definition": "function",
		"class_definition":    "class",
	},
	"javascript": {
		"function_declaration": "function",
		"class_declaration":    "class",
		"method_definition":    "method",
	},
	"typescript": {
		"function_declaration": "function",
		"class_declaration":    "class",
		"method_definition":    "method",
		"interface_declaration": "interface",
	},
}

// DetectLanguage returns the X-ray grammar key for filePath's extension, or
// "" if unsupported.
func DetectLanguage(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".ts", ".tsx":
		return "typescript"
	default:
		return ""
	}
}

func grammarFor(language string) sitter.Language {
	switch language {
	case "go":
		return golang.GetLanguage()
	case "python":
		return python.GetLanguage()
	case "javascript":
		return javascript.GetLanguage()
	case "typescript":
		return typescript.GetLanguage()
	default:
		return nil
	}
}

// XRay parses content with the tree-sitter grammar for filePath's language
// and enumerates named declarations. Syntax errors in content are not
// reported: tree-sitter recovers from them and the declarations it still
// finds are returned. It is used only for observational enrichment of
// read_file; a failure here must never be fatal to the caller.
func XRay(ctx context.Context, filePath string, content []byte) ([]Symbol, error) {
	language := DetectLanguage(filePath)
	if language == "" {
		return nil, fmt.Errorf("xray: unsupported file type: %s", filePath)
	}

	grammar := grammarFor(language)
	p := sitter.NewParser()
	p.SetLanguage(grammar)

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("xray: parse %s: %w", filePath, err)
	}
	defer tree.Close()

	kinds := namedNodeKinds[language]
	var symbols []Symbol
	walk(tree.RootNode(), content, kinds, &symbols)
	return symbols, nil
}

func walk(node *sitter.Node, src []byte, kinds map[string]string, out *[]Symbol) {
	if node == nil {
		return
	}
	if kind, ok := kinds[node.Type()]; ok {
		if name := identifierOf(node, src); name != "" {
			*out = append(*out, Symbol{
				Name: name,
				Kind: kind,
				Line: int(node.StartPoint().Row) + 1,
			})
		}
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), src, kinds, out)
	}
}

func identifierOf(node *sitter.Node, src []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(src)
	}
	// type_spec in Go carries the name as the first named child.
	if node.NamedChildCount() > 0 {
		first := node.NamedChild(0)
		if first.Type() == "identifier" || first.Type() == "type_identifier" {
			return first.Content(src)
		}
	}
	return ""
}
