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

package toolbox

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kraklabs/cie-core/pkg/parser"
)

const readFileMaxBytes = 512 * 1024 // 512 KiB

// ReadFileTool reads a workspace file and enriches the observation with an
// AST X-ray pass over its content.
type ReadFileTool struct {
	Root string
}

// NewReadFileTool builds a read_file tool rooted at root.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{Root: root}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read a workspace-relative file's content, enriched with a best-effort syntax summary." }
func (t *ReadFileTool) Schema() string {
	return `{"type":"object","properties":{"path":{"type":"string","description":"Workspace-relative file path."}},"required":["path"]}`
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) string {
	relPath, _ := args["path"].(string)
	abs, err := resolveWorkspacePath(t.Root, relPath)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if info.Size() > readFileMaxBytes {
		return fmt.Sprintf("ERROR: %s exceeds the 512 KiB read limit (%d bytes)", relPath, info.Size())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if !utf8.Valid(data) {
		return fmt.Sprintf("ERROR: %s is not valid UTF-8", relPath)
	}

	var b strings.Builder
	b.Write(data)

	if symbols, err := parser.XRay(ctx, relPath, data); err == nil && len(symbols) > 0 {
		b.WriteString("\n\n# AST X-RAY\n")
		for _, s := range symbols {
			fmt.Fprintf(&b, "- %s %s (line %d)\n", s.Kind, s.Name, s.Line)
		}
	}
	return b.String()
}
