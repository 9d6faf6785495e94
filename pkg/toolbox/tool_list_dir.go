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
	"path/filepath"
	"sort"
	"strings"
)

const listDirMaxDepth = 4

// ListDirTool lists a workspace-relative directory, honoring a PathFilter
// and a fixed recursion depth.
type ListDirTool struct {
	Root   string
	Filter PathFilter
}

// NewListDirTool builds a list_dir tool rooted at root. filter may be nil.
func NewListDirTool(root string, filter PathFilter) *ListDirTool {
	if filter == nil {
		filter = allowAllFilter{}
	}
	return &ListDirTool{Root: root, Filter: filter}
}

func (t *ListDirTool) Name() string        { return "list_dir" }
func (t *ListDirTool) Description() string { return "List files and subdirectories under a workspace-relative path." }
func (t *ListDirTool) Schema() string {
	return `{"type":"object","properties":{"path":{"type":"string","description":"Workspace-relative directory path."}},"required":["path"]}`
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) string {
	relPath, _ := args["path"].(string)
	abs, err := resolveWorkspacePath(t.Root, relPath)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("ERROR: %s is not a directory", relPath)
	}

	var lines []string
	err = t.walk(abs, 0, &lines)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	sort.Strings(lines)
	if len(lines) == 0 {
		return "(empty directory)"
	}
	return strings.Join(lines, "\n")
}

func (t *ListDirTool) walk(dir string, depth int, lines *[]string) error {
	if depth > listDirMaxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		abs := filepath.Join(dir, e.Name())
		rel := toWorkspaceRelative(t.Root, abs)
		if !t.Filter.Allowed(rel, e.IsDir()) {
			continue
		}
		if e.IsDir() {
			*lines = append(*lines, rel+"/")
			if err := t.walk(abs, depth+1, lines); err != nil {
				return err
			}
		} else {
			*lines = append(*lines, rel)
		}
	}
	return nil
}
