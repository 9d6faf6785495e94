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

	"github.com/kraklabs/cie-core/internal/contract"
	"github.com/kraklabs/cie-core/pkg/journal"
)

// ApplyEditTool writes new_content to path through the atomic edit journal.
type ApplyEditTool struct {
	Root    string
	Journal *journal.Journal
}

// NewApplyEditTool builds an apply_edit tool rooted at root, guarded by j.
func NewApplyEditTool(root string, j *journal.Journal) *ApplyEditTool {
	return &ApplyEditTool{Root: root, Journal: j}
}

func (t *ApplyEditTool) Name() string        { return "apply_edit" }
func (t *ApplyEditTool) Description() string { return "Overwrite a workspace-relative file with new content, guarded by an atomic rollback journal." }
func (t *ApplyEditTool) Schema() string {
	return `{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`
}

func (t *ApplyEditTool) Execute(ctx context.Context, args map[string]any) string {
	relPath, _ := args["path"].(string)
	content, _ := args["content"].(string)

	if v := contract.ValidateBatchScript(content); !v.OK {
		return fmt.Sprintf("ERROR: %s", v.Message)
	}

	abs, err := resolveWorkspacePath(t.Root, relPath)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	result := t.Journal.Apply(abs, []byte(content))
	if result.Err != nil {
		if result.RolledBack {
			return fmt.Sprintf("ERROR: %v. Rollback performed, file restored.", result.Err)
		}
		return fmt.Sprintf("ERROR: %v", result.Err)
	}
	return fmt.Sprintf("SUCCESS: wrote %d bytes to %s", len(content), relPath)
}
