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
	"fmt"
	"path/filepath"
	"strings"
)

// PathFilter decides whether a workspace-relative path is visible to the
// file tools. The sync engine's filter rules implement this interface;
// toolbox only depends on the shape, not the concrete filtering package.
type PathFilter interface {
	Allowed(relPath string, isDir bool) bool
}

// allowAllFilter is used when no PathFilter is configured.
type allowAllFilter struct{}

func (allowAllFilter) Allowed(string, bool) bool { return true }

// resolveWorkspacePath joins root and the model-supplied relPath, refusing
// any result that normalizes outside of root.
func resolveWorkspacePath(root, relPath string) (string, error) {
	cleaned := filepath.Clean("/" + relPath)
	abs := filepath.Join(root, cleaned)

	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace root: %w", err)
	}
	absClean, err := filepath.Abs(abs)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	if absClean != rootAbs && !strings.HasPrefix(absClean, rootAbs+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes workspace root")
	}
	return absClean, nil
}

// toWorkspaceRelative converts abs (inside root) back to a forward-slash
// workspace-relative path.
func toWorkspaceRelative(root, abs string) string {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
