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

package server

import (
	"fmt"
	"os"
	"path/filepath"
)

const postCommitTemplate = `#!/bin/sh
# installed by cied sync/hook; triggers an incremental sync after each commit.
curl -sf -X POST http://127.0.0.1:8080/sync/run/%s >/dev/null 2>&1 || true
`

// installPostCommitHook writes (or overwrites) localPath/.git/hooks/post-commit
// so that every commit schedules a background sync for projectID.
func installPostCommitHook(localPath, projectID string) error {
	hooksDir := filepath.Join(localPath, ".git", "hooks")
	if info, err := os.Stat(hooksDir); err != nil || !info.IsDir() {
		return fmt.Errorf("no .git/hooks directory under %s (is this a git repository?)", localPath)
	}

	hookPath := filepath.Join(hooksDir, "post-commit")
	content := fmt.Sprintf(postCommitTemplate, projectID)
	return os.WriteFile(hookPath, []byte(content), 0o755)
}
