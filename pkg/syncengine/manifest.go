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

package syncengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const manifestFileName = "manifest.json"

// ManifestEntry records a collected file's last-seen fingerprint and the
// ids of the CodeNodes it produced.
type ManifestEntry struct {
	Fingerprint string   `json:"fingerprint"`
	NodeIDs     []string `json:"node_ids"`
}

// Manifest maps a workspace-relative path to its last-sync entry.
type Manifest map[string]ManifestEntry

// fingerprint builds the spec's "<size>-<unixNanoModTime>" token.
func fingerprint(size int64, modTimeUnixNano int64) string {
	return fmt.Sprintf("%d-%d", size, modTimeUnixNano)
}

func loadManifest(storageDir string) Manifest {
	data, err := os.ReadFile(filepath.Join(storageDir, manifestFileName))
	if err != nil {
		return Manifest{}
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}
	}
	return m
}

func saveManifest(storageDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(storageDir, manifestFileName), data, 0o644)
}
