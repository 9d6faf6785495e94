// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterAndOpenProjectRoundTrips(t *testing.T) {
	base := t.TempDir()
	storageDir := filepath.Join(base, "proj1")

	info, err := RegisterProject(ProjectConfig{
		ProjectID:         "proj1",
		LocalPath:         "/workspace/proj1",
		StorageDir:        storageDir,
		AllowedExtensions: []string{"go"},
	}, nil)
	if err != nil {
		t.Fatalf("RegisterProject: %v", err)
	}
	if info.StorageDir != storageDir {
		t.Errorf("expected storage dir %q, got %q", storageDir, info.StorageDir)
	}

	cfg, err := OpenProject(storageDir, nil)
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	if cfg.ProjectID != "proj1" || cfg.EmbeddingDimension != 768 {
		t.Errorf("unexpected round-tripped config: %+v", cfg)
	}
}

func TestRegisterProjectRequiresIDAndPath(t *testing.T) {
	if _, err := RegisterProject(ProjectConfig{LocalPath: "/x"}, nil); err == nil {
		t.Error("expected error when project_id is missing")
	}
	if _, err := RegisterProject(ProjectConfig{ProjectID: "p"}, nil); err == nil {
		t.Error("expected error when local_path is missing")
	}
}

func TestOpenProjectMissingReturnsError(t *testing.T) {
	if _, err := OpenProject(t.TempDir(), nil); err == nil {
		t.Error("expected an error opening an unregistered project")
	}
}

func TestListProjectsFindsRegisteredOnly(t *testing.T) {
	base := t.TempDir()
	if _, err := RegisterProject(ProjectConfig{
		ProjectID:  "a",
		LocalPath:  "/workspace/a",
		StorageDir: filepath.Join(base, "a"),
	}, nil); err != nil {
		t.Fatalf("RegisterProject a: %v", err)
	}
	if err := (func() error {
		// a bare directory with no config.json should be ignored
		return os.MkdirAll(filepath.Join(base, "bare"), 0o755)
	})(); err != nil {
		t.Fatal(err)
	}

	ids, err := ListProjects(base)
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("expected [a], got %v", ids)
	}
}

func TestListProjectsMissingBaseDirIsEmptyNotError(t *testing.T) {
	ids, err := ListProjects(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("expected no error for a missing base dir, got %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no projects, got %v", ids)
	}
}
