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

// Package journal guards every mutation to a project's files with a
// backup/commit/rollback cycle, generalizing the defensive-copy discipline
// of a tracked-temporary-resource cleanup from directories to single files.
package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// Result reports the outcome of an apply.
type Result struct {
	RolledBack bool
	Err        error
}

// Journal writes one file at a time under a backup/commit/rollback
// discipline. Stateless beyond its backup directory: callers may share one
// Journal across concurrent Apply calls to distinct paths.
type Journal struct {
	backupDir string

	// validateFn is overridable in tests to simulate a post-write validation
	// failure without needing to induce a real disk error.
	validateFn func(path string, expectedSize int) error
}

// New creates a Journal that stages backups under backupDir (created lazily
// on first use).
func New(backupDir string) *Journal {
	return &Journal{backupDir: backupDir}
}

// SetValidateFunc overrides the post-write validation check. Used by tests
// to induce a validation failure deterministically.
func (j *Journal) SetValidateFunc(fn func(path string, expectedSize int) error) {
	j.validateFn = fn
}

// Apply performs: (a) copy the current file to a side journal entry,
// (b) truncate+rewrite the target with newContent, (c) validate the write
// (file is readable and its size matches len(newContent)). On any failure
// at (b) or (c) the target is restored from the backup and Result.RolledBack
// is true. The backup entry is removed once validation succeeds.
func (j *Journal) Apply(path string, newContent []byte) Result {
	backupPath, hadOriginal, err := j.backup(path)
	if err != nil {
		return Result{Err: fmt.Errorf("journal: backup failed: %w", err)}
	}

	writeErr := os.WriteFile(path, newContent, 0o644)
	if writeErr == nil {
		writeErr = j.validate(path, len(newContent))
	}

	if writeErr == nil {
		if hadOriginal {
			_ = os.Remove(backupPath)
		}
		return Result{}
	}

	restoreErr := j.restore(path, backupPath, hadOriginal)
	if restoreErr != nil {
		return Result{Err: fmt.Errorf("journal: write failed (%v) AND restore failed (%v); target may be corrupt", writeErr, restoreErr)}
	}
	return Result{RolledBack: true, Err: fmt.Errorf("journal: write failed, rolled back: %w", writeErr)}
}

func (j *Journal) validate(path string, expectedSize int) error {
	if j.validateFn != nil {
		return j.validateFn(path, expectedSize)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file not readable after write: %w", err)
	}
	if int(info.Size()) != expectedSize {
		return fmt.Errorf("size mismatch after write: got %d want %d", info.Size(), expectedSize)
	}
	return nil
}

func (j *Journal) backup(path string) (backupPath string, hadOriginal bool, err error) {
	if err := os.MkdirAll(j.backupDir, 0o755); err != nil {
		return "", false, err
	}
	// Keyed by a hash of the full path, not just its basename: two distinct
	// paths sharing a basename (e.g. "a/util.go" and "b/util.go") would
	// otherwise collide on a concurrent Apply to the same backup directory.
	sum := sha256.Sum256([]byte(path))
	backupPath = filepath.Join(j.backupDir, filepath.Base(path)+"."+hex.EncodeToString(sum[:8])+".journal")

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return backupPath, false, nil
		}
		return "", false, readErr
	}

	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", false, err
	}
	return backupPath, true, nil
}

func (j *Journal) restore(path, backupPath string, hadOriginal bool) error {
	if !hadOriginal {
		return os.Remove(path)
	}
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	return os.Remove(backupPath)
}
