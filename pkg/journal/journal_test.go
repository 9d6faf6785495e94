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

package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplySuccessRemovesBackup(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	j := New(filepath.Join(dir, ".journal"))
	result := j.Apply(target, []byte("new content"))

	require.NoError(t, result.Err)
	assert.False(t, result.RolledBack)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(data))
}

func TestApplyRollbackOnValidationFailure(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "a.go")
	original := []byte("original bytes")
	require.NoError(t, os.WriteFile(target, original, 0o644))

	j := New(filepath.Join(dir, ".journal"))
	j.SetValidateFunc(func(path string, expectedSize int) error {
		return fmt.Errorf("induced failure")
	})

	result := j.Apply(target, []byte("corrupted"))
	require.Error(t, result.Err)
	assert.True(t, result.RolledBack)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, data, "target must be byte-identical to pre-call contents")
}

func TestApplyNewFileRollbackRemovesIt(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "new.go")

	j := New(filepath.Join(dir, ".journal"))
	j.SetValidateFunc(func(path string, expectedSize int) error {
		return fmt.Errorf("induced failure")
	})

	result := j.Apply(target, []byte("content"))
	assert.True(t, result.RolledBack)

	_, err := os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}
