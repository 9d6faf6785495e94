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

package keypool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileIsNonFatal(t *testing.T) {
	p := Load(filepath.Join(t.TempDir(), "nope.json"), nil)
	require.NotNil(t, p)
	assert.Equal(t, 0, p.ActiveCount())
	assert.Equal(t, "", p.Current())
}

func TestLoadAndRotate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"keys":["k1","k2","k3"],"serper_key":"s1"}`), 0o644))

	p := Load(path, nil)
	require.Equal(t, 3, p.ActiveCount())
	assert.Equal(t, "k1", p.Current())
	assert.Equal(t, "s1", p.SerperKey())

	p.Rotate()
	assert.Equal(t, "k2", p.Current())

	p.Rotate()
	p.Rotate()
	assert.Equal(t, "k1", p.Current(), "rotation wraps around")
}

func TestReportRateLimitRotates(t *testing.T) {
	p := New([]string{"a", "b"}, "")
	assert.Equal(t, "a", p.Current())
	p.ReportRateLimit()
	assert.Equal(t, "b", p.Current())
}

func TestConcurrentAccess(t *testing.T) {
	p := New([]string{"a", "b", "c"}, "")
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			p.Rotate()
			_ = p.Current()
			p.ReportRateLimit()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Equal(t, 3, p.ActiveCount())
}
