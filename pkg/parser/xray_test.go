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

package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "go", DetectLanguage("a/b.go"))
	assert.Equal(t, "python", DetectLanguage("a/b.py"))
	assert.Equal(t, "typescript", DetectLanguage("a/b.ts"))
	assert.Equal(t, "", DetectLanguage("a/b.rs"))
}

func TestXRayGoFunction(t *testing.T) {
	src := "package main\n\nfunc Foo() {\n\treturn\n}\n"
	symbols, err := XRay(context.Background(), "x.go", []byte(src))
	require.NoError(t, err)

	var names []string
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Foo")
}

func TestXRayUnsupportedExtension(t *testing.T) {
	_, err := XRay(context.Background(), "x.rs", []byte("fn main() {}"))
	assert.Error(t, err)
}
