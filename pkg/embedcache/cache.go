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

// Package embedcache is a bounded, content-keyed cache from input text to
// its embedding vector.
package embedcache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCapacity bounds the number of cached entries absent an override.
const DefaultCapacity = 10000

// Cache maps exact input text to its embedding. Safe for concurrent use:
// golang-lru/v2's Cache is internally mutex-guarded.
type Cache struct {
	inner *lru.Cache[string, []float32]
}

// New creates a cache bounded to capacity entries, evicting least-recently
// used entries once full. capacity <= 0 uses DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	inner, err := lru.New[string, []float32](capacity)
	if err != nil {
		// Only invalid (<=0) sizes fail, and we've already normalized that.
		panic(err)
	}
	return &Cache{inner: inner}
}

// Get returns the cached vector for text, if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	return c.inner.Get(text)
}

// Put stores vec under text, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *Cache) Put(text string, vec []float32) {
	c.inner.Add(text, vec)
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	return c.inner.Len()
}

// Purge clears the cache.
func (c *Cache) Purge() {
	c.inner.Purge()
}
