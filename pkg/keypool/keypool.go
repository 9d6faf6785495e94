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

// Package keypool holds the round-robin pool of model-provider credentials
// the Gateway rotates through on rate limits.
package keypool

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
)

// keysFile is the on-disk shape of the JSON keys file.
type keysFile struct {
	Keys      []string `json:"keys"`
	SerperKey string   `json:"serper_key"`
}

// Pool is a thread-safe, round-robin credential pool.
type Pool struct {
	mu        sync.Mutex
	keys      []string
	idx       int
	serperKey string
	logger    *slog.Logger
}

// Load reads a JSON keys file. A missing file is logged as a warning and
// yields an empty, usable (but always-erroring) pool rather than an error,
// matching the gateway's posture of degrading rather than failing startup.
func Load(path string, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("keypool.load.missing", "path", path, "err", err)
		return p
	}

	var kf keysFile
	if err := json.Unmarshal(data, &kf); err != nil {
		logger.Warn("keypool.load.corrupt", "path", path, "err", err)
		return p
	}

	p.keys = kf.Keys
	p.serperKey = kf.SerperKey
	logger.Info("keypool.load.success", "path", path, "key_count", len(p.keys))
	return p
}

// New builds a pool directly from keys, bypassing file loading (used for
// tests and in-process wiring).
func New(keys []string, serperKey string) *Pool {
	return &Pool{keys: keys, serperKey: serperKey, logger: slog.Default()}
}

// Current returns the active key. Returns "" if the pool is empty.
func (p *Pool) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.keys) == 0 {
		return ""
	}
	return p.keys[p.idx]
}

// Rotate advances to the next key, wrapping around.
func (p *Pool) Rotate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rotateLocked()
}

func (p *Pool) rotateLocked() {
	if len(p.keys) == 0 {
		return
	}
	p.idx = (p.idx + 1) % len(p.keys)
}

// ReportRateLimit records a limit hit against the current key and rotates.
func (p *Pool) ReportRateLimit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger.Warn("keypool.rate_limit", "key_index", p.idx)
	p.rotateLocked()
}

// ActiveCount returns the number of keys in the pool.
func (p *Pool) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys)
}

// SerperKey returns the secondary web-search credential, or "" if unset.
func (p *Pool) SerperKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.serperKey
}
