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

import "strings"

// Filter implements the hard filtering contract: extension matching plus
// ignored/included path-segment rules. It also implements
// pkg/toolbox.PathFilter so the same rules gate the list_dir tool.
type Filter struct {
	allowedExt map[string]bool // empty set means "accept all"
	ignored    [][]string
	included   [][]string
}

// NewFilter builds a Filter from raw, unnormalized rule lists.
func NewFilter(allowedExtensions, ignoredPaths, includedPaths []string) *Filter {
	f := &Filter{allowedExt: make(map[string]bool)}
	for _, ext := range allowedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(ext, "."))
		if ext != "" {
			f.allowedExt[ext] = true
		}
	}
	for _, p := range ignoredPaths {
		f.ignored = append(f.ignored, segmentsOf(p))
	}
	for _, p := range includedPaths {
		f.included = append(f.included, segmentsOf(p))
	}
	return f
}

// segmentsOf lexically normalizes and case-folds path into its segments.
func segmentsOf(path string) []string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.Trim(path, "/")
	path = strings.ToLower(path)
	if path == "" || path == "." {
		return nil
	}
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s == "" || s == "." {
			continue
		}
		segs = append(segs, s)
	}
	return segs
}

// isPrefix reports whether prefix is a segment-wise prefix of full.
func isPrefix(prefix, full []string) bool {
	if len(prefix) > len(full) {
		return false
	}
	for i, p := range prefix {
		if full[i] != p {
			return false
		}
	}
	return true
}

// insideAny reports whether target is inside (or equal to) any entry: an
// entry's segments form a prefix of target's.
func insideAny(target []string, entries [][]string) bool {
	for _, e := range entries {
		if isPrefix(e, target) {
			return true
		}
	}
	return false
}

// ancestorOfAny reports whether target is an ancestor of any entry: target
// is a segment-wise prefix of the entry.
func ancestorOfAny(target []string, entries [][]string) bool {
	for _, e := range entries {
		if isPrefix(target, e) {
			return true
		}
	}
	return false
}

// entersDir reports whether the directory at relPath should be walked.
func (f *Filter) entersDir(relPath string) bool {
	segs := segmentsOf(relPath)
	ignored := insideAny(segs, f.ignored)
	bridge := ancestorOfAny(segs, f.included)
	insideIncluded := insideAny(segs, f.included)
	return !ignored || bridge || insideIncluded
}

// collectsFile reports whether the file at relPath should be collected.
func (f *Filter) collectsFile(relPath string) bool {
	segs := segmentsOf(relPath)
	ignored := insideAny(segs, f.ignored)
	insideIncluded := insideAny(segs, f.included)
	if ignored && !insideIncluded {
		return false
	}
	return f.extensionAllowed(relPath)
}

func (f *Filter) extensionAllowed(relPath string) bool {
	if len(f.allowedExt) == 0 {
		return true
	}
	idx := strings.LastIndex(relPath, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(relPath[idx+1:])
	return f.allowedExt[ext]
}

// Allowed implements pkg/toolbox.PathFilter.
func (f *Filter) Allowed(relPath string, isDir bool) bool {
	if isDir {
		return f.entersDir(relPath)
	}
	return f.collectsFile(relPath)
}
