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

// Package contextpack assembles the fixed-section prompt blob handed to
// the model gateway, truncating bottom-up under a character ceiling.
package contextpack

import "strings"

// DefaultMaxChars approximates a ~100k-token ceiling, characters used as a
// proxy for tokens.
const DefaultMaxChars = 400_000

// historyTailChars is the amount of trailing chat history kept verbatim.
const historyTailChars = 3000

// Snapshot is the input to Pack: everything needed to render the four
// fixed sections.
type Snapshot struct {
	// FocalPoint is the content of the top-ranked raw node, if any.
	FocalPoint string
	// Topology is the rendered architectural map (tree.txt).
	Topology string
	// Experiences are the formatted strings recalled from the vault.
	Experiences []string
	// ChatHistory is the full conversation so far; only its tail is used.
	ChatHistory string
}

type section struct {
	header string
	body   string
}

// Pack renders snapshot into the four fixed sections, in order, truncating
// from the bottom (history first, then experiences) if the total would
// exceed maxChars. maxChars <= 0 uses DefaultMaxChars. The focal point and
// topology sections are never dropped, but the rendered result is finally
// cut to maxChars bytes, which can truncate them.
func Pack(snapshot Snapshot, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	focal := section{header: "### FOCAL POINT", body: snapshot.FocalPoint}
	topology := section{header: "### PROJECT TOPOLOGY", body: snapshot.Topology}
	experience := section{header: "### PREVIOUS FIX", body: strings.Join(snapshot.Experiences, "\n\n")}
	history := section{header: "### CHAT HISTORY", body: tail(snapshot.ChatHistory, historyTailChars)}

	sections := []section{focal, topology, experience, history}

	for renderedLen(sections) > maxChars && len(sections) > 1 {
		// Drop lowest-priority surviving section first: history, then
		// experiences. Topology and focal point are never dropped.
		if idx := indexOf(sections, "### CHAT HISTORY"); idx >= 0 && sections[idx].body != "" {
			sections[idx].body = ""
			continue
		}
		if idx := indexOf(sections, "### PREVIOUS FIX"); idx >= 0 && sections[idx].body != "" {
			sections[idx].body = ""
			continue
		}
		break
	}

	var b strings.Builder
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		b.WriteString(s.header)
		b.WriteString("\n")
		b.WriteString(s.body)
		b.WriteString("\n\n")
	}

	out := b.String()
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out
}

func indexOf(sections []section, header string) int {
	for i, s := range sections {
		if s.header == header {
			return i
		}
	}
	return -1
}

func renderedLen(sections []section) int {
	total := 0
	for _, s := range sections {
		if s.body == "" {
			continue
		}
		total += len(s.header) + len(s.body) + 3
	}
	return total
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
