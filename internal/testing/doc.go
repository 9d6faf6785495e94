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

// Package testing provides test helpers shared across the core's packages.
//
// # Quick Start
//
// Use WriteTempProject to materialize a small source tree and NewTestNode
// to build CodeNode fixtures with deterministic unit-norm embeddings:
//
//	func TestMyFeature(t *testing.T) {
//	    root := testing.WriteTempProject(t, map[string]string{
//	        "a.py": "def foo(): pass",
//	    })
//	    node := testing.NewTestNode("a.py", "a.py", "a.py", codegraph.NodeFile, 8)
//	}
package testing
