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

// Package bootstrap handles project registration and setup.
//
// A typical workflow for registering a new project:
//
//	info, err := bootstrap.RegisterProject(bootstrap.ProjectConfig{
//	    ProjectID: "myproject",
//	    LocalPath: "/home/dev/myproject",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("registered at: %s\n", info.StorageDir)
//
//	config, err := bootstrap.OpenProject(info.StorageDir, logger)
//
// RegisterProject is idempotent: re-registering the same project_id
// overwrites its config.json without touching the rest of the storage tree
// (manifest, vector store, mirrors survive).
package bootstrap
