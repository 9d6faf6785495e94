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

package toolbox

import "context"

// FinalAnswerName is the sentinel tool name the agent executor recognizes
// to end a mission.
const FinalAnswerName = "FINAL_ANSWER"

// FinalAnswerTool surfaces parameters.answer to the caller verbatim. It is
// registered like any other tool so it appears in the manifest, but the
// agent executor intercepts dispatches to it before they reach the
// registry.
type FinalAnswerTool struct{}

func (FinalAnswerTool) Name() string        { return FinalAnswerName }
func (FinalAnswerTool) Description() string { return "Conclude the mission and return the final answer to the user." }
func (FinalAnswerTool) Schema() string {
	return `{"type":"object","properties":{"answer":{"type":"string"}},"required":["answer"]}`
}

func (FinalAnswerTool) Execute(ctx context.Context, args map[string]any) string {
	answer, _ := args["answer"].(string)
	return answer
}
