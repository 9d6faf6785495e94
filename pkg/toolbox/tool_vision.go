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

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kraklabs/cie-core/pkg/gateway"
)

// VisionGateway is the narrow slice of pkg/gateway.Gateway this tool needs.
type VisionGateway interface {
	GenerateVision(ctx context.Context, prompt string, imageBytes []byte) gateway.VisionResult
}

// AnalyzeVisionTool calls the gateway's vision path against a base64-encoded
// image.
type AnalyzeVisionTool struct {
	Gateway VisionGateway
}

// NewAnalyzeVisionTool builds an analyze_vision tool backed by gw.
func NewAnalyzeVisionTool(gw VisionGateway) *AnalyzeVisionTool {
	return &AnalyzeVisionTool{Gateway: gw}
}

func (t *AnalyzeVisionTool) Name() string        { return "analyze_vision" }
func (t *AnalyzeVisionTool) Description() string { return "Analyze a base64-encoded image against a prompt using the vision model." }
func (t *AnalyzeVisionTool) Schema() string {
	return `{"type":"object","properties":{"prompt":{"type":"string"},"image_data":{"type":"string","description":"Base64-encoded image bytes."}},"required":["prompt","image_data"]}`
}

func (t *AnalyzeVisionTool) Execute(ctx context.Context, args map[string]any) string {
	prompt, _ := args["prompt"].(string)
	encoded, _ := args["image_data"].(string)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Sprintf("ERROR: invalid base64 image_data: %v", err)
	}

	result := t.Gateway.GenerateVision(ctx, prompt, raw)
	if !result.Success {
		return "ERROR: vision analysis failed."
	}
	return result.Analysis
}
