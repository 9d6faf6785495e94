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

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBoundAtCap(t *testing.T) {
	s := New(5)
	for i := 0; i < 12; i++ {
		s.RecordLog(InteractionLog{UserQuery: "q"})
	}
	logs := s.LogsJSON()
	assert.Len(t, logs, 5)
}

func TestRingEvictsOldestFirst(t *testing.T) {
	s := New(3)
	for i := 0; i < 5; i++ {
		s.RecordTrace(AgentTrace{Detail: string(rune('a' + i))})
	}
	traces := s.TracesJSON()
	require.Len(t, traces, 3)
	assert.Equal(t, "c", traces[0].Detail)
	assert.Equal(t, "e", traces[2].Detail)
}

func TestRecordGatewayLatencyNoPanic(t *testing.T) {
	s := New(10)
	assert.NotPanics(t, func() {
		s.RecordGatewayLatency("embed", 10*time.Millisecond, true)
		s.RecordGatewayLatency("generate", 10*time.Millisecond, false)
	})
}

func TestHandlerServesMetrics(t *testing.T) {
	s := New(10)
	s.RecordLog(InteractionLog{})
	require.NotNil(t, s.Handler())
}
