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

package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kraklabs/cie-core/pkg/embedcache"
	"github.com/kraklabs/cie-core/pkg/keypool"
	"github.com/kraklabs/cie-core/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct {
	code int
}

func (e statusErr) Error() string { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

type flakyEmbedder struct {
	failTimes int
	calls     int
	dim       int
}

func (f *flakyEmbedder) Dimension() int { return f.dim }

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, statusErr{code: 429}
	}
	return []float32{1, 0, 0}, nil
}

func newTestGateway(embedder EmbeddingProvider, text llm.Provider) *Gateway {
	return New(text, embedder, keypool.New([]string{"k1", "k2"}, ""), embedcache.New(10),
		WithRetryConfig(RetryConfig{MaxRetries: 5, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}))
}

func TestEmbedRetriesThenSucceeds(t *testing.T) {
	e := &flakyEmbedder{failTimes: 2, dim: 3}
	g := newTestGateway(e, &llm.MockProvider{})

	v, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, v)
	assert.Equal(t, 3, e.calls)
}

func TestEmbedUsesCache(t *testing.T) {
	e := &flakyEmbedder{dim: 3}
	g := newTestGateway(e, &llm.MockProvider{})

	_, err := g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	_, err = g.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 1, e.calls, "second call should hit cache")
}

func TestEmbedExhaustsRetries(t *testing.T) {
	e := &flakyEmbedder{failTimes: 100, dim: 3}
	g := newTestGateway(e, &llm.MockProvider{})

	_, err := g.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 5, e.calls)
}

func TestGenerateNeverRaisesOnFailure(t *testing.T) {
	mock := &llm.MockProvider{
		GenerateFunc: func(ctx context.Context, req llm.GenerateRequest) (*llm.GenerateResponse, error) {
			return nil, statusErr{code: 500}
		},
	}
	g := newTestGateway(&flakyEmbedder{dim: 3}, mock)

	result := g.Generate(context.Background(), "do a thing")
	assert.False(t, result.Success)
	assert.Empty(t, result.Text)
}

func TestGenerateSuccess(t *testing.T) {
	g := newTestGateway(&flakyEmbedder{dim: 3}, &llm.MockProvider{})
	result := g.Generate(context.Background(), "hello")
	assert.True(t, result.Success)
	assert.NotEmpty(t, result.Text)
}

func TestNonRetryableFailsImmediately(t *testing.T) {
	e := &countingFailEmbedder{err: fmt.Errorf("bad request: 400")}
	g := newTestGateway(e, &llm.MockProvider{})

	_, err := g.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 1, e.calls)
}

type countingFailEmbedder struct {
	calls int
	err   error
}

func (c *countingFailEmbedder) Dimension() int { return 8 }
func (c *countingFailEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return nil, c.err
}

func TestVisionNotConfigured(t *testing.T) {
	g := newTestGateway(&flakyEmbedder{dim: 3}, &llm.MockProvider{})
	result := g.GenerateVision(context.Background(), "describe", []byte("img"))
	assert.False(t, result.Success)
}
