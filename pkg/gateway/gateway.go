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

// Package gateway is the resilient embedding/generation front door: every
// outbound call to the model provider routes through a single retry
// wrapper that rotates keys on rate limits and reports latency to the
// telemetry sink.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/kraklabs/cie-core/pkg/embedcache"
	"github.com/kraklabs/cie-core/pkg/keypool"
	"github.com/kraklabs/cie-core/pkg/llm"
)

// EmbeddingProvider embeds a single text into a fixed-dimension vector.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// VisionProvider analyzes an image alongside a text prompt. Optional: a
// Gateway with no VisionProvider configured fails generate_vision calls
// with a structured, non-fatal response.
type VisionProvider interface {
	GenerateVision(ctx context.Context, prompt string, imageBytes []byte) (string, error)
}

// RetryConfig governs the shared retry wrapper, mirroring the shape of a
// classic exponential-backoff-with-jitter embedding client.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig matches spec's "≤5 attempts" ceiling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// LatencyRecorder receives per-call latency observations. Implemented by
// the telemetry sink; kept as a narrow interface here to avoid an import
// cycle between gateway and telemetry.
type LatencyRecorder interface {
	RecordGatewayLatency(call string, d time.Duration, success bool)
}

// nopRecorder is used when no telemetry sink is wired.
type nopRecorder struct{}

func (nopRecorder) RecordGatewayLatency(string, time.Duration, bool) {}

// Gateway composes a text backend, an embedding backend, a key pool, and a
// cache behind the single retry wrapper spec 4.2 mandates.
type Gateway struct {
	text      llm.Provider
	embedder  EmbeddingProvider
	vision    VisionProvider
	keys      *keypool.Pool
	cache     *embedcache.Cache
	retry     RetryConfig
	telemetry LatencyRecorder
	logger    *slog.Logger
}

// Option configures a Gateway at construction time.
type Option func(*Gateway)

func WithVision(v VisionProvider) Option    { return func(g *Gateway) { g.vision = v } }
func WithRetryConfig(r RetryConfig) Option  { return func(g *Gateway) { g.retry = r } }
func WithTelemetry(t LatencyRecorder) Option { return func(g *Gateway) { g.telemetry = t } }
func WithLogger(l *slog.Logger) Option       { return func(g *Gateway) { g.logger = l } }

// New builds a Gateway. text and embedder must not be nil; everything else
// is optional.
func New(text llm.Provider, embedder EmbeddingProvider, keys *keypool.Pool, cache *embedcache.Cache, opts ...Option) *Gateway {
	g := &Gateway{
		text:      text,
		embedder:  embedder,
		keys:      keys,
		cache:     cache,
		retry:     DefaultRetryConfig(),
		telemetry: nopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GenerateResult mirrors the spec's structured, never-raising generate
// contract: callers observe success=false rather than an error.
type GenerateResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Success          bool
}

// VisionResult is generate_vision's structured outcome.
type VisionResult struct {
	Analysis string
	Success  bool
}

// Embed returns text's embedding, consulting the cache first.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := g.cache.Get(text); ok {
		return v, nil
	}

	var out []float32
	err := g.withRetry(ctx, "embed", func(ctx context.Context) error {
		v, err := g.embedder.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	g.cache.Put(text, out)
	return out, nil
}

// EmbedBatch embeds each text independently (cache-consulted), continuing
// past individual failures and returning the first error encountered after
// attempting every item, so callers can still use the successes.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var firstErr error
	for i, t := range texts {
		v, err := g.Embed(ctx, t)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out[i] = v
	}
	return out, firstErr
}

// Generate produces a text completion, never returning an error for
// provider-side failures — it sets Success=false instead so the agent
// executor can observe and recover.
func (g *Gateway) Generate(ctx context.Context, prompt string) GenerateResult {
	var resp *llm.GenerateResponse
	err := g.withRetry(ctx, "generate", func(ctx context.Context) error {
		r, err := g.text.Generate(ctx, llm.GenerateRequest{Prompt: prompt})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return GenerateResult{Success: false}
	}
	return GenerateResult{
		Text:             resp.Text,
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.OutputTokens,
		TotalTokens:       resp.TotalTokens,
		Success:          true,
	}
}

// Autocomplete produces a short, bounded ghost-text continuation.
func (g *Gateway) Autocomplete(ctx context.Context, prefix string) string {
	var resp *llm.GenerateResponse
	err := g.withRetry(ctx, "autocomplete", func(ctx context.Context) error {
		r, err := g.text.Generate(ctx, llm.GenerateRequest{
			Prompt:    prefix,
			MaxTokens: 64,
			Stop:      []string{"\n\n"},
		})
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return ""
	}
	return resp.Text
}

// GenerateVision calls the vision path of the gateway, if configured.
func (g *Gateway) GenerateVision(ctx context.Context, prompt string, imageBytes []byte) VisionResult {
	if g.vision == nil {
		return VisionResult{Success: false}
	}

	var analysis string
	err := g.withRetry(ctx, "generate_vision", func(ctx context.Context) error {
		a, err := g.vision.GenerateVision(ctx, prompt, imageBytes)
		if err != nil {
			return err
		}
		analysis = a
		return nil
	})
	if err != nil {
		return VisionResult{Success: false}
	}
	return VisionResult{Analysis: analysis, Success: true}
}

// retryableStatusError is implemented by provider errors that can report an
// HTTP status code, so the retry wrapper can distinguish 429/5xx from other
// 4xx failures without parsing error strings everywhere.
type retryableStatusError interface {
	StatusCode() int
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se retryableStatusError
	if errors.As(err, &se) {
		code := se.StatusCode()
		return code == http.StatusTooManyRequests || code >= 500
	}
	// No structured status available: treat connection-shaped errors as
	// retryable, consistent with spec 7's "connection errors" bucket.
	msg := err.Error()
	return strings.Contains(msg, "connection") || strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "status 5")
}

// withRetry implements spec 4.2's shared retry policy: 429/5xx rotate the
// key and retry with jittered-then-exponential backoff, capped at
// retry.MaxRetries attempts; any other failure fails immediately.
func (g *Gateway) withRetry(ctx context.Context, call string, fn func(context.Context) error) error {
	start := time.Now()
	var lastErr error
	attempts := g.retry.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			g.telemetry.RecordGatewayLatency(call, time.Since(start), true)
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			g.telemetry.RecordGatewayLatency(call, time.Since(start), false)
			return err
		}

		if g.keys != nil {
			g.keys.ReportRateLimit()
		}

		if attempt == attempts-1 {
			break
		}

		backoff := computeBackoffWithJitter(g.retry.InitialBackoff, attempt, g.retry.Multiplier, g.retry.MaxBackoff, g.hasUnseenKeys(attempt))
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			g.telemetry.RecordGatewayLatency(call, time.Since(start), false)
			return ctx.Err()
		}
	}

	g.telemetry.RecordGatewayLatency(call, time.Since(start), false)
	return fmt.Errorf("%s: exhausted %d attempts: %w", call, attempts, lastErr)
}

func (g *Gateway) hasUnseenKeys(attempt int) bool {
	if g.keys == nil {
		return false
	}
	return attempt < g.keys.ActiveCount()
}

// computeBackoffWithJitter applies shallow jitter while unseen keys remain
// in the pool, and pure exponential growth once exhausted.
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, cap time.Duration, unseenKeysRemain bool) time.Duration {
	d := float64(base) * math.Pow(mult, float64(attempt))
	if d > float64(cap) {
		d = float64(cap)
	}
	if unseenKeysRemain {
		jitter := d * 0.2 * rand.Float64()
		return time.Duration(d*0.9 + jitter)
	}
	return time.Duration(d)
}
