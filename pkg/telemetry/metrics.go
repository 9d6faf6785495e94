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
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type prometheusMetrics struct {
	registry *prometheus.Registry

	interactionsTotal    prometheus.Counter
	interactionLatency   prometheus.Histogram
	traceEventsTotal     *prometheus.CounterVec
	gatewayLatency       *prometheus.HistogramVec
	gatewayFailuresTotal *prometheus.CounterVec
}

func newPrometheusMetrics() *prometheusMetrics {
	reg := prometheus.NewRegistry()

	m := &prometheusMetrics{
		registry: reg,
		interactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cie_core_interactions_total",
			Help: "Total number of recorded missions (GHOST/AGENT/CHAT).",
		}),
		interactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cie_core_interaction_latency_seconds",
			Help:    "Mission latency in seconds.",
			Buckets: latencyBuckets,
		}),
		traceEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cie_core_trace_events_total",
			Help: "Agent trace events by state.",
		}, []string{"state"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cie_core_gateway_call_latency_seconds",
			Help:    "Model gateway call latency in seconds, by call type.",
			Buckets: latencyBuckets,
		}, []string{"call"}),
		gatewayFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cie_core_gateway_failures_total",
			Help: "Model gateway calls that exhausted retries or failed immediately.",
		}, []string{"call"}),
	}

	reg.MustRegister(
		m.interactionsTotal,
		m.interactionLatency,
		m.traceEventsTotal,
		m.gatewayLatency,
		m.gatewayFailuresTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this sink's registry.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
}
