// Copyright 2025 Blink Labs Software
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

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type orchestratorMetrics struct {
	outcomes      *prometheus.CounterVec
	commitLatency prometheus.Histogram
	inFlight      prometheus.Gauge
}

func newMetrics(promRegistry prometheus.Registerer) *orchestratorMetrics {
	if promRegistry == nil {
		promRegistry = prometheus.NewRegistry()
	}
	promautoFactory := promauto.With(promRegistry)
	return &orchestratorMetrics{
		outcomes: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supplychain_operations_total",
				Help: "operations submitted by final state",
			},
			[]string{"action", "state"},
		),
		commitLatency: promautoFactory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "supplychain_commit_latency_seconds",
				Help:    "time from submission to a terminal state",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
			},
		),
		inFlight: promautoFactory.NewGauge(
			prometheus.GaugeOpts{
				Name: "supplychain_operations_in_flight",
				Help: "operations submitted and not yet resolved",
			},
		),
	}
}
