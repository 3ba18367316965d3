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

package devnet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type devnetMetrics struct {
	queueDepth prometheus.Gauge
	slot       prometheus.Gauge
	operations *prometheus.CounterVec
}

func newDevnetMetrics(promRegistry prometheus.Registerer) *devnetMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &devnetMetrics{
		queueDepth: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "supplychain_devnet_queue_depth",
			Help: "operations waiting for execution",
		}),
		slot: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "supplychain_devnet_slot",
			Help: "operations executed since start",
		}),
		operations: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "supplychain_devnet_operations_total",
				Help: "executed operations by instruction and result",
			},
			[]string{"instruction", "result"},
		),
	}
}
