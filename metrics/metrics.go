// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package metrics

import (
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Registry = prometheus.NewRegistry()

	GRPCMetrics = grpcprometheus.NewServerMetrics(
		func(c *prometheus.CounterOpts) {
			c.Namespace = "mds"
		},
	)
)

func init() {
	Registry.MustRegister(GRPCMetrics)
	GRPCMetrics.EnableHandlingTimeHistogram(
		func(h *prometheus.HistogramOpts) {
			h.Namespace = "mds"
		},
	)
}

// DaemonMetrics are the "performance counters" created during
// Supervisor.Init (spec.md §4.A) and sampled by the periodic tick
// (spec.md §4.E).
type DaemonMetrics struct {
	BalancerLoad   prometheus.Gauge
	SlowOps        prometheus.Counter
	OSDEpochBarrier prometheus.Gauge
	InstalledEpoch prometheus.Gauge
	Beacons        prometheus.Counter
	Respawns       prometheus.Counter
	Suicides       prometheus.Counter
}

// NewDaemonMetrics registers a fresh set of daemon performance counters
// into Registry, labelled with the daemon name so that sets built under
// different names can coexist in one process (tests construct several in
// one process); a second set under the same name collides on registration
// unless the first was removed with Unregister.
func NewDaemonMetrics(name string) *DaemonMetrics {
	labels := prometheus.Labels{"name": name}
	m := &DaemonMetrics{
		BalancerLoad: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mds",
			Name:        "balancer_load",
			Help:        "most recently sampled balancer load figure",
			ConstLabels: labels,
		}),
		SlowOps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mds",
			Name:        "slow_ops_total",
			Help:        "count of in-flight ops the tick found exceeding the complaint time",
			ConstLabels: labels,
		}),
		OSDEpochBarrier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mds",
			Name:        "osd_epoch_barrier",
			Help:        "minimum object-store map epoch required of clients served by this daemon",
			ConstLabels: labels,
		}),
		InstalledEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mds",
			Name:        "installed_cluster_map_epoch",
			Help:        "most recently installed cluster map epoch",
			ConstLabels: labels,
		}),
		Beacons: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mds",
			Name:        "beacons_sent_total",
			Help:        "count of beacons sent to the monitor",
			ConstLabels: labels,
		}),
		Respawns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mds",
			Name:        "respawns_total",
			Help:        "count of times this process called respawn",
			ConstLabels: labels,
		}),
		Suicides: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "mds",
			Name:        "suicides_total",
			Help:        "count of times this process called suicide",
			ConstLabels: labels,
		}),
	}

	Registry.MustRegister(
		m.BalancerLoad, m.SlowOps, m.OSDEpochBarrier, m.InstalledEpoch,
		m.Beacons, m.Respawns, m.Suicides,
	)
	return m
}

// Unregister removes m's collectors from Registry, used by tests that
// construct many DaemonMetrics in the same process.
func (m *DaemonMetrics) Unregister() {
	Registry.Unregister(m.BalancerLoad)
	Registry.Unregister(m.SlowOps)
	Registry.Unregister(m.OSDEpochBarrier)
	Registry.Unregister(m.InstalledEpoch)
	Registry.Unregister(m.Beacons)
	Registry.Unregister(m.Respawns)
	Registry.Unregister(m.Suicides)
}
