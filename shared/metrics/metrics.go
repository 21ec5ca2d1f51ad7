// Copyright 2025 AxonFlow
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

// Package metrics exposes Prometheus collectors for the honeypot services.
// Collectors are registered once at import time and shared by all emulators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	ConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeynet_connections_total",
			Help: "Total number of TCP connections accepted, by service",
		},
		[]string{"service"},
	)
	AttacksRecordedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeynet_attacks_recorded_total",
			Help: "Total number of attack records persisted, by service and threat type",
		},
		[]string{"service", "threat_type"},
	)
	StoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "honeynet_store_errors_total",
			Help: "Total number of record store failures, by operation",
		},
		[]string{"operation"},
	)
	ActiveSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "honeynet_active_sessions",
			Help: "Number of currently open interactive sessions, by service",
		},
		[]string{"service"},
	)
)

func init() {
	// Register Prometheus metrics
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(AttacksRecordedTotal)
	prometheus.MustRegister(StoreErrorsTotal)
	prometheus.MustRegister(ActiveSessions)
}
