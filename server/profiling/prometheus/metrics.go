/*
 * Copyright 2024 The Cowrite Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prometheus provides a Prometheus metrics registry and the metrics
// of the server.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cowrite-team/cowrite/internal/version"
)

const (
	namespace = "cowrite"
)

// Metrics manages the metric information that the server collects.
type Metrics struct {
	registry      *prometheus.Registry
	serverVersion *prometheus.GaugeVec

	reconcileResponseSeconds  prometheus.Histogram
	receivedOperationsTotal   prometheus.Counter
	conflictedOperationsTotal prometheus.Counter

	watchConnectionsGauge prometheus.Gauge

	backgroundGoroutinesTotal *prometheus.GaugeVec
}

// NewMetrics creates an instance of Metrics.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		reconcileResponseSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "response_seconds",
			Help:      "The response time of submitting an operation.",
		}),
		receivedOperationsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "received_operations_total",
			Help:      "The total count of operations submitted by clients.",
		}),
		conflictedOperationsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "conflicted_operations_total",
			Help:      "The total count of operations transformed against concurrent history.",
		}),
		watchConnectionsGauge: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "connections",
			Help:      "The number of active watch connections.",
		}),
		backgroundGoroutinesTotal: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "goroutines_total",
			Help:      "The total number of goroutines attached by background tasks.",
		}, []string{"task_type"}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics, nil
}

// ObserveReconcileResponseSeconds adds the response time of submitting an
// operation.
func (m *Metrics) ObserveReconcileResponseSeconds(seconds float64) {
	m.reconcileResponseSeconds.Observe(seconds)
}

// AddReceivedOperations increments the number of submitted operations.
func (m *Metrics) AddReceivedOperations() {
	m.receivedOperationsTotal.Inc()
}

// AddConflictedOperations increments the number of operations that were
// transformed against concurrent history before applying.
func (m *Metrics) AddConflictedOperations() {
	m.conflictedOperationsTotal.Inc()
}

// AddWatchConnections increments the number of active watch connections.
func (m *Metrics) AddWatchConnections() {
	m.watchConnectionsGauge.Inc()
}

// RemoveWatchConnections decrements the number of active watch connections.
func (m *Metrics) RemoveWatchConnections() {
	m.watchConnectionsGauge.Dec()
}

// AddBackgroundGoroutines increases the total number of goroutines attached
// by background tasks.
func (m *Metrics) AddBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		"task_type": taskType,
	}).Inc()
}

// RemoveBackgroundGoroutines decreases the total number of goroutines
// attached by background tasks.
func (m *Metrics) RemoveBackgroundGoroutines(taskType string) {
	m.backgroundGoroutinesTotal.With(prometheus.Labels{
		"task_type": taskType,
	}).Dec()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
