/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package metrics holds the prometheus collectors for the ledger service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "spend_ledger"

var (
	// LedgerOpsTotal counts ledger operations by type.
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Total ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpErrors counts failed ledger operations by type.
	LedgerOpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operation_errors_total",
			Help:      "Failed ledger operations by type.",
		},
		[]string{"type"},
	)

	// LedgerOpDuration observes operation latency by type.
	LedgerOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// InvalidFxRateTotal fires whenever a spend draws from a limit whose
	// fx_rate is not positive. Any increase should page.
	InvalidFxRateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_fx_rate_draws_total",
			Help:      "Allocation chunks drawn from spending limits with fx_rate <= 0.",
		},
	)

	// DuplicateEventsTotal counts replayed events absorbed as duplicates.
	DuplicateEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_events_total",
			Help:      "Events recognised as replays of an already recorded transaction.",
		},
		[]string{"event"},
	)

	// WebhookEventsTotal counts webhook events by event name and outcome.
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook events received by event and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// ThresholdAlertsTotal counts tank threshold notifications sent.
	ThresholdAlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threshold_alerts_total",
			Help:      "Tank threshold notifications by threshold.",
		},
		[]string{"threshold"},
	)

	// MirrorFailuresTotal counts best-effort mirror postings that failed.
	MirrorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_failures_total",
			Help:      "Failed mirror ledger postings by operation.",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(
		LedgerOpsTotal,
		LedgerOpErrors,
		LedgerOpDuration,
		InvalidFxRateTotal,
		DuplicateEventsTotal,
		WebhookEventsTotal,
		ThresholdAlertsTotal,
		MirrorFailuresTotal,
	)
}

// ObserveOp increments the operation counter and returns a function that
// records the duration and, for a non-nil error, the failure.
func ObserveOp(opType string) func(err error) {
	LedgerOpsTotal.WithLabelValues(opType).Inc()
	start := time.Now()
	return func(err error) {
		LedgerOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
		if err != nil {
			LedgerOpErrors.WithLabelValues(opType).Inc()
		}
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
