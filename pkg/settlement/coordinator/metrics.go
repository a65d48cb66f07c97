// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coordinator

import (
	m "github.com/ethersphere/paysettle/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	TotalSentAmount       prometheus.Counter
	TotalReceivedAmount   prometheus.Counter
	SettlementsSentCount  prometheus.Counter
	DispatchFailuresCount prometheus.Counter
	UndispatchedAmount    prometheus.Counter
	ClaimsVerifiedCount   prometheus.Counter
	ClaimsIgnoredCount    prometheus.Counter
	DuplicateClaimsCount  prometheus.Counter
}

func newMetrics() metrics {
	subsystem := "settlement"

	return metrics{
		TotalSentAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "total_sent_amount",
			Help:      "Amount sent to the peer in settlement payments",
		}),
		TotalReceivedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "total_received_amount",
			Help:      "Amount received from the peer in verified settlement payments",
		}),
		SettlementsSentCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "sent_count",
			Help:      "Number of settlement payments sent",
		}),
		DispatchFailuresCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "dispatch_failures_count",
			Help:      "Number of settlement payments promised but not sent",
		}),
		UndispatchedAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "undispatched_amount",
			Help:      "Amount promised to the peer whose payment failed to dispatch",
		}),
		ClaimsVerifiedCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "claims_verified_count",
			Help:      "Number of claims verified and recorded",
		}),
		ClaimsIgnoredCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "claims_ignored_count",
			Help:      "Number of claims ignored because the payment could not be verified",
		}),
		DuplicateClaimsCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "duplicate_claims_count",
			Help:      "Number of verified claims for payments recorded before",
		}),
	}
}

// Metrics returns the prometheus Collector for the coordinator.
func (c *Coordinator) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(c.metrics)
}
