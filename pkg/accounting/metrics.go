// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accounting

import (
	m "github.com/ethersphere/paysettle/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	// all metrics fields must be exported
	// to be able to return them by Metrics()
	// using reflection
	AdmittedTransfersCount prometheus.Counter
	RejectedTransfersCount prometheus.Counter
	UnsecuredBalance       prometheus.Gauge
}

func newMetrics() metrics {
	subsystem := "accounting"

	return metrics{
		AdmittedTransfersCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "admitted_transfers_count",
			Help:      "Number of incoming transfers admitted within the unsecured limit",
		}),
		RejectedTransfersCount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "rejected_transfers_count",
			Help:      "Number of incoming transfers rejected for exceeding the unsecured limit",
		}),
		UnsecuredBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: m.Namespace,
			Subsystem: subsystem,
			Name:      "unsecured_balance",
			Help:      "Value transferred by the peer and not yet settled",
		}),
	}
}

// Metrics returns the prometheus Collector for the balance guard.
func (g *Guard) Metrics() []prometheus.Collector {
	return m.PrometheusCollectorsFromFields(g.metrics)
}
