// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"github.com/ethersphere/paysettle"
	"github.com/ethersphere/paysettle/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func newMetricsRegistry() *prometheus.Registry {
	r := metrics.NewRegistry()

	r.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Name:      "info",
		Help:      "Paysettle information.",
		ConstLabels: prometheus.Labels{
			"version": paysettle.Version,
		},
	}))

	return r
}

// MustRegisterMetrics registers the collectors of a component.
func (s *Service) MustRegisterMetrics(cs ...prometheus.Collector) {
	s.metricsRegistry.MustRegister(cs...)
}
