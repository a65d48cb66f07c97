// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package debugapi exposes the debug API used to inspect the balance, the
// settlements and the transfers of a running node.
package debugapi

import (
	"math/big"
	"net/http"
	"sync"

	"github.com/ethersphere/paysettle/pkg/accounting"
	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/plugin"
	"github.com/ethersphere/paysettle/pkg/tracing"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/prometheus/client_golang/prometheus"
)

// Plugin is the connection state of the node.
type Plugin interface {
	Connected() bool
	Account() (string, error)
	Info() (plugin.Info, error)
	Balance() (accounting.BalanceView, error)
}

// Settlements reports the settlements in both directions.
type Settlements interface {
	TotalSent() *big.Int
	TotalReceived() *big.Int
	Records() ([]ledger.Record, error)
}

// Transfers looks up transfers by id.
type Transfers interface {
	Get(id string) (transferlog.Transfer, error)
}

// Service implements http.Handler interface to be used in HTTP server.
type Service struct {
	plugin          Plugin
	settlements     Settlements
	transfers       Transfers
	logger          logging.Logger
	tracer          *tracing.Tracer
	metricsRegistry *prometheus.Registry
	// handler is changed in the Configure method
	handler   http.Handler
	handlerMu sync.RWMutex
}

// New creates a new Debug API Service with only basic routers enabled in order
// to expose /health endpoint and metrics. It is useful to expose these
// endpoints before all dependencies are configured.
func New(logger logging.Logger, tracer *tracing.Tracer) *Service {
	s := new(Service)
	s.logger = logger
	s.tracer = tracer
	s.metricsRegistry = newMetricsRegistry()

	s.setRouter(s.newBasicRouter())

	return s
}

// Configure injects required dependencies and constructs HTTP routes that
// depend on them. It is intended and safe to call this method only once.
func (s *Service) Configure(p Plugin, settlements Settlements, transfers Transfers) {
	s.plugin = p
	s.settlements = settlements
	s.transfers = transfers

	s.setRouter(s.newRouter())
}

// ServeHTTP implements http.Handler interface.
func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// protect handler as it is changed by the Configure method
	s.handlerMu.RLock()
	h := s.handler
	s.handlerMu.RUnlock()

	h.ServeHTTP(w, r)
}
