// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package node wires the settlement components into a running node.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ethersphere/paysettle/pkg/debugapi"
	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/plugin"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/settlement/coordinator"
	"github.com/ethersphere/paysettle/pkg/settlement/starling"
	"github.com/ethersphere/paysettle/pkg/tracing"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/ethersphere/paysettle/pkg/valuetracker"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

const (
	transferLogName           = "transfers"
	amountSettledName         = "amount_settled"
	debugAPIReadHeaderTimeout = 30 * time.Second
)

// ErrShutdownInProgress is returned by Shutdown when it was called before.
var ErrShutdownInProgress = errors.New("shutdown in progress")

// Node holds the running settlement components.
type Node struct {
	plugin           *plugin.Plugin
	coordinator      *coordinator.Coordinator
	transfers        *transferlog.Log
	debugAPIServer   *http.Server
	debugAPIAddr     net.Addr
	tracerCloser     io.Closer
	stateStoreCloser io.Closer
	logger           logging.Logger

	shutdownInProgress bool
	shutdownMutex      sync.Mutex
}

// Options for the node.
type Options struct {
	DataDir            string
	AuthToken          string
	MaxUnsecured       *big.Int
	PeerAddress        string
	StarlingEndpoint   string
	CurrencyScale      int
	DebugAPIAddr       string
	TracingEnabled     bool
	TracingEndpoint    string
	TracingServiceName string
	// Network replaces the Starling client when set.
	Network settlement.Network
}

// NewNode opens the state, connects to the settlement network and starts the
// debug API when an address is configured.
func NewNode(ctx context.Context, logger logging.Logger, o Options) (_ *Node, err error) {
	tracer, tracerCloser, err := tracing.NewTracer(&tracing.Options{
		Enabled:     o.TracingEnabled,
		Endpoint:    o.TracingEndpoint,
		ServiceName: o.TracingServiceName,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}

	n := &Node{
		tracerCloser: tracerCloser,
		logger:       logger,
	}

	defer func() {
		if err != nil {
			if err2 := n.Shutdown(); err2 != nil {
				logger.Errorf("node shutdown: %v", err2)
			}
		}
	}()

	if o.PeerAddress == "" {
		return nil, fmt.Errorf("%w: missing peer address", plugin.ErrInvalidFields)
	}

	network := o.Network
	if network == nil {
		network, err = starling.New(starling.Options{
			Endpoint: o.StarlingEndpoint,
			Token:    o.AuthToken,
			Currency: plugin.CurrencyCode,
			Tracer:   tracer,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", plugin.ErrInvalidFields, err)
		}
	}

	var debugAPIService *debugapi.Service
	if o.DebugAPIAddr != "" {
		debugAPIListener, err := net.Listen("tcp", o.DebugAPIAddr)
		if err != nil {
			return nil, fmt.Errorf("debug api listener: %w", err)
		}

		debugAPIService = debugapi.New(logger, tracer)
		debugAPIServer := &http.Server{
			ReadHeaderTimeout: debugAPIReadHeaderTimeout,
			Handler:           debugAPIService,
			ErrorLog:          log.New(logger.WriterLevel(logrus.ErrorLevel), "", 0),
		}

		go func() {
			logger.Infof("debug api address: %s", debugAPIListener.Addr())

			if err := debugAPIServer.Serve(debugAPIListener); err != nil && err != http.ErrServerClosed {
				logger.Debugf("debug api server: %v", err)
				logger.Error("unable to serve debug api")
			}
		}()

		n.debugAPIServer = debugAPIServer
		n.debugAPIAddr = debugAPIListener.Addr()
	}

	stateStore, err := InitStateStore(logger, o.DataDir)
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	n.stateStoreCloser = stateStore

	transfers, err := transferlog.New(stateStore, logger, transferLogName)
	if err != nil {
		return nil, fmt.Errorf("transfer log: %w", err)
	}
	l, err := ledger.New(stateStore, logger)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	tracker, err := valuetracker.New(stateStore, logger, amountSettledName)
	if err != nil {
		return nil, fmt.Errorf("value tracker: %w", err)
	}

	c := coordinator.New(coordinator.Options{
		Network:     network,
		Tracker:     tracker,
		Ledger:      l,
		PeerAddress: o.PeerAddress,
		Tracer:      tracer,
		Logger:      logger,
	})

	p := plugin.New(plugin.Options{
		AuthToken:     o.AuthToken,
		MaxUnsecured:  o.MaxUnsecured,
		CurrencyScale: o.CurrencyScale,
		Network:       network,
		Transfers:     transfers,
		Settled:       l,
		Coordinator:   c,
		Logger:        logger,
	})
	if err := p.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	n.plugin = p
	n.coordinator = c
	n.transfers = transfers

	if debugAPIService != nil {
		debugAPIService.MustRegisterMetrics(logger.Metrics()...)
		debugAPIService.MustRegisterMetrics(p.Metrics()...)
		debugAPIService.MustRegisterMetrics(c.Metrics()...)

		debugAPIService.Configure(p, c, transfers)
	}

	return n, nil
}

// Plugin returns the framework hooks of the node.
func (n *Node) Plugin() *plugin.Plugin {
	return n.plugin
}

// Coordinator returns the settlement coordinator of the node.
func (n *Node) Coordinator() *coordinator.Coordinator {
	return n.coordinator
}

// DebugAPIAddr returns the address the debug API listens on or nil if it is
// disabled.
func (n *Node) DebugAPIAddr() net.Addr {
	return n.debugAPIAddr
}

// Shutdown stops the debug API, disconnects the plugin and closes the state.
func (n *Node) Shutdown() error {
	n.shutdownMutex.Lock()
	if n.shutdownInProgress {
		n.shutdownMutex.Unlock()
		return ErrShutdownInProgress
	}
	n.shutdownInProgress = true
	n.shutdownMutex.Unlock()

	var mErr error

	// tryClose is a convenient closure which decrease
	// repetitive io.Closer tryClose procedure.
	tryClose := func(c io.Closer, errMsg string) {
		if c == nil {
			return
		}
		if err := c.Close(); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", errMsg, err))
		}
	}

	if n.debugAPIServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := n.debugAPIServer.Shutdown(ctx); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("debug api server: %w", err))
		}
	}

	if n.plugin != nil {
		n.plugin.Disconnect()
	}

	tryClose(n.tracerCloser, "tracer")
	tryClose(n.stateStoreCloser, "statestore")

	return mErr
}
