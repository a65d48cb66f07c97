// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi_test

import (
	"context"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ethersphere/paysettle/pkg/debugapi"
	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/plugin"
	"github.com/ethersphere/paysettle/pkg/settlement/coordinator"
	"github.com/ethersphere/paysettle/pkg/settlement/mock"
	statestore "github.com/ethersphere/paysettle/pkg/statestore/mock"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/ethersphere/paysettle/pkg/valuetracker"
	"resenje.org/web"
)

type testServerOptions struct {
	NetworkOpts  []mock.Option
	MaxUnsecured int64
	Connect      bool
	Unconfigured bool
}

type testServer struct {
	Client      *http.Client
	Plugin      *plugin.Plugin
	Network     *mock.Network
	Coordinator *coordinator.Coordinator
}

func newTestServer(t *testing.T, o testServerOptions) *testServer {
	t.Helper()

	logger := logging.New(ioutil.Discard, 0)
	store := statestore.NewStateStore()
	t.Cleanup(func() { store.Close() })

	network := mock.New(o.NetworkOpts...)

	transfers, err := transferlog.New(store, logger, "transfers")
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.New(store, logger)
	if err != nil {
		t.Fatal(err)
	}
	tracker, err := valuetracker.New(store, logger, "amount_settled")
	if err != nil {
		t.Fatal(err)
	}
	c := coordinator.New(coordinator.Options{
		Network:     network,
		Tracker:     tracker,
		Ledger:      l,
		PeerAddress: "peer",
		Logger:      logger,
	})
	p := plugin.New(plugin.Options{
		AuthToken:     "token",
		MaxUnsecured:  big.NewInt(o.MaxUnsecured),
		CurrencyScale: plugin.DefaultCurrencyScale,
		Network:       network,
		Transfers:     transfers,
		Settled:       l,
		Coordinator:   c,
		Logger:        logger,
	})
	if o.Connect {
		if err := p.Connect(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	s := debugapi.New(logger, nil)
	if !o.Unconfigured {
		s.Configure(p, c, transfers)
	}
	s.MustRegisterMetrics(c.Metrics()...)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	client := &http.Client{
		Transport: web.RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			u, err := url.Parse(ts.URL + r.URL.String())
			if err != nil {
				return nil, err
			}
			r.URL = u
			return ts.Client().Transport.RoundTrip(r)
		}),
	}
	return &testServer{
		Client:      client,
		Plugin:      p,
		Network:     network,
		Coordinator: c,
	}
}
