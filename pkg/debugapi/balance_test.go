// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi_test

import (
	"context"
	"math/big"
	"net/http"
	"testing"

	"github.com/ethersphere/paysettle"
	"github.com/ethersphere/paysettle/pkg/bigint"
	"github.com/ethersphere/paysettle/pkg/debugapi"
	"github.com/ethersphere/paysettle/pkg/jsonhttp"
	"github.com/ethersphere/paysettle/pkg/jsonhttp/jsonhttptest"
	"github.com/ethersphere/paysettle/pkg/plugin"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/settlement/mock"
	"github.com/ethersphere/paysettle/pkg/transferlog"
)

func TestBalance(t *testing.T) {
	testServer := newTestServer(t, testServerOptions{
		MaxUnsecured: 100,
		Connect:      true,
		NetworkOpts:  []mock.Option{mock.WithPayment("tx1", big.NewInt(60))},
	})
	ctx := context.Background()

	if err := testServer.Plugin.HandleIncomingPrepare(ctx, transferlog.Transfer{ID: "t1", Amount: big.NewInt(150)}); err == nil {
		t.Fatal("transfer above the limit admitted")
	}
	if _, err := testServer.Plugin.HandleIncomingClaim(ctx, settlement.Claim{PaymentID: "tx1"}); err != nil {
		t.Fatal(err)
	}
	if err := testServer.Plugin.HandleIncomingPrepare(ctx, transferlog.Transfer{ID: "t1", Amount: big.NewInt(150)}); err != nil {
		t.Fatal(err)
	}

	jsonhttptest.Request(t, testServer.Client, http.MethodGet, "/balance", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(debugapi.BalanceResponse{
			Incoming:     bigint.NewBigInt(150),
			Settled:      bigint.NewBigInt(60),
			Unsecured:    bigint.NewBigInt(90),
			MaxUnsecured: bigint.NewBigInt(100),
		}),
	)
}

func TestBalanceNotConnected(t *testing.T) {
	testServer := newTestServer(t, testServerOptions{MaxUnsecured: 100})

	jsonhttptest.Request(t, testServer.Client, http.MethodGet, "/balance", http.StatusServiceUnavailable,
		jsonhttptest.WithExpectedJSONResponse(jsonhttp.StatusResponse{
			Message: plugin.ErrNotConnected.Error(),
			Code:    http.StatusServiceUnavailable,
		}),
	)
}

func TestInfo(t *testing.T) {
	testServer := newTestServer(t, testServerOptions{
		MaxUnsecured: 100,
		Connect:      true,
		NetworkOpts:  []mock.Option{mock.WithAccountHolder("holder-1")},
	})

	jsonhttptest.Request(t, testServer.Client, http.MethodGet, "/info", http.StatusOK,
		jsonhttptest.WithExpectedJSONResponse(debugapi.InfoResponse{
			Account:       "g.dev.uk.starling.holder-1",
			Prefix:        "g.dev.uk.starling.",
			CurrencyCode:  "GBP",
			CurrencyScale: 2,
			Version:       paysettle.Version,
		}),
	)

	jsonhttptest.Request(t, testServer.Client, http.MethodPost, "/info", http.StatusMethodNotAllowed)
}
