// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package coordinator_test

import (
	"context"
	"errors"
	"io/ioutil"
	"math/big"
	"sync/atomic"
	"testing"

	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/settlement/coordinator"
	"github.com/ethersphere/paysettle/pkg/settlement/mock"
	statestore "github.com/ethersphere/paysettle/pkg/statestore/mock"
	"github.com/ethersphere/paysettle/pkg/storage"
	"github.com/ethersphere/paysettle/pkg/valuetracker"
	"golang.org/x/sync/errgroup"
)

const peerAddress = "peer-account"

func newCoordinator(t *testing.T, store storage.StateStorer, network settlement.Network) *coordinator.Coordinator {
	t.Helper()

	logger := logging.New(ioutil.Discard, 0)

	tracker, err := valuetracker.New(store, logger, "amount_settled")
	if err != nil {
		t.Fatal(err)
	}
	l, err := ledger.New(store, logger)
	if err != nil {
		t.Fatal(err)
	}
	return coordinator.New(coordinator.Options{
		Network:     network,
		Tracker:     tracker,
		Ledger:      l,
		PeerAddress: peerAddress,
		Logger:      logger,
	})
}

func sentAmounts(n *mock.Network) []int64 {
	var amounts []int64
	for _, s := range n.Sent() {
		amounts = append(amounts, s.Amount.Int64())
	}
	return amounts
}

func TestSettleUpTo(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New()
	c := newCoordinator(t, store, network)

	for _, tc := range []struct {
		owed    int64
		payment int64
	}{
		{owed: 30, payment: 30},
		{owed: 30},
		{owed: 50, payment: 20},
		{owed: 40},
	} {
		receipt, err := c.SettleUpTo(context.Background(), big.NewInt(tc.owed))
		if err != nil {
			t.Fatal(err)
		}
		if tc.payment == 0 {
			if receipt != nil {
				t.Fatalf("owed %d: got receipt for %d, want none", tc.owed, receipt.Amount)
			}
			continue
		}
		if receipt == nil {
			t.Fatalf("owed %d: got no receipt, want payment of %d", tc.owed, tc.payment)
		}
		if receipt.Amount.Int64() != tc.payment {
			t.Fatalf("owed %d: got payment of %d, want %d", tc.owed, receipt.Amount, tc.payment)
		}
		if receipt.Claim().PaymentID != receipt.PaymentID {
			t.Fatalf("got claim for %q, want %q", receipt.Claim().PaymentID, receipt.PaymentID)
		}
	}

	sent := network.Sent()
	if len(sent) != 2 {
		t.Fatalf("got %d payments, want 2", len(sent))
	}
	for _, s := range sent {
		if s.Payee != peerAddress {
			t.Errorf("got payee %q, want %q", s.Payee, peerAddress)
		}
	}
	if got := sentAmounts(network); got[0] != 30 || got[1] != 20 {
		t.Errorf("got payments %v, want [30 20]", got)
	}
	if got := c.TotalSent().Int64(); got != 50 {
		t.Errorf("got total sent %d, want 50", got)
	}
}

func TestSettleUpToAfterRestart(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New()
	c := newCoordinator(t, store, network)
	if _, err := c.SettleUpTo(context.Background(), big.NewInt(30)); err != nil {
		t.Fatal(err)
	}

	c = newCoordinator(t, store, network)
	receipt, err := c.SettleUpTo(context.Background(), big.NewInt(30))
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Fatalf("got receipt for %d after restart, want none", receipt.Amount)
	}
	if got := len(network.Sent()); got != 1 {
		t.Fatalf("got %d payments, want 1", got)
	}
}

func TestSettleUpToDispatchFailure(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	errUnavailable := errors.New("bank unavailable")
	var calls int32
	network := mock.New(mock.WithPayFunc(func(ctx context.Context, payee string, amount *big.Int) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errUnavailable
	}))
	c := newCoordinator(t, store, network)

	_, err := c.SettleUpTo(context.Background(), big.NewInt(30))
	if !errors.Is(err, coordinator.ErrNetworkDispatch) {
		t.Fatalf("got error %v, want %v", err, coordinator.ErrNetworkDispatch)
	}
	if !errors.Is(err, errUnavailable) {
		t.Fatalf("got error %v, want %v", err, errUnavailable)
	}
	var dispatchErr *coordinator.DispatchError
	if !errors.As(err, &dispatchErr) {
		t.Fatalf("got error %v, want dispatch error", err)
	}
	if dispatchErr.Amount.Int64() != 30 {
		t.Fatalf("got undispatched amount %d, want 30", dispatchErr.Amount)
	}

	// the amount stays promised
	if got := c.TotalSent().Int64(); got != 30 {
		t.Fatalf("got total sent %d, want 30", got)
	}
	receipt, err := c.SettleUpTo(context.Background(), big.NewInt(30))
	if err != nil {
		t.Fatal(err)
	}
	if receipt != nil {
		t.Fatal("retry dispatched a payment")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("got %d pay calls, want 1", got)
	}
}

func TestSettleUpToInvalid(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	c := newCoordinator(t, store, mock.New())

	for _, owed := range []*big.Int{nil, big.NewInt(-1)} {
		if _, err := c.SettleUpTo(context.Background(), owed); !errors.Is(err, coordinator.ErrInvalidAmount) {
			t.Fatalf("got error %v, want %v", err, coordinator.ErrInvalidAmount)
		}
	}
}

// TestSettleUpToConcurrent checks that concurrent calls with the same
// obligation dispatch exactly one payment.
func TestSettleUpToConcurrent(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New()
	c := newCoordinator(t, store, network)

	var receipts int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			receipt, err := c.SettleUpTo(context.Background(), big.NewInt(100))
			if err != nil {
				return err
			}
			if receipt != nil {
				atomic.AddInt32(&receipts, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if receipts != 1 {
		t.Fatalf("got %d receipts, want 1", receipts)
	}
	if got := sentAmounts(network); len(got) != 1 || got[0] != 100 {
		t.Fatalf("got payments %v, want [100]", got)
	}
}

func TestAcceptClaim(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New(mock.WithPayment("tx1", big.NewInt(25)))
	c := newCoordinator(t, store, network)

	v, err := c.AcceptClaim(context.Background(), settlement.Claim{PaymentID: "tx1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != coordinator.ClaimVerified || !v.Applied || v.Amount.Int64() != 25 {
		t.Fatalf("got %s applied %v amount %d, want verified applied 25", v.Status, v.Applied, v.Amount)
	}
	if got := c.TotalReceived().Int64(); got != 25 {
		t.Fatalf("got total received %d, want 25", got)
	}

	v, err = c.AcceptClaim(context.Background(), settlement.Claim{PaymentID: "tx1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != coordinator.ClaimVerified || v.Applied {
		t.Fatalf("got %s applied %v, want verified not applied", v.Status, v.Applied)
	}
	if got := c.TotalReceived().Int64(); got != 25 {
		t.Fatalf("got total received %d after replay, want 25", got)
	}

	records, err := c.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "tx1" {
		t.Fatalf("got records %+v, want tx1 only", records)
	}
}

func TestAcceptClaimUnknownPayment(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New()
	c := newCoordinator(t, store, network)

	v, err := c.AcceptClaim(context.Background(), settlement.Claim{PaymentID: "tx1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != coordinator.ClaimIgnored {
		t.Fatalf("got %s, want %s", v.Status, coordinator.ClaimIgnored)
	}

	// the payment propagated
	network.AddPayment("tx1", big.NewInt(10))

	v, err = c.AcceptClaim(context.Background(), settlement.Claim{PaymentID: "tx1"})
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != coordinator.ClaimVerified || !v.Applied {
		t.Fatalf("got %s applied %v, want verified applied", v.Status, v.Applied)
	}
	if got := c.TotalReceived().Int64(); got != 10 {
		t.Fatalf("got total received %d, want 10", got)
	}
}

func TestAcceptClaimVerificationFailed(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	errTimeout := errors.New("timeout")
	c := newCoordinator(t, store, mock.New(mock.WithLookupFunc(func(ctx context.Context, id string) (settlement.Payment, error) {
		return settlement.Payment{}, errTimeout
	})))

	for _, claim := range []settlement.Claim{
		{PaymentID: "tx1"},
		{},
	} {
		v, err := c.AcceptClaim(context.Background(), claim)
		if !errors.Is(err, coordinator.ErrVerificationFailed) {
			t.Fatalf("claim %q: got error %v, want %v", claim.PaymentID, err, coordinator.ErrVerificationFailed)
		}
		if v.Status != coordinator.ClaimIgnored {
			t.Fatalf("claim %q: got %s, want %s", claim.PaymentID, v.Status, coordinator.ClaimIgnored)
		}
	}
	if got := c.TotalReceived().Sign(); got != 0 {
		t.Fatalf("got total received %d, want 0", c.TotalReceived())
	}
}

// TestAcceptClaimConcurrent checks that concurrent claims for the same
// payment record it once.
func TestAcceptClaimConcurrent(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	network := mock.New(mock.WithPayment("tx1", big.NewInt(25)))
	c := newCoordinator(t, store, network)

	var applied int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			v, err := c.AcceptClaim(context.Background(), settlement.Claim{PaymentID: "tx1"})
			if err != nil {
				return err
			}
			if v.Applied {
				atomic.AddInt32(&applied, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if applied != 1 {
		t.Fatalf("got %d applied claims, want 1", applied)
	}
	if got := c.TotalReceived().Int64(); got != 25 {
		t.Fatalf("got total received %d, want 25", got)
	}
}

func TestMetrics(t *testing.T) {
	store := statestore.NewStateStore()
	defer store.Close()

	c := newCoordinator(t, store, mock.New())
	if got := len(c.Metrics()); got != 8 {
		t.Fatalf("got %d collectors, want 8", got)
	}
}
