// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package coordinator drives settlement in both directions. Outgoing, it
// pays the peer the part of the obligation that was not promised before.
// Incoming, it verifies the peer's claims on the settlement network and
// records them in the ledger.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/tracing"
	"github.com/ethersphere/paysettle/pkg/valuetracker"
	"resenje.org/singleflight"
)

var (
	// ErrNetworkDispatch is matched by every DispatchError.
	ErrNetworkDispatch = errors.New("settlement payment dispatch failed")
	// ErrVerificationFailed is returned when a claim could not be checked
	// against the settlement network. The claim is ignored.
	ErrVerificationFailed = errors.New("settlement claim verification failed")
	// ErrInvalidAmount is returned for nil or negative obligations.
	ErrInvalidAmount = errors.New("invalid amount")
)

// DispatchError is returned when the network failed to send a payment. The
// amount is already recorded as promised and will not be paid by a retry.
type DispatchError struct {
	Amount *big.Int
	Err    error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch payment of %d: %v", e.Amount, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func (e *DispatchError) Is(target error) bool {
	return target == ErrNetworkDispatch
}

// Status is the outcome of a claim.
type Status int

const (
	ClaimIgnored Status = iota
	ClaimVerified
)

func (s Status) String() string {
	switch s {
	case ClaimIgnored:
		return "ignored"
	case ClaimVerified:
		return "verified"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Verification is the result of AcceptClaim. Applied is false for verified
// claims that were recorded before.
type Verification struct {
	Status  Status
	Applied bool
	Amount  *big.Int
}

// ValueTracker keeps the total amount promised to the peer.
type ValueTracker interface {
	SetIfMax(v valuetracker.Value) (valuetracker.Value, error)
	Get() valuetracker.Value
}

// Ledger keeps the settlements received from the peer.
type Ledger interface {
	Record(id string, amount *big.Int) (bool, error)
	TotalRecorded() *big.Int
	Records() ([]ledger.Record, error)
}

// Options for the coordinator.
type Options struct {
	Network     settlement.Network
	Tracker     ValueTracker
	Ledger      Ledger
	PeerAddress string
	Tracer      *tracing.Tracer
	Logger      logging.Logger
}

// Coordinator settles with a single peer.
type Coordinator struct {
	network     settlement.Network
	tracker     ValueTracker
	ledger      Ledger
	peerAddress string
	tracer      *tracing.Tracer
	logger      logging.Logger
	lookups     singleflight.Group
	metrics     metrics
}

// New creates a coordinator.
func New(o Options) *Coordinator {
	return &Coordinator{
		network:     o.Network,
		tracker:     o.Tracker,
		ledger:      o.Ledger,
		peerAddress: o.PeerAddress,
		tracer:      o.Tracer,
		logger:      o.Logger,
		metrics:     newMetrics(),
	}
}

// SettleUpTo pays the peer so that the total promised to it reaches owed. It
// returns a nil receipt if owed was already promised. Calling it repeatedly
// with the same obligation pays only once.
func (c *Coordinator) SettleUpTo(ctx context.Context, owed *big.Int) (receipt *settlement.Receipt, err error) {
	if owed == nil || owed.Sign() < 0 {
		return nil, ErrInvalidAmount
	}

	span, logger, ctx := c.tracer.StartSpanFromContext(ctx, "settle-up-to", c.logger)
	defer func() { tracing.FinishSpan(span, err) }()

	previous, err := c.tracker.SetIfMax(valuetracker.Value{Value: owed})
	if err != nil {
		return nil, fmt.Errorf("propose settlement: %w", err)
	}

	delta := new(big.Int).Sub(owed, previous.Value)
	if delta.Sign() <= 0 {
		logger.Tracef("coordinator: nothing to settle, owed %d, promised %d", owed, previous.Value)
		return nil, nil
	}

	id, err := c.network.Pay(ctx, c.peerAddress, delta)
	if err != nil {
		c.metrics.DispatchFailuresCount.Inc()
		c.metrics.UndispatchedAmount.Add(bigFloat(delta))
		// TODO: persist undispatched deltas so they can be reconciled and
		// paid by a later run.
		logger.Errorf("coordinator: payment of %d to %s promised but not sent: %v", delta, c.peerAddress, err)
		return nil, &DispatchError{Amount: delta, Err: err}
	}

	c.metrics.SettlementsSentCount.Inc()
	c.metrics.TotalSentAmount.Add(bigFloat(delta))
	logger.Debugf("coordinator: paid %d to %s, payment %s", delta, c.peerAddress, id)

	return &settlement.Receipt{
		PaymentID: id,
		Amount:    delta,
	}, nil
}

// AcceptClaim verifies the claimed payment on the settlement network and
// records it. Claims for payments the network does not know are ignored
// without an error since the payment may not have propagated yet.
func (c *Coordinator) AcceptClaim(ctx context.Context, claim settlement.Claim) (v Verification, err error) {
	span, logger, ctx := c.tracer.StartSpanFromContext(ctx, "accept-claim", c.logger)
	defer func() { tracing.FinishSpan(span, err) }()

	if claim.PaymentID == "" {
		c.metrics.ClaimsIgnoredCount.Inc()
		return Verification{Status: ClaimIgnored}, fmt.Errorf("%w: empty payment id", ErrVerificationFailed)
	}

	payment, err := c.lookupPayment(ctx, claim.PaymentID)
	if err != nil {
		c.metrics.ClaimsIgnoredCount.Inc()
		if errors.Is(err, settlement.ErrPaymentNotFound) {
			logger.Debugf("coordinator: ignoring claim for unknown payment %s", claim.PaymentID)
			return Verification{Status: ClaimIgnored}, nil
		}
		logger.Warningf("coordinator: verify payment %s: %v", claim.PaymentID, err)
		return Verification{Status: ClaimIgnored}, fmt.Errorf("%w: payment %s: %v", ErrVerificationFailed, claim.PaymentID, err)
	}
	if payment.Amount == nil || payment.Amount.Sign() < 0 {
		c.metrics.ClaimsIgnoredCount.Inc()
		return Verification{Status: ClaimIgnored}, fmt.Errorf("%w: payment %s has invalid amount", ErrVerificationFailed, claim.PaymentID)
	}

	applied, err := c.ledger.Record(claim.PaymentID, payment.Amount)
	if err != nil {
		return Verification{Status: ClaimIgnored}, fmt.Errorf("record payment %s: %w", claim.PaymentID, err)
	}

	if applied {
		c.metrics.ClaimsVerifiedCount.Inc()
		c.metrics.TotalReceivedAmount.Add(bigFloat(payment.Amount))
		logger.Debugf("coordinator: received %d with payment %s", payment.Amount, claim.PaymentID)
	} else {
		c.metrics.DuplicateClaimsCount.Inc()
		logger.Tracef("coordinator: payment %s already recorded", claim.PaymentID)
	}

	return Verification{
		Status:  ClaimVerified,
		Applied: applied,
		Amount:  payment.Amount,
	}, nil
}

// lookupPayment collapses concurrent lookups of the same payment into one
// network call.
func (c *Coordinator) lookupPayment(ctx context.Context, id string) (settlement.Payment, error) {
	v, _, err := c.lookups.Do(ctx, id, func(ctx context.Context) (interface{}, error) {
		return c.network.LookupPayment(ctx, id)
	})
	if err != nil {
		return settlement.Payment{}, err
	}
	p := v.(settlement.Payment)
	if p.Amount != nil {
		p.Amount = new(big.Int).Set(p.Amount)
	}
	return p, nil
}

// TotalSent returns the total amount promised to the peer.
func (c *Coordinator) TotalSent() *big.Int {
	return c.tracker.Get().Value
}

// TotalReceived returns the total amount settled by the peer.
func (c *Coordinator) TotalReceived() *big.Int {
	return c.ledger.TotalRecorded()
}

// Records returns the settlements received from the peer.
func (c *Coordinator) Records() ([]ledger.Record, error) {
	return c.ledger.Records()
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
