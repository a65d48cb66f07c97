// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package accounting bounds the value a peer may transfer to us before it
// settles. The unsecured balance is everything the peer transferred, pending
// or fulfilled, minus everything it settled.
package accounting

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/transferlog"
)

var (
	// ErrCapacityExceeded is returned when a transfer would take the
	// unsecured balance over the configured ceiling.
	ErrCapacityExceeded = errors.New("unsecured balance exceeds maximum")
	// ErrInvalidLimits is returned when the ceiling is missing or negative.
	ErrInvalidLimits = errors.New("invalid channel limits")
	// ErrInvalidAmount is returned for nil or negative transfer amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// TransferLog is the part of the transfer log the guard needs.
type TransferLog interface {
	SumFulfilledAndPrepared(d transferlog.Direction) *big.Int
	Prepare(t transferlog.Transfer) error
}

// SettledTotaler reports the sum of all settlements received from the peer.
type SettledTotaler interface {
	TotalRecorded() *big.Int
}

// Limits holds the channel limits.
type Limits struct {
	MaxUnsecured *big.Int
}

// BalanceView is a point in time view of the peer's balance.
type BalanceView struct {
	Incoming     *big.Int
	Settled      *big.Int
	Unsecured    *big.Int
	MaxUnsecured *big.Int
}

// Options for the guard.
type Options struct {
	Limits  Limits
	Log     TransferLog
	Settled SettledTotaler
	Logger  logging.Logger
}

// Guard admits incoming transfers as long as the unsecured balance stays
// within the limits.
type Guard struct {
	mu      sync.Mutex // serializes check and prepare of incoming transfers
	log     TransferLog
	settled SettledTotaler
	max     *big.Int
	logger  logging.Logger
	metrics metrics
}

// New creates a guard. The ceiling must be set and non-negative.
func New(o Options) (*Guard, error) {
	if o.Limits.MaxUnsecured == nil || o.Limits.MaxUnsecured.Sign() < 0 {
		return nil, ErrInvalidLimits
	}
	return &Guard{
		log:     o.Log,
		settled: o.Settled,
		max:     new(big.Int).Set(o.Limits.MaxUnsecured),
		logger:  o.Logger,
		metrics: newMetrics(),
	}, nil
}

// Check reports whether a transfer of the given amount would be admitted
// against the current counters. It reserves nothing.
func (g *Guard) Check(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	_, err := g.check(amount)
	return err
}

// check must be called with the guard lock held.
func (g *Guard) check(amount *big.Int) (unsecured *big.Int, err error) {
	incoming := g.log.SumFulfilledAndPrepared(transferlog.Incoming)
	incoming.Add(incoming, amount)

	unsecured = incoming.Sub(incoming, g.settled.TotalRecorded())
	if unsecured.Cmp(g.max) > 0 {
		return unsecured, fmt.Errorf("%w: unsecured %d, maximum %d", ErrCapacityExceeded, unsecured, g.max)
	}
	return unsecured, nil
}

// Admit checks the transfer against the limits and prepares it in the
// transfer log. A rejected transfer is never prepared.
func (g *Guard) Admit(t transferlog.Transfer) error {
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	unsecured, err := g.check(t.Amount)
	if err != nil {
		g.metrics.RejectedTransfersCount.Inc()
		g.logger.Debugf("accounting: rejecting transfer %s of %d: %v", t.ID, t.Amount, err)
		return fmt.Errorf("transfer %s: %w", t.ID, err)
	}

	t.Direction = transferlog.Incoming
	if err := g.log.Prepare(t); err != nil {
		return fmt.Errorf("prepare transfer %s: %w", t.ID, err)
	}

	g.metrics.AdmittedTransfersCount.Inc()
	g.metrics.UnsecuredBalance.Set(bigFloat(unsecured))
	g.logger.Tracef("accounting: admitted transfer %s of %d, unsecured balance %d", t.ID, t.Amount, unsecured)
	return nil
}

// Balance returns the current balance of the peer.
func (g *Guard) Balance() BalanceView {
	g.mu.Lock()
	defer g.mu.Unlock()

	incoming := g.log.SumFulfilledAndPrepared(transferlog.Incoming)
	settled := g.settled.TotalRecorded()
	unsecured := new(big.Int).Sub(incoming, settled)

	g.metrics.UnsecuredBalance.Set(bigFloat(unsecured))

	return BalanceView{
		Incoming:     incoming,
		Settled:      settled,
		Unsecured:    unsecured,
		MaxUnsecured: new(big.Int).Set(g.max),
	}
}

func bigFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
