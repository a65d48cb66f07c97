// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plugin exposes the hooks the payment channel framework calls: on
// channel open, on incoming transfers and claims, and when the framework
// wants the peer to be paid.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethersphere/paysettle/pkg/accounting"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/settlement/coordinator"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

const (
	// Prefix is the address prefix of accounts on the settlement network.
	Prefix = "g.dev.uk.starling."
	// CurrencyCode is the currency the channel is denominated in.
	CurrencyCode = "GBP"
	// DefaultCurrencyScale is the number of decimal places of amounts.
	DefaultCurrencyScale = 2
)

var (
	// ErrInvalidFields is returned by Connect when the credential or the
	// unsecured ceiling is missing or invalid.
	ErrInvalidFields = errors.New("invalid plugin options")
	// ErrNotAccepted is returned by Connect when the settlement network does
	// not accept the credential.
	ErrNotAccepted = errors.New("credential not accepted by settlement network")
	// ErrNotConnected is returned by every hook called before Connect.
	ErrNotConnected = errors.New("plugin not connected")
)

// Info describes the ledger the plugin settles on.
type Info struct {
	Prefix        string `json:"prefix"`
	CurrencyCode  string `json:"currencyCode"`
	CurrencyScale int    `json:"currencyScale"`
}

// Transfers is the incoming transfer log.
type Transfers interface {
	accounting.TransferLog
	Fulfill(id string) error
	Reject(id string) error
}

// Coordinator settles with the peer.
type Coordinator interface {
	SettleUpTo(ctx context.Context, owed *big.Int) (*settlement.Receipt, error)
	AcceptClaim(ctx context.Context, claim settlement.Claim) (coordinator.Verification, error)
}

// Options for the plugin.
type Options struct {
	AuthToken     string
	MaxUnsecured  *big.Int
	CurrencyScale int
	Network       settlement.Network
	Transfers     Transfers
	Settled       accounting.SettledTotaler
	Coordinator   Coordinator
	Logger        logging.Logger
}

// Plugin implements the framework hooks.
type Plugin struct {
	opts      Options
	logger    logging.Logger
	connected *atomic.Bool
	account   *atomic.String

	mu    sync.RWMutex // guards the fields set by Connect
	guard *accounting.Guard
	info  Info
}

// New creates a disconnected plugin.
func New(o Options) *Plugin {
	return &Plugin{
		opts:      o,
		logger:    o.Logger,
		connected: atomic.NewBool(false),
		account:   atomic.NewString(""),
	}
}

// Connect validates the options and the credential with the settlement
// network. Connecting a connected plugin is a no-op.
func (p *Plugin) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected.Load() {
		return nil
	}

	if p.opts.AuthToken == "" {
		return fmt.Errorf("%w: missing auth token", ErrInvalidFields)
	}
	if p.opts.CurrencyScale < 0 {
		return fmt.Errorf("%w: negative currency scale", ErrInvalidFields)
	}
	guard, err := accounting.New(accounting.Options{
		Limits:  accounting.Limits{MaxUnsecured: p.opts.MaxUnsecured},
		Log:     p.opts.Transfers,
		Settled: p.opts.Settled,
		Logger:  p.logger,
	})
	if err != nil {
		return fmt.Errorf("%w: max unsecured: %v", ErrInvalidFields, err)
	}

	holder, err := p.opts.Network.AccountHolder(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotAccepted, err)
	}

	p.guard = guard
	p.info = Info{
		Prefix:        Prefix,
		CurrencyCode:  CurrencyCode,
		CurrencyScale: p.opts.CurrencyScale,
	}
	p.account.Store(Prefix + holder)
	p.connected.Store(true)

	p.logger.Infof("plugin: connected as %s", p.account.Load())
	return nil
}

// Disconnect stops accepting hooks until the next Connect.
func (p *Plugin) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.connected.CAS(true, false) {
		p.logger.Info("plugin: disconnected")
	}
}

// Connected reports whether Connect succeeded.
func (p *Plugin) Connected() bool {
	return p.connected.Load()
}

// Account returns the settlement network address of this party.
func (p *Plugin) Account() (string, error) {
	if !p.connected.Load() {
		return "", ErrNotConnected
	}
	return p.account.Load(), nil
}

// Info returns the ledger description.
func (p *Plugin) Info() (Info, error) {
	if !p.connected.Load() {
		return Info{}, ErrNotConnected
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.info, nil
}

// Balance returns the peer's current balance.
func (p *Plugin) Balance() (accounting.BalanceView, error) {
	guard, err := p.connectedGuard()
	if err != nil {
		return accounting.BalanceView{}, err
	}
	return guard.Balance(), nil
}

// HandleIncomingPrepare admits the incoming transfer or rejects it with
// accounting.ErrCapacityExceeded before it is prepared.
func (p *Plugin) HandleIncomingPrepare(ctx context.Context, t transferlog.Transfer) error {
	guard, err := p.connectedGuard()
	if err != nil {
		return err
	}
	return guard.Admit(t)
}

// FulfillIncoming marks a prepared incoming transfer as fulfilled.
func (p *Plugin) FulfillIncoming(id string) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	return p.opts.Transfers.Fulfill(id)
}

// RejectIncoming marks a prepared incoming transfer as rejected, which frees
// its amount from the unsecured balance.
func (p *Plugin) RejectIncoming(id string) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	return p.opts.Transfers.Reject(id)
}

// CreateOutgoingClaim pays the peer what is owed beyond what was already
// promised and returns the claim to send to the peer. It returns a nil claim
// when nothing has to be paid.
func (p *Plugin) CreateOutgoingClaim(ctx context.Context, owed *big.Int) (*settlement.Claim, error) {
	if !p.connected.Load() {
		return nil, ErrNotConnected
	}

	receipt, err := p.opts.Coordinator.SettleUpTo(ctx, owed)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, nil
	}
	claim := receipt.Claim()
	return &claim, nil
}

// HandleIncomingClaim verifies and records a claim sent by the peer.
func (p *Plugin) HandleIncomingClaim(ctx context.Context, claim settlement.Claim) (coordinator.Verification, error) {
	if !p.connected.Load() {
		return coordinator.Verification{Status: coordinator.ClaimIgnored}, ErrNotConnected
	}
	return p.opts.Coordinator.AcceptClaim(ctx, claim)
}

// Metrics returns the prometheus Collector for the balance guard once the
// plugin is connected.
func (p *Plugin) Metrics() []prometheus.Collector {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.guard == nil {
		return nil
	}
	return p.guard.Metrics()
}

func (p *Plugin) connectedGuard() (*accounting.Guard, error) {
	if !p.connected.Load() {
		return nil, ErrNotConnected
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.guard, nil
}
