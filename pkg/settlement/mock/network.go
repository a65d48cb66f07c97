// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mock

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/google/uuid"
)

// Network is an in-memory settlement network. Payments sent with Pay can be
// looked up afterwards, and payments made by the peer can be added with
// AddPayment.
type Network struct {
	mu       sync.Mutex
	payments map[string]*big.Int
	sent     []Sent

	accountHolder     string
	accountHolderFunc func(context.Context) (string, error)
	payFunc           func(context.Context, string, *big.Int) (string, error)
	lookupFunc        func(context.Context, string) (settlement.Payment, error)
}

// Sent is a payment dispatched through Pay.
type Sent struct {
	ID     string
	Payee  string
	Amount *big.Int
}

// Option is the option passed to the mock network.
type Option interface {
	apply(*Network)
}

type optionFunc func(*Network)

func (f optionFunc) apply(n *Network) { f(n) }

// WithAccountHolder sets the account holder returned by the network.
func WithAccountHolder(id string) Option {
	return optionFunc(func(n *Network) {
		n.accountHolder = id
	})
}

// WithAccountHolderFunc overrides AccountHolder.
func WithAccountHolderFunc(f func(context.Context) (string, error)) Option {
	return optionFunc(func(n *Network) {
		n.accountHolderFunc = f
	})
}

// WithPayFunc overrides Pay.
func WithPayFunc(f func(ctx context.Context, payee string, amount *big.Int) (string, error)) Option {
	return optionFunc(func(n *Network) {
		n.payFunc = f
	})
}

// WithLookupFunc overrides LookupPayment.
func WithLookupFunc(f func(ctx context.Context, id string) (settlement.Payment, error)) Option {
	return optionFunc(func(n *Network) {
		n.lookupFunc = f
	})
}

// WithPayment adds a known payment.
func WithPayment(id string, amount *big.Int) Option {
	return optionFunc(func(n *Network) {
		n.payments[id] = new(big.Int).Set(amount)
	})
}

// New creates the mock network.
func New(opts ...Option) *Network {
	n := &Network{
		payments:      make(map[string]*big.Int),
		accountHolder: uuid.New().String(),
	}
	for _, o := range opts {
		o.apply(n)
	}
	return n
}

func (n *Network) AccountHolder(ctx context.Context) (string, error) {
	if n.accountHolderFunc != nil {
		return n.accountHolderFunc(ctx)
	}
	return n.accountHolder, nil
}

func (n *Network) Pay(ctx context.Context, payee string, amount *big.Int) (string, error) {
	if n.payFunc != nil {
		return n.payFunc(ctx, payee, amount)
	}

	id := uuid.New().String()

	n.mu.Lock()
	defer n.mu.Unlock()

	n.payments[id] = new(big.Int).Set(amount)
	n.sent = append(n.sent, Sent{
		ID:     id,
		Payee:  payee,
		Amount: new(big.Int).Set(amount),
	})
	return id, nil
}

func (n *Network) LookupPayment(ctx context.Context, id string) (settlement.Payment, error) {
	if n.lookupFunc != nil {
		return n.lookupFunc(ctx, id)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	amount, ok := n.payments[id]
	if !ok {
		return settlement.Payment{}, settlement.ErrPaymentNotFound
	}
	return settlement.Payment{
		ID:     id,
		Amount: new(big.Int).Set(amount),
	}, nil
}

// AddPayment makes a payment known to the network.
func (n *Network) AddPayment(id string, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.payments[id] = new(big.Int).Set(amount)
}

// Sent returns the payments dispatched through Pay, in order.
func (n *Network) Sent() []Sent {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := make([]Sent, len(n.sent))
	copy(s, n.sent)
	return s
}

var _ settlement.Network = (*Network)(nil)
