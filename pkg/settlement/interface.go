// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package settlement defines the contract of the external network that moves
// settlement payments between the two parties of a channel.
package settlement

import (
	"context"
	"errors"
	"math/big"
)

// ErrPaymentNotFound is returned by LookupPayment when the network does not
// know the payment. It may simply not have propagated yet.
var ErrPaymentNotFound = errors.New("payment not found")

// Network pays and verifies settlement payments.
type Network interface {
	// AccountHolder returns the identifier of the account the credentials
	// belong to.
	AccountHolder(ctx context.Context) (string, error)
	// Pay sends amount to the payee and returns the payment identifier
	// assigned by the network.
	Pay(ctx context.Context, payee string, amount *big.Int) (paymentID string, err error)
	// LookupPayment returns the payment with the given identifier or
	// ErrPaymentNotFound.
	LookupPayment(ctx context.Context, paymentID string) (Payment, error)
}

// Payment is a payment as reported by the network.
type Payment struct {
	ID     string
	Amount *big.Int
}

// Claim is sent to the peer to prove a settlement payment.
type Claim struct {
	PaymentID string `json:"txid"`
}

// Receipt describes a dispatched settlement payment.
type Receipt struct {
	PaymentID string
	Amount    *big.Int
}

// Claim returns the claim the peer needs to verify the payment.
func (r Receipt) Claim() Claim {
	return Claim{PaymentID: r.PaymentID}
}
