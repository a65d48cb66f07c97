// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ledger records the settlement payments received from the peer.
// Records are keyed by the identifier the settlement network assigned to the
// payment, so replaying the same payment never credits the peer twice.
// Records are never removed.
package ledger

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/storage"
	"github.com/ethersphere/paysettle/pkg/transferlog"
)

const logName = "incoming_settlements"

// Record is a single settlement payment received from the peer.
type Record struct {
	ID       string
	Amount   *big.Int
	Received time.Time
}

// Ledger is an append-only log of incoming settlements.
type Ledger struct {
	log    *transferlog.Log
	logger logging.Logger
}

// New opens the ledger stored in the given state store.
func New(store storage.StateStorer, logger logging.Logger) (*Ledger, error) {
	l, err := transferlog.New(store, logger, logName)
	if err != nil {
		return nil, err
	}
	return &Ledger{
		log:    l,
		logger: logger,
	}, nil
}

// Record adds the settlement with the given id. If a settlement with the same
// id was recorded before, applied is false and the ledger is left unchanged.
func (l *Ledger) Record(id string, amount *big.Int) (applied bool, err error) {
	err = l.log.Prepare(transferlog.Transfer{
		ID:        id,
		Amount:    amount,
		Direction: transferlog.Incoming,
	})
	if errors.Is(err, transferlog.ErrTransferExists) {
		l.logger.Debugf("ledger: settlement %s already recorded", id)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	l.logger.Tracef("ledger: recorded settlement %s of %d", id, amount)
	return true, nil
}

// TotalRecorded returns the sum of all recorded settlements.
func (l *Ledger) TotalRecorded() *big.Int {
	return l.log.SumFulfilledAndPrepared(transferlog.Incoming)
}

// Has reports whether a settlement with the given id is recorded.
func (l *Ledger) Has(id string) (bool, error) {
	return l.log.Has(id)
}

// Records returns all recorded settlements, oldest first.
func (l *Ledger) Records() ([]Record, error) {
	transfers, err := l.log.Transfers(transferlog.Incoming)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(transfers))
	for _, t := range transfers {
		records = append(records, Record{
			ID:       t.ID,
			Amount:   t.Amount,
			Received: t.Prepared,
		})
	}
	return records, nil
}
