// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transferlog keeps the record of value transfers exchanged with the
// peer and the running totals of transfers that are prepared or fulfilled.
// Each transfer id can be logged only once, which makes the log usable as an
// idempotent ledger.
package transferlog

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/storage"
)

var (
	ErrTransferExists    = errors.New("transfer already exists")
	ErrTransferNotFound  = errors.New("transfer not found")
	ErrInvalidTransition = errors.New("invalid transfer state transition")
	ErrInvalidAmount     = errors.New("invalid transfer amount")
	ErrInvalidID         = errors.New("invalid transfer id")
)

// Log is a transfer log persisted in a state store under its own key prefix.
type Log struct {
	mu      sync.Mutex // guards totals and every read-modify-write of the store
	store   storage.StateStorer
	logger  logging.Logger
	prefix  string
	totals  map[Direction]*big.Int
	timeNow func() time.Time
}

// New opens the log with the given name and rebuilds the running totals from
// the transfers found in the store.
func New(store storage.StateStorer, logger logging.Logger, name string) (*Log, error) {
	l := &Log{
		store:   store,
		logger:  logger,
		prefix:  name + "_",
		timeNow: time.Now,
		totals: map[Direction]*big.Int{
			Incoming: big.NewInt(0),
			Outgoing: big.NewInt(0),
		},
	}

	err := store.Iterate(l.prefix, func(_, value []byte) (bool, error) {
		var t Transfer
		if err := t.UnmarshalBinary(value); err != nil {
			return true, err
		}
		if t.State != Rejected {
			l.total(t.Direction).Add(l.total(t.Direction), t.Amount)
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load transfer log %s: %w", name, err)
	}

	return l, nil
}

func (l *Log) key(id string) string {
	return l.prefix + id
}

func (l *Log) total(d Direction) *big.Int {
	t, ok := l.totals[d]
	if !ok {
		t = big.NewInt(0)
		l.totals[d] = t
	}
	return t
}

// Prepare adds a new transfer in the prepared state. ErrTransferExists is
// returned if a transfer with the same id was logged before, whatever its
// current state.
func (l *Log) Prepare(t Transfer) error {
	if t.ID == "" {
		return ErrInvalidID
	}
	if t.Amount == nil || t.Amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var existing Transfer
	err := l.store.Get(l.key(t.ID), &existing)
	if err == nil {
		return ErrTransferExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	t = t.clone()
	t.State = Prepared
	t.Prepared = l.timeNow()
	if err := l.store.Put(l.key(t.ID), t); err != nil {
		return err
	}

	total := l.total(t.Direction)
	total.Add(total, t.Amount)

	l.logger.Tracef("transferlog: prepared %s transfer %s of %d", t.Direction, t.ID, t.Amount)
	return nil
}

// Fulfill moves a prepared transfer to the fulfilled state. Fulfilling an
// already fulfilled transfer is a no-op.
func (l *Log) Fulfill(id string) error {
	return l.transition(id, Fulfilled)
}

// Reject moves a prepared transfer to the rejected state and removes its
// amount from the running total. Rejecting an already rejected transfer is a
// no-op.
func (l *Log) Reject(id string) error {
	return l.transition(id, Rejected)
}

func (l *Log) transition(id string, to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var t Transfer
	if err := l.store.Get(l.key(id), &t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrTransferNotFound
		}
		return err
	}

	if t.State == to {
		return nil
	}
	if t.State != Prepared {
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.State, to)
	}

	t.State = to
	if err := l.store.Put(l.key(id), t); err != nil {
		return err
	}

	if to == Rejected {
		total := l.total(t.Direction)
		total.Sub(total, t.Amount)
	}

	l.logger.Tracef("transferlog: %s transfer %s %s", t.Direction, id, to)
	return nil
}

// Get returns the transfer with the given id.
func (l *Log) Get(id string) (Transfer, error) {
	var t Transfer
	if err := l.store.Get(l.key(id), &t); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Transfer{}, ErrTransferNotFound
		}
		return Transfer{}, err
	}
	return t, nil
}

// Has reports whether a transfer with the given id was ever logged.
func (l *Log) Has(id string) (bool, error) {
	_, err := l.Get(id)
	if errors.Is(err, ErrTransferNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Transfers returns all logged transfers in the given direction ordered by
// the time they were prepared.
func (l *Log) Transfers(d Direction) ([]Transfer, error) {
	var transfers []Transfer
	err := l.store.Iterate(l.prefix, func(_, value []byte) (bool, error) {
		var t Transfer
		if err := t.UnmarshalBinary(value); err != nil {
			return true, err
		}
		if t.Direction == d {
			transfers = append(transfers, t)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(transfers, func(i, j int) bool {
		if transfers[i].Prepared.Equal(transfers[j].Prepared) {
			return transfers[i].ID < transfers[j].ID
		}
		return transfers[i].Prepared.Before(transfers[j].Prepared)
	})
	return transfers, nil
}

// SumFulfilledAndPrepared returns the sum of all transfers in the given
// direction which are either prepared or fulfilled.
func (l *Log) SumFulfilledAndPrepared(d Direction) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return new(big.Int).Set(l.total(d))
}
