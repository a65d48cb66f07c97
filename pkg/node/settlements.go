// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package node

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethersphere/paysettle/pkg/ledger"
	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/storage"
	"github.com/ethersphere/paysettle/pkg/valuetracker"
	"github.com/hashicorp/go-multierror"
)

// ErrMissingDataDir is returned when persisted state is requested without a
// data directory.
var ErrMissingDataDir = errors.New("missing data directory")

// Settlements is a snapshot of the persisted settlement state. Sent is the
// total amount promised to the peer and Received the total settled by it.
type Settlements struct {
	Sent     *big.Int
	Received *big.Int
	Records  []ledger.Record
}

// ReadSettlements opens the state store in dataDir and returns the settlement
// totals and the ledger records kept there. The node owning the directory
// must not be running.
func ReadSettlements(logger logging.Logger, dataDir string) (s Settlements, err error) {
	if dataDir == "" {
		return Settlements{}, ErrMissingDataDir
	}

	stateStore, err := InitStateStore(logger, dataDir)
	if err != nil {
		return Settlements{}, fmt.Errorf("state store: %w", err)
	}
	defer func() {
		if cerr := stateStore.Close(); cerr != nil {
			err = multierror.Append(err, fmt.Errorf("close state store: %w", cerr))
		}
	}()

	return readSettlements(stateStore, logger)
}

func readSettlements(store storage.StateStorer, logger logging.Logger) (Settlements, error) {
	l, err := ledger.New(store, logger)
	if err != nil {
		return Settlements{}, fmt.Errorf("ledger: %w", err)
	}
	tracker, err := valuetracker.New(store, logger, amountSettledName)
	if err != nil {
		return Settlements{}, fmt.Errorf("value tracker: %w", err)
	}
	records, err := l.Records()
	if err != nil {
		return Settlements{}, fmt.Errorf("ledger records: %w", err)
	}

	return Settlements{
		Sent:     tracker.Get().Value,
		Received: l.TotalRecorded(),
		Records:  records,
	}, nil
}
