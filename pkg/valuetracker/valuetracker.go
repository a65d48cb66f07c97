// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package valuetracker provides a persisted value that never decreases.
//
// SetIfMax returns the maximum stored before the call, which turns the
// repeatable question "how much do I owe in total" into the idempotent
// answer "how much more do I have to pay now".
package valuetracker

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/storage"
	"github.com/vmihailenco/msgpack/v5"
)

const keyPrefix = "max_value_"

// ErrInvalidValue is returned when a nil or negative value is proposed.
var ErrInvalidValue = errors.New("invalid tracked value")

// Value is the tracked amount together with an opaque payload stored
// alongside it.
type Value struct {
	Value *big.Int
	Data  []byte
}

type valueRecord struct {
	Value []byte `msgpack:"value"`
	Data  []byte `msgpack:"data,omitempty"`
}

func (v Value) MarshalBinary() ([]byte, error) {
	if v.Value == nil {
		return nil, ErrInvalidValue
	}
	return msgpack.Marshal(&valueRecord{
		Value: v.Value.Bytes(),
		Data:  v.Data,
	})
}

func (v *Value) UnmarshalBinary(data []byte) error {
	var r valueRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode tracked value: %w", err)
	}
	v.Value = new(big.Int).SetBytes(r.Value)
	v.Data = r.Data
	return nil
}

func (v Value) clone() Value {
	c := Value{Value: new(big.Int).Set(v.Value)}
	if v.Data != nil {
		c.Data = append([]byte(nil), v.Data...)
	}
	return c
}

// Tracker stores the highest value ever proposed to it.
type Tracker struct {
	mu      sync.Mutex
	store   storage.StateStorer
	logger  logging.Logger
	key     string
	current Value
}

// New loads the tracker with the given name from the store. A tracker that
// was never written starts at zero.
func New(store storage.StateStorer, logger logging.Logger, name string) (*Tracker, error) {
	t := &Tracker{
		store:   store,
		logger:  logger,
		key:     keyPrefix + name,
		current: Value{Value: big.NewInt(0)},
	}

	var v Value
	err := store.Get(t.key, &v)
	switch {
	case err == nil:
		t.current = v
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("load tracker %s: %w", name, err)
	}

	return t, nil
}

// SetIfMax stores v if it is strictly greater than the current maximum and
// returns the maximum held before the call. If v is not greater nothing is
// stored and the unchanged current maximum is returned.
func (t *Tracker) SetIfMax(v Value) (previous Value, err error) {
	if v.Value == nil || v.Value.Sign() < 0 {
		return Value{}, ErrInvalidValue
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if v.Value.Cmp(t.current.Value) <= 0 {
		return t.current.clone(), nil
	}

	next := v.clone()
	if err := t.store.Put(t.key, next); err != nil {
		return Value{}, err
	}

	previous = t.current
	t.current = next

	t.logger.Tracef("valuetracker: %s raised from %d to %d", t.key, previous.Value, next.Value)
	return previous, nil
}

// Get returns the current maximum.
func (t *Tracker) Get() Value {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.current.clone()
}
