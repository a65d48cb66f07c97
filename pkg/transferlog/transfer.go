// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transferlog

import (
	"fmt"
	"math/big"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Direction tells whether value moves from the peer to us or from us to the
// peer.
type Direction uint8

const (
	Incoming Direction = iota
	Outgoing
)

func (d Direction) String() string {
	switch d {
	case Incoming:
		return "incoming"
	case Outgoing:
		return "outgoing"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// State of a transfer in the log.
type State uint8

const (
	Prepared State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Prepared:
		return "prepared"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Transfer is a single value transfer between us and the peer.
type Transfer struct {
	ID        string
	Amount    *big.Int
	Direction Direction
	State     State
	Prepared  time.Time
}

type transferRecord struct {
	ID        string `msgpack:"id"`
	Amount    []byte `msgpack:"amount"`
	Direction uint8  `msgpack:"dir"`
	State     uint8  `msgpack:"state"`
	Prepared  int64  `msgpack:"prepared"`
}

func (t Transfer) MarshalBinary() ([]byte, error) {
	if t.Amount == nil {
		return nil, ErrInvalidAmount
	}
	return msgpack.Marshal(&transferRecord{
		ID:        t.ID,
		Amount:    t.Amount.Bytes(),
		Direction: uint8(t.Direction),
		State:     uint8(t.State),
		Prepared:  t.Prepared.UnixNano(),
	})
}

func (t *Transfer) UnmarshalBinary(data []byte) error {
	var r transferRecord
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("decode transfer: %w", err)
	}
	t.ID = r.ID
	t.Amount = new(big.Int).SetBytes(r.Amount)
	t.Direction = Direction(r.Direction)
	t.State = State(r.State)
	t.Prepared = time.Unix(0, r.Prepared)
	return nil
}

func (t Transfer) clone() Transfer {
	c := t
	if t.Amount != nil {
		c.Amount = new(big.Int).Set(t.Amount)
	}
	return c
}
