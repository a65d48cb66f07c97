// Copyright 2021 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bigint encodes amounts as decimal JSON strings so that clients do
// not lose precision on values above 2^53.
package bigint

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// BigInt is a big.Int with a JSON string encoding.
type BigInt struct {
	big.Int
}

func (i BigInt) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`"%s"`, i.String())), nil
}

func (i *BigInt) UnmarshalJSON(b []byte) error {
	var val string
	if err := json.Unmarshal(b, &val); err != nil {
		return err
	}
	if _, ok := i.SetString(val, 10); !ok {
		return fmt.Errorf("bigint: invalid amount %q", val)
	}
	return nil
}

// NewBigInt returns a BigInt set to x.
func NewBigInt(x int64) *BigInt {
	b := new(BigInt)
	b.SetInt64(x)
	return b
}

// Wrap copies i into a BigInt. A nil i is wrapped as zero.
func Wrap(i *big.Int) *BigInt {
	b := new(BigInt)
	if i != nil {
		b.Set(i)
	}
	return b
}
