// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transferlog_test

import (
	"errors"
	"fmt"
	"io/ioutil"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/statestore/mock"
	"github.com/ethersphere/paysettle/pkg/storage"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/google/go-cmp/cmp"
)

func newLog(t *testing.T, store storage.StateStorer) *transferlog.Log {
	t.Helper()

	l, err := transferlog.New(store, logging.New(ioutil.Discard, 0), "transfers")
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func TestPrepareFulfillReject(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)

	steps := []struct {
		name     string
		action   func() error
		incoming int64
		outgoing int64
	}{
		{
			name:     "prepare incoming",
			action:   func() error { return l.Prepare(transferlog.Transfer{ID: "a", Amount: big.NewInt(10)}) },
			incoming: 10,
		},
		{
			name: "prepare outgoing",
			action: func() error {
				return l.Prepare(transferlog.Transfer{ID: "b", Amount: big.NewInt(7), Direction: transferlog.Outgoing})
			},
			incoming: 10,
			outgoing: 7,
		},
		{
			name:     "fulfill incoming",
			action:   func() error { return l.Fulfill("a") },
			incoming: 10,
			outgoing: 7,
		},
		{
			name:     "prepare second incoming",
			action:   func() error { return l.Prepare(transferlog.Transfer{ID: "c", Amount: big.NewInt(5)}) },
			incoming: 15,
			outgoing: 7,
		},
		{
			name:     "reject second incoming",
			action:   func() error { return l.Reject("c") },
			incoming: 10,
			outgoing: 7,
		},
		{
			name:     "reject again is a no-op",
			action:   func() error { return l.Reject("c") },
			incoming: 10,
			outgoing: 7,
		},
	}

	for _, s := range steps {
		if err := s.action(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		if got := l.SumFulfilledAndPrepared(transferlog.Incoming); got.Int64() != s.incoming {
			t.Fatalf("%s: got incoming total %d, want %d", s.name, got, s.incoming)
		}
		if got := l.SumFulfilledAndPrepared(transferlog.Outgoing); got.Int64() != s.outgoing {
			t.Fatalf("%s: got outgoing total %d, want %d", s.name, got, s.outgoing)
		}
	}
}

func TestPrepareDuplicate(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)

	if err := l.Prepare(transferlog.Transfer{ID: "a", Amount: big.NewInt(10)}); err != nil {
		t.Fatal(err)
	}
	if err := l.Reject("a"); err != nil {
		t.Fatal(err)
	}

	err := l.Prepare(transferlog.Transfer{ID: "a", Amount: big.NewInt(99)})
	if !errors.Is(err, transferlog.ErrTransferExists) {
		t.Fatalf("got error %v, want %v", err, transferlog.ErrTransferExists)
	}

	if got := l.SumFulfilledAndPrepared(transferlog.Incoming); got.Sign() != 0 {
		t.Fatalf("got total %d, want 0", got)
	}
}

func TestInvalidTransfers(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)

	for _, tc := range []struct {
		name     string
		transfer transferlog.Transfer
		err      error
	}{
		{name: "empty id", transfer: transferlog.Transfer{Amount: big.NewInt(1)}, err: transferlog.ErrInvalidID},
		{name: "nil amount", transfer: transferlog.Transfer{ID: "x"}, err: transferlog.ErrInvalidAmount},
		{name: "negative amount", transfer: transferlog.Transfer{ID: "y", Amount: big.NewInt(-1)}, err: transferlog.ErrInvalidAmount},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if err := l.Prepare(tc.transfer); !errors.Is(err, tc.err) {
				t.Fatalf("got error %v, want %v", err, tc.err)
			}
		})
	}

	if err := l.Fulfill("missing"); !errors.Is(err, transferlog.ErrTransferNotFound) {
		t.Fatalf("got error %v, want %v", err, transferlog.ErrTransferNotFound)
	}

	if err := l.Prepare(transferlog.Transfer{ID: "done", Amount: big.NewInt(1)}); err != nil {
		t.Fatal(err)
	}
	if err := l.Fulfill("done"); err != nil {
		t.Fatal(err)
	}
	if err := l.Reject("done"); !errors.Is(err, transferlog.ErrInvalidTransition) {
		t.Fatalf("got error %v, want %v", err, transferlog.ErrInvalidTransition)
	}
}

func TestReloadTotals(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)
	for i, amount := range []int64{3, 4, 5} {
		if err := l.Prepare(transferlog.Transfer{ID: fmt.Sprint(i), Amount: big.NewInt(amount)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Reject("1"); err != nil {
		t.Fatal(err)
	}

	reopened := newLog(t, store)
	if got := reopened.SumFulfilledAndPrepared(transferlog.Incoming); got.Int64() != 8 {
		t.Fatalf("got total %d after reload, want 8", got)
	}
}

func TestTransfers(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)

	now := time.Unix(1600000000, 0)
	for _, id := range []string{"first", "second"} {
		l.SetTimeNow(func() time.Time { return now })
		if err := l.Prepare(transferlog.Transfer{ID: id, Amount: big.NewInt(1)}); err != nil {
			t.Fatal(err)
		}
		now = now.Add(time.Second)
	}
	if err := l.Prepare(transferlog.Transfer{ID: "out", Amount: big.NewInt(1), Direction: transferlog.Outgoing}); err != nil {
		t.Fatal(err)
	}
	if err := l.Fulfill("second"); err != nil {
		t.Fatal(err)
	}

	got, err := l.Transfers(transferlog.Incoming)
	if err != nil {
		t.Fatal(err)
	}

	want := []transferlog.Transfer{
		{ID: "first", Amount: big.NewInt(1), State: transferlog.Prepared, Prepared: time.Unix(1600000000, 0)},
		{ID: "second", Amount: big.NewInt(1), State: transferlog.Fulfilled, Prepared: time.Unix(1600000001, 0)},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })); diff != "" {
		t.Errorf("transfers mismatch (-want +got):\n%s", diff)
	}
}

func TestConcurrentPrepareSameID(t *testing.T) {
	store := mock.NewStateStore()
	defer store.Close()

	l := newLog(t, store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Prepare(transferlog.Transfer{ID: "same", Amount: big.NewInt(10)})
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
			} else if !errors.Is(err, transferlog.ErrTransferExists) {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if applied != 1 {
		t.Fatalf("got %d applied prepares, want 1", applied)
	}
	if got := l.SumFulfilledAndPrepared(transferlog.Incoming); got.Int64() != 10 {
		t.Fatalf("got total %d, want 10", got)
	}
}
