// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/ethersphere/paysettle/pkg/bigint"
	"github.com/ethersphere/paysettle/pkg/jsonhttp"
	"github.com/ethersphere/paysettle/pkg/transferlog"
	"github.com/gorilla/mux"
)

var (
	errCantSettlements = "Cannot get settlements"
	errCantTransfer    = "Cannot get transfer"
)

type settlementResponse struct {
	ID       string         `json:"id"`
	Amount   *bigint.BigInt `json:"amount"`
	Received time.Time      `json:"received"`
}

type settlementsResponse struct {
	TotalReceived *bigint.BigInt       `json:"totalReceived"`
	TotalSent     *bigint.BigInt       `json:"totalSent"`
	Received      []settlementResponse `json:"received"`
}

func (s *Service) settlementsHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.settlements.Records()
	if err != nil {
		s.logger.Debugf("debug api: settlements: %v", err)
		s.logger.Error("debug api: can not get settlements")
		jsonhttp.InternalServerError(w, errCantSettlements)
		return
	}

	received := make([]settlementResponse, 0, len(records))
	for _, r := range records {
		received = append(received, settlementResponse{
			ID:       r.ID,
			Amount:   bigint.Wrap(r.Amount),
			Received: r.Received,
		})
	}

	jsonhttp.OK(w, settlementsResponse{
		TotalReceived: bigint.Wrap(s.settlements.TotalReceived()),
		TotalSent:     bigint.Wrap(s.settlements.TotalSent()),
		Received:      received,
	})
}

type transferResponse struct {
	ID        string         `json:"id"`
	Amount    *bigint.BigInt `json:"amount"`
	Direction string         `json:"direction"`
	State     string         `json:"state"`
	Prepared  time.Time      `json:"prepared"`
}

func (s *Service) transferHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	t, err := s.transfers.Get(id)
	if err != nil {
		if errors.Is(err, transferlog.ErrTransferNotFound) {
			jsonhttp.NotFound(w, nil)
			return
		}
		s.logger.Debugf("debug api: transfer %s: %v", id, err)
		s.logger.Errorf("debug api: can not get transfer %s", id)
		jsonhttp.InternalServerError(w, errCantTransfer)
		return
	}

	jsonhttp.OK(w, transferResponse{
		ID:        t.ID,
		Amount:    bigint.Wrap(t.Amount),
		Direction: t.Direction.String(),
		State:     t.State.String(),
		Prepared:  t.Prepared,
	})
}
