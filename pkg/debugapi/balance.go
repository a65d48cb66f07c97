// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"errors"
	"net/http"

	"github.com/ethersphere/paysettle"
	"github.com/ethersphere/paysettle/pkg/bigint"
	"github.com/ethersphere/paysettle/pkg/jsonhttp"
	"github.com/ethersphere/paysettle/pkg/plugin"
)

var errCantBalance = "Cannot get balance"

type balanceResponse struct {
	Incoming     *bigint.BigInt `json:"incoming"`
	Settled      *bigint.BigInt `json:"settled"`
	Unsecured    *bigint.BigInt `json:"unsecured"`
	MaxUnsecured *bigint.BigInt `json:"maxUnsecured"`
}

func (s *Service) balanceHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.plugin.Balance()
	if err != nil {
		s.logger.Debugf("debug api: balance: %v", err)
		if errors.Is(err, plugin.ErrNotConnected) {
			jsonhttp.ServiceUnavailable(w, err)
			return
		}
		s.logger.Error("debug api: can not get balance")
		jsonhttp.InternalServerError(w, errCantBalance)
		return
	}

	jsonhttp.OK(w, balanceResponse{
		Incoming:     bigint.Wrap(b.Incoming),
		Settled:      bigint.Wrap(b.Settled),
		Unsecured:    bigint.Wrap(b.Unsecured),
		MaxUnsecured: bigint.Wrap(b.MaxUnsecured),
	})
}

type infoResponse struct {
	Account       string `json:"account"`
	Prefix        string `json:"prefix"`
	CurrencyCode  string `json:"currencyCode"`
	CurrencyScale int    `json:"currencyScale"`
	Version       string `json:"version"`
}

func (s *Service) infoHandler(w http.ResponseWriter, r *http.Request) {
	account, err := s.plugin.Account()
	if err != nil {
		s.logger.Debugf("debug api: info: %v", err)
		jsonhttp.ServiceUnavailable(w, err)
		return
	}
	info, err := s.plugin.Info()
	if err != nil {
		s.logger.Debugf("debug api: info: %v", err)
		jsonhttp.ServiceUnavailable(w, err)
		return
	}

	jsonhttp.OK(w, infoResponse{
		Account:       account,
		Prefix:        info.Prefix,
		CurrencyCode:  info.CurrencyCode,
		CurrencyScale: info.CurrencyScale,
		Version:       paysettle.Version,
	})
}
