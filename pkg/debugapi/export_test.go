// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

type (
	StatusResponse      = statusResponse
	BalanceResponse     = balanceResponse
	InfoResponse        = infoResponse
	SettlementResponse  = settlementResponse
	SettlementsResponse = settlementsResponse
	TransferResponse    = transferResponse
)
