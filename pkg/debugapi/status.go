// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debugapi

import (
	"net/http"

	"github.com/ethersphere/paysettle/pkg/jsonhttp"
)

type statusResponse struct {
	Status string `json:"status"`
}

func statusHandler(w http.ResponseWriter, _ *http.Request) {
	jsonhttp.OK(w, statusResponse{
		Status: "ok",
	})
}

// readinessHandler reports ready once the plugin is connected to the
// settlement network.
func (s *Service) readinessHandler(w http.ResponseWriter, _ *http.Request) {
	if !s.plugin.Connected() {
		jsonhttp.ServiceUnavailable(w, statusResponse{
			Status: "not connected",
		})
		return
	}
	jsonhttp.OK(w, statusResponse{
		Status: "ok",
	})
}
