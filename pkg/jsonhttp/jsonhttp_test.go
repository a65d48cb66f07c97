// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jsonhttp_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethersphere/paysettle/pkg/jsonhttp"
)

func TestRespond(t *testing.T) {
	type balance struct {
		Unsecured string `json:"unsecured"`
	}

	for _, tc := range []struct {
		name     string
		code     int
		response interface{}
		want     string
	}{
		{
			name: "nil response",
			code: http.StatusNotFound,
			want: `{"message":"Not Found","code":404}`,
		},
		{
			name:     "error response",
			code:     http.StatusServiceUnavailable,
			response: errors.New("plugin not connected"),
			want:     `{"message":"plugin not connected","code":503}`,
		},
		{
			name:     "string response",
			code:     http.StatusBadRequest,
			response: "invalid transfer id",
			want:     `{"message":"invalid transfer id","code":400}`,
		},
		{
			name:     "struct response",
			code:     http.StatusOK,
			response: balance{Unsecured: "<10>"},
			want:     `{"unsecured":"<10>"}`,
		},
		{
			name: "default status",
			want: `{"message":"OK","code":200}`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			jsonhttp.Respond(w, tc.code, tc.response)

			wantCode := tc.code
			if wantCode == 0 {
				wantCode = http.StatusOK
			}
			if w.Code != wantCode {
				t.Errorf("got status code %d, want %d", w.Code, wantCode)
			}
			if got := w.Header().Get("Content-Type"); got != jsonhttp.DefaultContentTypeHeader {
				t.Errorf("got content type %q, want %q", got, jsonhttp.DefaultContentTypeHeader)
			}
			if got := w.Body.String(); got != tc.want+"\n\n" {
				t.Errorf("got body %q, want %q", got, tc.want+"\n\n")
			}
		})
	}
}

func TestMethodHandler(t *testing.T) {
	h := jsonhttp.MethodHandler{
		"GET": http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			jsonhttp.OK(w, nil)
		}),
	}

	t.Run("method allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Errorf("got status code %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

		wantCode := http.StatusMethodNotAllowed
		if w.Code != wantCode {
			t.Errorf("got status code %d, want %d", w.Code, wantCode)
		}

		var m jsonhttp.StatusResponse
		if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
			t.Fatalf("json unmarshal response body: %s", err)
		}
		if m.Code != wantCode {
			t.Errorf("got message code %d, want %d", m.Code, wantCode)
		}
		if m.Message != http.StatusText(wantCode) {
			t.Errorf("got message %q, want %q", m.Message, http.StatusText(wantCode))
		}
	})
}

func TestNotFoundHandler(t *testing.T) {
	w := httptest.NewRecorder()

	jsonhttp.NotFoundHandler(w, nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("got status code %d, want %d", w.Code, http.StatusNotFound)
	}
}
