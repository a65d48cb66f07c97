// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jsonhttptest makes requests against JSON HTTP APIs in tests and
// checks their responses.
package jsonhttptest

import (
	"encoding/json"
	"io/ioutil"
	"net/http"
	"testing"

	"github.com/ethersphere/paysettle/pkg/jsonhttp"
	"github.com/google/go-cmp/cmp"
)

// Request sends a request with the client and checks the response status
// code and, depending on the options, the response body. It returns the
// response headers.
func Request(t *testing.T, client *http.Client, method, url string, responseCode int, opts ...Option) http.Header {
	t.Helper()

	o := new(options)
	for _, opt := range opts {
		opt.apply(o)
	}

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.requestHeaders != nil {
		req.Header = o.requestHeaders
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != responseCode {
		t.Errorf("got response status %s, want %v %s", resp.Status, responseCode, http.StatusText(responseCode))
	}

	got, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	switch {
	case o.expectedJSONResponse != nil:
		if v := resp.Header.Get("Content-Type"); v != jsonhttp.DefaultContentTypeHeader {
			t.Errorf("got content type %q, want %q", v, jsonhttp.DefaultContentTypeHeader)
		}
		want, err := json.Marshal(o.expectedJSONResponse)
		if err != nil {
			t.Fatal(err)
		}
		var gotValue, wantValue interface{}
		if err := json.Unmarshal(got, &gotValue); err != nil {
			t.Fatalf("decode response %q: %v", got, err)
		}
		if err := json.Unmarshal(want, &wantValue); err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(wantValue, gotValue); diff != "" {
			t.Errorf("json response mismatch (-want +got):\n%s", diff)
		}
	case o.unmarshalResponse != nil:
		if err := json.Unmarshal(got, o.unmarshalResponse); err != nil {
			t.Fatalf("decode response %q: %v", got, err)
		}
	case o.responseBody != nil:
		*o.responseBody = got
	}
	return resp.Header
}

// WithRequestHeader adds a request header.
func WithRequestHeader(key, value string) Option {
	return optionFunc(func(o *options) {
		if o.requestHeaders == nil {
			o.requestHeaders = make(http.Header)
		}
		o.requestHeaders.Add(key, value)
	})
}

// WithExpectedJSONResponse compares the response body with the JSON encoding
// of the response.
func WithExpectedJSONResponse(response interface{}) Option {
	return optionFunc(func(o *options) {
		o.expectedJSONResponse = response
	})
}

// WithUnmarshalResponse decodes the response body into response.
func WithUnmarshalResponse(response interface{}) Option {
	return optionFunc(func(o *options) {
		o.unmarshalResponse = response
	})
}

// WithPutResponseBody stores the raw response body in b.
func WithPutResponseBody(b *[]byte) Option {
	return optionFunc(func(o *options) {
		o.responseBody = b
	})
}

type options struct {
	requestHeaders       http.Header
	expectedJSONResponse interface{}
	unmarshalResponse    interface{}
	responseBody         *[]byte
}

type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }
