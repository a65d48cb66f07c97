// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package starling implements the settlement network on top of the Starling
// bank API. Amounts are expressed in minor units of the account currency.
package starling

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethersphere/paysettle/pkg/logging"
	"github.com/ethersphere/paysettle/pkg/settlement"
	"github.com/ethersphere/paysettle/pkg/tracing"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the Starling sandbox API.
	DefaultEndpoint = "https://api-sandbox.starlingbank.com"
	// DefaultCurrency is the currency payments are made in.
	DefaultCurrency = "GBP"

	// DefaultRequestInterval is the minimum time between API requests when
	// no other rate is configured.
	DefaultRequestInterval = 100 * time.Millisecond

	defaultTimeout      = 30 * time.Second
	defaultRequestBurst = 10
)

var (
	// ErrMissingToken is returned when the client is created without an
	// access token.
	ErrMissingToken = errors.New("starling: missing access token")
	// ErrInvalidAmount is returned when the amount to pay is not positive.
	ErrInvalidAmount = errors.New("starling: invalid amount")
)

// APIError is returned for responses with a status code outside of 2xx.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("starling: %s", http.StatusText(e.Code))
	}
	return fmt.Sprintf("starling: %s: %s", http.StatusText(e.Code), e.Message)
}

// Options for the client. RequestInterval limits how often the API is
// called, allowing bursts of up to ten requests.
type Options struct {
	Endpoint        string
	Token           string
	Currency        string
	HTTPClient      *http.Client
	RequestInterval time.Duration
	Tracer          *tracing.Tracer
	Logger          logging.Logger
}

// Client is a Starling API client that implements settlement.Network.
type Client struct {
	endpoint   string
	token      string
	currency   string
	httpClient *http.Client
	limiter    *rate.Limiter
	tracer     *tracing.Tracer
	logger     logging.Logger
	newID      func() string
}

var _ settlement.Network = (*Client)(nil)

// New creates the client. The access token is required.
func New(o Options) (*Client, error) {
	if o.Token == "" {
		return nil, ErrMissingToken
	}

	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("starling: endpoint: %w", err)
	}

	currency := o.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	httpClient := o.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	interval := o.RequestInterval
	if interval <= 0 {
		interval = DefaultRequestInterval
	}

	return &Client{
		endpoint:   strings.TrimSuffix(endpoint, "/"),
		token:      o.Token,
		currency:   currency,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(interval), defaultRequestBurst),
		tracer:     o.Tracer,
		logger:     o.Logger,
		newID:      func() string { return uuid.New().String() },
	}, nil
}

type accountHolderResponse struct {
	AccountHolderUID string `json:"accountHolderUid"`
}

// AccountHolder returns the uid of the account holder the token belongs to.
func (c *Client) AccountHolder(ctx context.Context) (string, error) {
	var r accountHolderResponse
	if err := c.request(ctx, http.MethodGet, "/api/v2/account-holder", nil, &r); err != nil {
		return "", err
	}
	if r.AccountHolderUID == "" {
		return "", errors.New("starling: empty account holder uid")
	}
	return r.AccountHolderUID, nil
}

type currencyAndAmount struct {
	Currency   string `json:"currency"`
	MinorUnits int64  `json:"minorUnits"`
}

type paymentRequest struct {
	ExternalIdentifier         string            `json:"externalIdentifier"`
	DestinationPayeeAccountUID string            `json:"destinationPayeeAccountUid"`
	Reference                  string            `json:"reference,omitempty"`
	Amount                     currencyAndAmount `json:"amount"`
}

type paymentResponse struct {
	PaymentOrderUID string `json:"paymentOrderUid"`
}

// Pay sends a local payment to the payee account.
func (c *Client) Pay(ctx context.Context, payee string, amount *big.Int) (string, error) {
	if amount == nil || amount.Sign() <= 0 || !amount.IsInt64() {
		return "", ErrInvalidAmount
	}

	req := paymentRequest{
		ExternalIdentifier:         c.newID(),
		DestinationPayeeAccountUID: payee,
		Reference:                  "settlement",
		Amount: currencyAndAmount{
			Currency:   c.currency,
			MinorUnits: amount.Int64(),
		},
	}

	var r paymentResponse
	if err := c.request(ctx, http.MethodPost, "/api/v2/payments/local", req, &r); err != nil {
		return "", err
	}
	if r.PaymentOrderUID == "" {
		return "", errors.New("starling: empty payment order uid")
	}

	c.logger.Debugf("starling: paid %d %s to %s: %s", amount, c.currency, payee, r.PaymentOrderUID)
	return r.PaymentOrderUID, nil
}

type paymentDetails struct {
	PaymentOrderUID string            `json:"paymentOrderUid"`
	Amount          currencyAndAmount `json:"amount"`
}

// LookupPayment returns the amount of the payment with the given uid.
func (c *Client) LookupPayment(ctx context.Context, id string) (settlement.Payment, error) {
	if id == "" {
		return settlement.Payment{}, settlement.ErrPaymentNotFound
	}

	var r paymentDetails
	err := c.request(ctx, http.MethodGet, "/api/v2/payments/local/"+url.PathEscape(id), nil, &r)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return settlement.Payment{}, settlement.ErrPaymentNotFound
		}
		return settlement.Payment{}, err
	}
	if r.Amount.Currency != "" && r.Amount.Currency != c.currency {
		return settlement.Payment{}, fmt.Errorf("starling: payment %s in %s, want %s", id, r.Amount.Currency, c.currency)
	}
	if r.Amount.MinorUnits < 0 {
		return settlement.Payment{}, fmt.Errorf("starling: payment %s has negative amount", id)
	}

	return settlement.Payment{
		ID:     id,
		Amount: big.NewInt(r.Amount.MinorUnits),
	}, nil
}

func (c *Client) request(ctx context.Context, method, path string, body, v interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("starling: %s %s: %w", method, path, err)
	}

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("starling: encode request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, r)
	if err != nil {
		return fmt.Errorf("starling: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// requests outside of a span carry no tracing headers
	_ = c.tracer.AddContextHTTPHeader(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("starling: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if v == nil {
		_, _ = io.Copy(ioutil.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("starling: decode response: %w", err)
	}
	return nil
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func newAPIError(resp *http.Response) *APIError {
	e := &APIError{Code: resp.StatusCode}

	var r errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&r); err == nil {
		e.Message = r.ErrorDescription
		if e.Message == "" {
			e.Message = r.Error
		}
	}
	return e
}
