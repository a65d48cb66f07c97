// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ethersphere/paysettle"
	"github.com/ethersphere/paysettle/pkg/node"
	"github.com/ethersphere/paysettle/pkg/plugin"
	"github.com/ethersphere/paysettle/pkg/settlement/starling"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func (c *command) initStartCmd() {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start settling with the peer",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			v := strings.ToLower(c.config.GetString(optionNameVerbosity))
			logger, err := newLogger(cmd, v)
			if err != nil {
				return fmt.Errorf("new logger: %v", err)
			}

			authToken, err := c.authToken()
			if err != nil {
				return err
			}

			maxUnsecured, err := parseMaxUnsecured(c.config.GetString(optionNameMaxUnsecured))
			if err != nil {
				return err
			}

			debugAPIAddr := c.config.GetString(optionNameDebugAPIAddr)
			if !c.config.GetBool(optionNameDebugAPIEnable) {
				debugAPIAddr = ""
			}

			logger.Infof("version: %v", paysettle.Version)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			n, err := node.NewNode(ctx, logger, node.Options{
				DataDir:            c.config.GetString(optionNameDataDir),
				AuthToken:          authToken,
				MaxUnsecured:       maxUnsecured,
				PeerAddress:        c.config.GetString(optionNamePeerAddress),
				StarlingEndpoint:   c.config.GetString(optionNameStarlingEndpoint),
				CurrencyScale:      c.config.GetInt(optionNameCurrencyScale),
				DebugAPIAddr:       debugAPIAddr,
				TracingEnabled:     c.config.GetBool(optionNameTracingEnabled),
				TracingEndpoint:    c.config.GetString(optionNameTracingEndpoint),
				TracingServiceName: c.config.GetString(optionNameTracingServiceName),
			})
			if err != nil {
				return err
			}

			account, err := n.Plugin().Account()
			if err == nil {
				logger.Infof("account: %s", account)
			}

			// Wait for termination or interrupt signals.
			// We want to clean up things at the end.
			interruptChannel := make(chan os.Signal, 1)
			signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)

			// Block main goroutine until it is interrupted
			sig := <-interruptChannel

			logger.Debugf("received signal: %v", sig)
			logger.Info("shutting down")

			done := make(chan struct{})
			go func() {
				defer close(done)

				if err := n.Shutdown(); err != nil {
					logger.Errorf("shutdown: %v", err)
				}
			}()

			// If shutdown function is blocking too long,
			// allow process termination by receiving another signal.
			select {
			case sig := <-interruptChannel:
				logger.Debugf("received signal: %v", sig)
			case <-done:
			case <-time.After(20 * time.Second):
				logger.Error("shutdown timed out")
			}

			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setDataFlags(cmd)
	cmd.Flags().String(optionNameAuthToken, "", "settlement network access token")
	cmd.Flags().String(optionNameAuthTokenFile, "", "path to a file that contains the settlement network access token")
	cmd.Flags().String(optionNameMaxUnsecured, "", "maximum amount of incoming value not yet settled, in currency minor units")
	cmd.Flags().String(optionNamePeerAddress, "", "settlement network account of the peer")
	cmd.Flags().String(optionNameStarlingEndpoint, starling.DefaultEndpoint, "settlement network API endpoint")
	cmd.Flags().Int(optionNameCurrencyScale, plugin.DefaultCurrencyScale, "number of decimal places of the account currency")
	cmd.Flags().Bool(optionNameDebugAPIEnable, false, "enable debug HTTP API")
	cmd.Flags().String(optionNameDebugAPIAddr, ":1635", "debug HTTP API listen address")
	cmd.Flags().Bool(optionNameTracingEnabled, false, "enable tracing")
	cmd.Flags().String(optionNameTracingEndpoint, "127.0.0.1:6831", "endpoint to send tracing data")
	cmd.Flags().String(optionNameTracingServiceName, "paysettle", "service name identifier for tracing")

	c.root.AddCommand(cmd)
}

// authToken returns the token given directly or read from the token file.
func (c *command) authToken() (string, error) {
	if token := c.config.GetString(optionNameAuthToken); token != "" {
		return token, nil
	}
	tokenFile := c.config.GetString(optionNameAuthTokenFile)
	if tokenFile == "" {
		return "", nil
	}
	b, err := afero.ReadFile(c.fs, tokenFile)
	if err != nil {
		return "", fmt.Errorf("read auth token file: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

var errInvalidMaxUnsecured = errors.New("max unsecured must be a non-negative integer")

func parseMaxUnsecured(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %s", plugin.ErrInvalidFields, optionNameMaxUnsecured)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s %q", errInvalidMaxUnsecured, optionNameMaxUnsecured, s)
	}
	return v, nil
}
