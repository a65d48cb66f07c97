// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethersphere/paysettle/pkg/node"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

const optionNameOutput = "output"

type settlementsOutput struct {
	Sent     string                   `yaml:"sent"`
	Received string                   `yaml:"received"`
	Records  []settlementRecordOutput `yaml:"records"`
}

type settlementRecordOutput struct {
	ID       string `yaml:"id"`
	Amount   string `yaml:"amount"`
	Received string `yaml:"received"`
}

func (c *command) initSettlementsCmd() {
	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "Print settlements kept in the data directory",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}

			v := strings.ToLower(c.config.GetString(optionNameVerbosity))
			logger, err := newLogger(cmd, v)
			if err != nil {
				return fmt.Errorf("new logger: %v", err)
			}

			output := c.config.GetString(optionNameOutput)
			if output != "text" && output != "yaml" {
				return fmt.Errorf("unknown output format %q", output)
			}

			s, err := node.ReadSettlements(logger, c.config.GetString(optionNameDataDir))
			if err != nil {
				return fmt.Errorf("read settlements: %w", err)
			}

			out := settlementsOutput{
				Sent:     s.Sent.String(),
				Received: s.Received.String(),
				Records:  make([]settlementRecordOutput, 0, len(s.Records)),
			}
			for _, r := range s.Records {
				out.Records = append(out.Records, settlementRecordOutput{
					ID:       r.ID,
					Amount:   r.Amount.String(),
					Received: r.Received.UTC().Format(time.RFC3339),
				})
			}

			if output == "yaml" {
				b, err := yaml.Marshal(out)
				if err != nil {
					return fmt.Errorf("encode settlements: %w", err)
				}
				cmd.Print(string(b))
				return nil
			}

			cmd.Printf("total sent: %s\n", out.Sent)
			cmd.Printf("total received: %s\n", out.Received)
			for _, r := range out.Records {
				cmd.Printf("%s\t%s\t%s\n", r.ID, r.Amount, r.Received)
			}
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return c.config.BindPFlags(cmd.Flags())
		},
	}

	c.setDataFlags(cmd)
	cmd.Flags().String(optionNameOutput, "text", "output format, text or yaml")

	c.root.AddCommand(cmd)
}
