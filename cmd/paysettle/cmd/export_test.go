// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"io"

	"github.com/spf13/afero"
)

type (
	Command = command
	Option  = option
)

var (
	NewCommand        = newCommand
	ParseMaxUnsecured = parseMaxUnsecured

	ErrInvalidMaxUnsecured = errInvalidMaxUnsecured
)

func WithHomeDir(dir string) func(c *Command) {
	return func(c *Command) {
		c.homeDir = dir
	}
}

func WithFS(fs afero.Fs) func(c *Command) {
	return func(c *Command) {
		c.fs = fs
	}
}

func WithArgs(a ...string) func(c *Command) {
	return func(c *Command) {
		c.root.SetArgs(a)
	}
}

func WithOutput(w io.Writer) func(c *Command) {
	return func(c *Command) {
		c.root.SetOut(w)
	}
}

// AuthToken resolves the access token after the start command flags are bound.
func (c *Command) AuthToken(args ...string) (string, error) {
	start, _, err := c.root.Find([]string{"start"})
	if err != nil {
		return "", err
	}
	if err := start.ParseFlags(args); err != nil {
		return "", err
	}
	if err := c.initConfig(); err != nil {
		return "", err
	}
	if err := c.config.BindPFlags(start.Flags()); err != nil {
		return "", err
	}
	return c.authToken()
}
