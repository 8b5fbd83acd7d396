// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package toolchain

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Cmd describes one external tool invocation.
type Cmd struct {
	Dir    string
	Name   string
	Args   []string
	Env    []string  // full environment; nil inherits the process environment
	Stdout io.Writer // receives stdout and stderr
}

// String renders c the way a shell user would type it.
func (c *Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes external tools. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, c *Cmd) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run starts c and waits for it to exit. A non-zero exit is returned as the
// *exec.ExitError wrapped with the command line.
func (ExecRunner) Run(ctx context.Context, c *Cmd) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
		cmd.Stderr = c.Stdout
	}
	zap.S().Debugw("exec", "dir", c.Dir, "cmd", c.String())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", c.Name, err)
	}
	return nil
}

// RunFunc adapts a function to the Runner interface.
type RunFunc func(ctx context.Context, c *Cmd) error

// Run calls f(ctx, c).
func (f RunFunc) Run(ctx context.Context, c *Cmd) error { return f(ctx, c) }
