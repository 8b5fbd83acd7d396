// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package autotools wraps the classic configure/make/make-install workflow.
package autotools

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Name is the policy name of this toolchain.
const Name = "autotools"

// AutoTools drives Autotools-style builds.
type AutoTools struct {
	runner toolchain.Runner
	env    *toolchain.Env
	dirs   toolchain.Dirs
	make   string
}

var _ toolchain.Toolchain = (*AutoTools)(nil)

// New returns a ready-to-use AutoTools.
func New(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) *AutoTools {
	return &AutoTools{runner: r, env: env, dirs: dirs, make: "make"}
}

// Name returns "autotools".
func (a *AutoTools) Name() string { return Name }

// Make overrides the make program (e.g. "gmake" on BSDs).
func (a *AutoTools) Make(prog string) { a.make = prog }

// Configure runs <source>/configure inside the build directory.
// --prefix is prepended automatically when an install dir is set.
// Extra flags are appended after --prefix.
func (a *AutoTools) Configure(ctx context.Context, out io.Writer, args ...string) error {
	dir := a.workDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	exe := filepath.Join(a.dirs.Source, "configure")
	if dir == "." {
		exe = "./configure"
	}
	flags := make([]string, 0, 1+len(args))
	if a.dirs.Install != "" {
		flags = append(flags, "--prefix="+a.dirs.Install)
	}
	return a.run(ctx, out, exe, append(flags, args...))
}

// Build runs "make -j<jobs>".
func (a *AutoTools) Build(ctx context.Context, out io.Writer, jobs int) error {
	var args []string
	if jobs > 0 {
		args = append(args, "-j"+strconv.Itoa(jobs))
	}
	return a.run(ctx, out, a.make, args)
}

// Install runs "make install".
func (a *AutoTools) Install(ctx context.Context, out io.Writer) error {
	return a.run(ctx, out, a.make, []string{"install"})
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (a *AutoTools) OutputDir() string { return a.dirs.OutputDir() }

func (a *AutoTools) workDir() string {
	if a.dirs.Build == "" {
		return "."
	}
	return a.dirs.Build
}

func (a *AutoTools) run(ctx context.Context, out io.Writer, name string, args []string) error {
	return a.runner.Run(ctx, &toolchain.Cmd{
		Dir:    a.workDir(),
		Name:   name,
		Args:   args,
		Env:    a.env.Environ(),
		Stdout: out,
	})
}
