// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gotool builds Go projects such as mongo-tools with the go command.
package gotool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Name is the policy name of this toolchain.
const Name = "go"

// TagPrefix marks a configure arg as a build tag rather than a go build flag.
const TagPrefix = "tag:"

// Go drives "go build" for every main package of a module.
type Go struct {
	runner toolchain.Runner
	env    *toolchain.Env
	dirs   toolchain.Dirs
	tags   []string
	flags  []string
}

var _ toolchain.Toolchain = (*Go)(nil)

// New returns a ready-to-use Go.
func New(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) *Go {
	return &Go{runner: r, env: env, dirs: dirs}
}

// Name returns "go".
func (g *Go) Name() string { return Name }

// Configure downloads module dependencies and records the build tags and
// flags for Build. Args prefixed with "tag:" become build tags.
func (g *Go) Configure(ctx context.Context, out io.Writer, args ...string) error {
	g.tags, g.flags = nil, nil
	for _, arg := range args {
		if tag, ok := strings.CutPrefix(arg, TagPrefix); ok {
			g.tags = append(g.tags, tag)
			continue
		}
		g.flags = append(g.flags, arg)
	}
	return g.run(ctx, out, []string{"mod", "download"})
}

// Build runs "go build ./..." writing binaries to <build>/bin.
func (g *Go) Build(ctx context.Context, out io.Writer, jobs int) error {
	if err := os.MkdirAll(g.binDir(), 0o755); err != nil {
		return err
	}
	args := []string{"build"}
	if jobs > 0 {
		args = append(args, "-p", strconv.Itoa(jobs))
	}
	args = append(args, "-trimpath")
	if len(g.tags) > 0 {
		args = append(args, "-tags", strings.Join(g.tags, ","))
	}
	args = append(args, g.flags...)
	args = append(args, "-o", g.binDir()+string(filepath.Separator), "./...")
	return g.run(ctx, out, args)
}

// Install copies the built binaries into <prefix>/bin.
func (g *Go) Install(ctx context.Context, out io.Writer) error {
	if g.dirs.Install == "" {
		return nil
	}
	dest := filepath.Join(g.dirs.Install, "bin")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(g.binDir())
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		target := filepath.Join(dest, e.Name())
		if err := copyFile(filepath.Join(g.binDir(), e.Name()), target); err != nil {
			return err
		}
		if out != nil {
			fmt.Fprintf(out, "installed %s\n", target)
		}
	}
	return nil
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (g *Go) OutputDir() string { return g.dirs.OutputDir() }

func (g *Go) binDir() string { return filepath.Join(g.dirs.Build, "bin") }

func (g *Go) run(ctx context.Context, out io.Writer, args []string) error {
	return g.runner.Run(ctx, &toolchain.Cmd{
		Dir:    g.dirs.Source,
		Name:   "go",
		Args:   args,
		Env:    g.env.Environ(),
		Stdout: out,
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	outf, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, fi.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(outf, in); err != nil {
		outf.Close()
		return err
	}
	return outf.Close()
}
