// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package meson wraps the meson setup/compile/install workflow. Meson drives
// ninja itself, so no separate ninja step is needed.
package meson

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Name is the policy name of this toolchain.
const Name = "meson"

// Meson drives Meson/Ninja builds.
type Meson struct {
	runner    toolchain.Runner
	env       *toolchain.Env
	dirs      toolchain.Dirs
	buildType string
}

var _ toolchain.Toolchain = (*Meson)(nil)

// New returns a ready-to-use Meson with a release build type.
func New(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) *Meson {
	return &Meson{runner: r, env: env, dirs: dirs, buildType: "release"}
}

// Name returns "meson".
func (m *Meson) Name() string { return Name }

// BuildType sets --buildtype (e.g. "release", "debug", "plain").
func (m *Meson) BuildType(name string) { m.buildType = name }

// Configure runs "meson setup <build> <source>". An existing build directory
// from a previous run is wiped so stale options never leak into this one.
func (m *Meson) Configure(ctx context.Context, out io.Writer, args ...string) error {
	setup := []string{"setup"}
	if _, err := os.Stat(filepath.Join(m.dirs.Build, "meson-private")); err == nil {
		setup = append(setup, "--wipe")
	}
	setup = append(setup, m.dirs.Build, m.dirs.Source)
	if m.dirs.Install != "" {
		setup = append(setup, "--prefix="+m.dirs.Install)
	}
	if m.buildType != "" {
		setup = append(setup, "--buildtype="+m.buildType)
	}
	setup = append(setup, args...)
	return m.run(ctx, out, m.dirs.Source, setup)
}

// Build runs "meson compile -C <build> -j <jobs>".
func (m *Meson) Build(ctx context.Context, out io.Writer, jobs int) error {
	args := []string{"compile", "-C", m.dirs.Build}
	if jobs > 0 {
		args = append(args, "-j", strconv.Itoa(jobs))
	}
	return m.run(ctx, out, m.dirs.Source, args)
}

// Install runs "meson install -C <build>".
func (m *Meson) Install(ctx context.Context, out io.Writer) error {
	return m.run(ctx, out, m.dirs.Source, []string{"install", "-C", m.dirs.Build})
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (m *Meson) OutputDir() string { return m.dirs.OutputDir() }

func (m *Meson) run(ctx context.Context, out io.Writer, dir string, args []string) error {
	return m.runner.Run(ctx, &toolchain.Cmd{
		Dir:    dir,
		Name:   "meson",
		Args:   args,
		Env:    m.env.Environ(),
		Stdout: out,
	})
}
