// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package toolchain defines the contract shared by the upstream build system
// drivers (autotools, CMake, Meson, MSVC, Go) and the plumbing they use to run
// external tools.
package toolchain

import (
	"context"
	"io"
)

// Toolchain captures the lifecycle of one upstream build system applied to
// one extracted source tree. Every step writes the combined output of the
// tools it runs to out.
type Toolchain interface {
	// Name is the policy name of the toolchain ("autotools", "cmake", ...).
	Name() string

	// Configure prepares the out-of-tree build directory. args are the
	// build-system native flags derived from the package profile.
	Configure(ctx context.Context, out io.Writer, args ...string) error

	// Build compiles with the given parallelism degree.
	Build(ctx context.Context, out io.Writer, jobs int) error

	// Install copies the build products into the install prefix.
	Install(ctx context.Context, out io.Writer) error

	// OutputDir is where installed artifacts land.
	OutputDir() string
}

// Dirs locates the trees a toolchain works with.
type Dirs struct {
	Source  string // extracted source tree
	Build   string // out-of-tree build directory
	Install string // install prefix
}

// Factory constructs a toolchain for one job.
type Factory func(r Runner, env *Env, dirs Dirs) Toolchain

// OutputDir returns the install dir if set, otherwise the build dir.
func (d Dirs) OutputDir() string {
	if d.Install != "" {
		return d.Install
	}
	return d.Build
}
