// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cmake wraps the cmake configure/build/install workflow.
package cmake

import (
	"context"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Name is the policy name of this toolchain.
const Name = "cmake"

type defineValue struct {
	value    string
	typeName string
}

// CMake drives CMake-based builds.
type CMake struct {
	runner    toolchain.Runner
	env       *toolchain.Env
	dirs      toolchain.Dirs
	generator string
	buildType string
	toolchain string
	defines   map[string]defineValue
}

var _ toolchain.Toolchain = (*CMake)(nil)

// New returns a ready-to-use CMake with a Release build type.
func New(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) *CMake {
	return &CMake{
		runner:    r,
		env:       env,
		dirs:      dirs,
		buildType: "Release",
		defines:   make(map[string]defineValue),
	}
}

// Name returns "cmake".
func (c *CMake) Name() string { return Name }

// Generator sets the CMake generator (e.g. "Ninja", "Unix Makefiles").
func (c *CMake) Generator(name string) { c.generator = name }

// BuildType sets CMAKE_BUILD_TYPE (e.g. "Release", "Debug").
func (c *CMake) BuildType(name string) { c.buildType = name }

// Toolchain sets CMAKE_TOOLCHAIN_FILE.
func (c *CMake) Toolchain(path string) { c.toolchain = path }

// Define adds a -D<key>:STRING=<value> definition.
func (c *CMake) Define(key, value string) {
	c.defines[key] = defineValue{value: value, typeName: "STRING"}
}

// Configure runs "cmake -S <source> -B <build>" with all configured options.
// Extra args are appended at the end, so profile flags win over defaults.
func (c *CMake) Configure(ctx context.Context, out io.Writer, args ...string) error {
	if err := os.MkdirAll(c.dirs.Build, 0o755); err != nil {
		return err
	}
	cmakeArgs := []string{"-S", c.dirs.Source, "-B", c.dirs.Build}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.dirs.Install != "" {
		c.Define("CMAKE_INSTALL_PREFIX", c.dirs.Install)
	}
	if c.toolchain != "" {
		c.Define("CMAKE_TOOLCHAIN_FILE", c.toolchain)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	cmakeArgs = append(cmakeArgs, args...)
	return c.run(ctx, out, cmakeArgs)
}

// Build runs "cmake --build <build> --parallel <jobs>".
func (c *CMake) Build(ctx context.Context, out io.Writer, jobs int) error {
	cmakeArgs := []string{"--build", c.dirs.Build}
	if c.buildType != "" {
		cmakeArgs = append(cmakeArgs, "--config", c.buildType)
	}
	if jobs > 0 {
		cmakeArgs = append(cmakeArgs, "--parallel", strconv.Itoa(jobs))
	}
	return c.run(ctx, out, cmakeArgs)
}

// Install runs "cmake --install <build>".
func (c *CMake) Install(ctx context.Context, out io.Writer) error {
	cmakeArgs := []string{"--install", c.dirs.Build}
	if c.buildType != "" {
		cmakeArgs = append(cmakeArgs, "--config", c.buildType)
	}
	if c.dirs.Install != "" {
		cmakeArgs = append(cmakeArgs, "--prefix", c.dirs.Install)
	}
	return c.run(ctx, out, cmakeArgs)
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (c *CMake) OutputDir() string { return c.dirs.OutputDir() }

func (c *CMake) run(ctx context.Context, out io.Writer, args []string) error {
	return c.runner.Run(ctx, &toolchain.Cmd{
		Dir:    c.dirs.Build,
		Name:   "cmake",
		Args:   args,
		Env:    c.env.Environ(),
		Stdout: out,
	})
}

func (c *CMake) definesArgs() []string {
	if len(c.defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.defines))
	for k := range c.defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		d := c.defines[k]
		args = append(args, "-D"+k+":"+d.typeName+"="+d.value)
	}
	return args
}
