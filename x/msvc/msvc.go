// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package msvc drives the Perl-based MSVC build scripts shipped in
// src/tools/msvc of older PostgreSQL releases. The scripts build in tree,
// so the build directory is only used for the generated config.
package msvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Name is the policy name of this toolchain.
const Name = "msvc"

// ToolsDir is the location of the build scripts relative to the source root.
const ToolsDir = "src/tools/msvc"

// MSVC drives builds with build.pl/install.pl.
type MSVC struct {
	runner toolchain.Runner
	env    *toolchain.Env
	dirs   toolchain.Dirs
	perl   string
}

var _ toolchain.Toolchain = (*MSVC)(nil)

// New returns a ready-to-use MSVC.
func New(r toolchain.Runner, env *toolchain.Env, dirs toolchain.Dirs) *MSVC {
	return &MSVC{runner: r, env: env, dirs: dirs, perl: "perl"}
}

// Name returns "msvc".
func (m *MSVC) Name() string { return Name }

// Perl overrides the perl interpreter.
func (m *MSVC) Perl(prog string) { m.perl = prog }

// Configure writes config.pl next to the build scripts. Each arg is a
// key=value pair; the value "undef" disables the feature.
func (m *MSVC) Configure(ctx context.Context, out io.Writer, args ...string) error {
	opts := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return fmt.Errorf("msvc: invalid config option %q, want key=value", arg)
		}
		opts[k] = v
	}
	data := ConfigPL(opts)
	path := filepath.Join(m.toolsDir(), "config.pl")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	if out != nil {
		fmt.Fprintf(out, "wrote %s\n", path)
		out.Write(data)
	}
	return nil
}

// Build runs "perl build.pl" with MSBuild parallelism set through MSBFLAGS.
func (m *MSVC) Build(ctx context.Context, out io.Writer, jobs int) error {
	env := m.env.Clone()
	if jobs > 0 {
		env.AppendFlag("MSBFLAGS", "/m:"+strconv.Itoa(jobs))
	}
	return m.run(ctx, out, env, []string{"build.pl"})
}

// Install runs "perl install.pl <prefix>".
func (m *MSVC) Install(ctx context.Context, out io.Writer) error {
	args := []string{"install.pl"}
	if m.dirs.Install != "" {
		args = append(args, m.dirs.Install)
	}
	return m.run(ctx, out, m.env, args)
}

// OutputDir returns the install dir if set, otherwise the build dir.
func (m *MSVC) OutputDir() string { return m.dirs.OutputDir() }

func (m *MSVC) toolsDir() string {
	return filepath.Join(m.dirs.Source, filepath.FromSlash(ToolsDir))
}

func (m *MSVC) run(ctx context.Context, out io.Writer, env *toolchain.Env, args []string) error {
	return m.runner.Run(ctx, &toolchain.Cmd{
		Dir:    m.toolsDir(),
		Name:   m.perl,
		Args:   args,
		Env:    env.Environ(),
		Stdout: out,
	})
}

// ConfigPL renders opts as a config.pl file understood by build.pl.
func ConfigPL(opts map[string]string) []byte {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	b.WriteString("# Configuration arguments for vcbuild.\nuse strict;\nuse warnings;\n\nour $config = {\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "\t%s => %s,\n", k, perlValue(opts[k]))
	}
	b.WriteString("};\n\n1;\n")
	return b.Bytes()
}

func perlValue(v string) string {
	if v == "undef" {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
