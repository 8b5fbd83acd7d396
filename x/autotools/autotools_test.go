// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autotools

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

type recorder struct {
	cmds []*toolchain.Cmd
}

func (r *recorder) Run(ctx context.Context, c *toolchain.Cmd) error {
	r.cmds = append(r.cmds, c)
	return nil
}

func TestCommandLines(t *testing.T) {
	tmp := t.TempDir()
	dirs := toolchain.Dirs{
		Source:  filepath.Join(tmp, "src"),
		Build:   filepath.Join(tmp, "src", "_build"),
		Install: filepath.Join(tmp, "inst"),
	}
	env := toolchain.NewEnv([]string{"CPPFLAGS=-I/opt/ssl/include"})
	rec := &recorder{}
	a := New(rec, env, dirs)
	ctx := context.Background()

	if err := a.Configure(ctx, nil, "--with-openssl", "--without-icu"); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := a.Build(ctx, nil, 8); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := a.Install(ctx, nil); err != nil {
		t.Fatalf("Install: %v", err)
	}

	if _, err := os.Stat(dirs.Build); err != nil {
		t.Errorf("build dir not created: %v", err)
	}
	want := []string{
		filepath.Join(dirs.Source, "configure") + " --prefix=" + dirs.Install + " --with-openssl --without-icu",
		"make -j8",
		"make install",
	}
	if len(rec.cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(rec.cmds), len(want))
	}
	for i, c := range rec.cmds {
		if c.String() != want[i] {
			t.Errorf("cmd[%d] = %q, want %q", i, c.String(), want[i])
		}
		if c.Dir != dirs.Build {
			t.Errorf("cmd[%d] dir = %q, want %q", i, c.Dir, dirs.Build)
		}
		if !strings.Contains(strings.Join(c.Env, "\n"), "CPPFLAGS=-I/opt/ssl/include") {
			t.Errorf("cmd[%d] env missing job CPPFLAGS", i)
		}
	}
}

func TestBuildWithoutJobs(t *testing.T) {
	rec := &recorder{}
	a := New(rec, toolchain.NewEnv(nil), toolchain.Dirs{})
	a.Make("gmake")
	if err := a.Build(context.Background(), nil, 0); err != nil {
		t.Fatal(err)
	}
	if got := rec.cmds[0].String(); got != "gmake" {
		t.Errorf("cmd = %q, want %q", got, "gmake")
	}
	if rec.cmds[0].Dir != "." {
		t.Errorf("dir = %q, want %q", rec.cmds[0].Dir, ".")
	}
}

func TestOutputDirPrefersInstall(t *testing.T) {
	if got := New(nil, nil, toolchain.Dirs{Build: "build"}).OutputDir(); got != "build" {
		t.Fatalf("OutputDir = %q, want %q", got, "build")
	}
	if got := New(nil, nil, toolchain.Dirs{Build: "build", Install: "inst"}).OutputDir(); got != "inst" {
		t.Fatalf("OutputDir = %q, want %q", got, "inst")
	}
}

func TestConfigureBuildInstallE2E(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("configure scripts need a POSIX shell")
	}
	for _, bin := range []string{"make", "sh", "sed"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not found in PATH", bin)
		}
	}

	tmp := t.TempDir()
	absSourceDir, err := filepath.Abs(filepath.Join("testdata", "project"))
	if err != nil {
		t.Fatalf("abs source dir: %v", err)
	}
	dirs := toolchain.Dirs{
		Source:  absSourceDir,
		Build:   filepath.Join(tmp, "build"),
		Install: filepath.Join(tmp, "install"),
	}
	env := toolchain.NewEnv(os.Environ())
	env.Set("CUSTOM", "VAL")
	a := New(toolchain.ExecRunner{}, env, dirs)

	var out bytes.Buffer
	ctx := context.Background()
	if err := a.Configure(ctx, &out, "--enable-foo"); err != nil {
		t.Fatalf("configure: %v\n%s", err, out.String())
	}
	if err := a.Build(ctx, &out, 2); err != nil {
		t.Fatalf("build: %v\n%s", err, out.String())
	}
	if err := a.Install(ctx, &out); err != nil {
		t.Fatalf("install: %v\n%s", err, out.String())
	}

	data, err := os.ReadFile(filepath.Join(dirs.Build, "config.log"))
	if err != nil {
		t.Fatalf("read config.log: %v", err)
	}
	for _, snippet := range []string{"CUSTOM=VAL", "PREFIX=" + dirs.Install, "--enable-foo"} {
		if !strings.Contains(string(data), snippet) {
			t.Errorf("config.log missing %q", snippet)
		}
	}
	if !strings.Contains(out.String(), "configure: wrote Makefile") {
		t.Errorf("captured output missing configure line: %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(dirs.Install, "share", "hello.txt")); err != nil {
		t.Errorf("installed file missing: %v", err)
	}
}
