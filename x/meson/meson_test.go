package meson

import (
	"context"
	"os"
	"path/filepath"
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

func testDirs(t *testing.T) toolchain.Dirs {
	tmp := t.TempDir()
	return toolchain.Dirs{
		Source:  filepath.Join(tmp, "postgresql-17.2"),
		Build:   filepath.Join(tmp, "postgresql-17.2", "_build"),
		Install: filepath.Join(tmp, "install"),
	}
}

func TestLifecycle(t *testing.T) {
	dirs := testDirs(t)
	rec := &recorder{}
	m := New(rec, toolchain.NewEnv(nil), dirs)
	ctx := context.Background()

	if err := m.Configure(ctx, nil, "-Dssl=openssl", "-Dicu=disabled"); err != nil {
		t.Fatal(err)
	}
	if err := m.Build(ctx, nil, 6); err != nil {
		t.Fatal(err)
	}
	if err := m.Install(ctx, nil); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"meson setup " + dirs.Build + " " + dirs.Source + " --prefix=" + dirs.Install +
			" --buildtype=release -Dssl=openssl -Dicu=disabled",
		"meson compile -C " + dirs.Build + " -j 6",
		"meson install -C " + dirs.Build,
	}
	if len(rec.cmds) != len(want) {
		t.Fatalf("got %d commands, want %d", len(rec.cmds), len(want))
	}
	for i, c := range rec.cmds {
		if c.String() != want[i] {
			t.Errorf("cmd[%d] = %q\nwant     %q", i, c.String(), want[i])
		}
		if c.Dir != dirs.Source {
			t.Errorf("cmd[%d] dir = %q, want %q", i, c.Dir, dirs.Source)
		}
	}
}

func TestConfigureWipesStaleBuildDir(t *testing.T) {
	dirs := testDirs(t)
	if err := os.MkdirAll(filepath.Join(dirs.Build, "meson-private"), 0o755); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	m := New(rec, toolchain.NewEnv(nil), dirs)
	m.BuildType("")
	if err := m.Configure(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	want := "meson setup --wipe " + dirs.Build + " " + dirs.Source + " --prefix=" + dirs.Install
	if got := rec.cmds[0].String(); got != want {
		t.Errorf("cmd = %q, want %q", got, want)
	}
}

func TestOutputDir(t *testing.T) {
	if got := New(nil, nil, toolchain.Dirs{Build: "b", Install: "i"}).OutputDir(); got != "i" {
		t.Errorf("OutputDir = %q, want %q", got, "i")
	}
}
