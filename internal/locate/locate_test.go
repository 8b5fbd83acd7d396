package locate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func noEnv(string) (string, bool) { return "", false }

func TestLocateExactMarker(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "lib", "libssl.so"))
	os.MkdirAll(filepath.Join(root, "include"), 0o755)

	l := &Locator{LookupEnv: noEnv}
	res := l.Locate(context.Background(), Spec{
		Name:    "openssl",
		Roots:   []string{filepath.Join(root, "missing"), root},
		Markers: []string{"libssl.so"},
	})
	if res == nil {
		t.Fatal("openssl not found")
	}
	if res.Root != root || res.LibDir != filepath.Join(root, "lib") {
		t.Errorf("res = %+v", res)
	}
	if res.IncludeDir != filepath.Join(root, "include") {
		t.Errorf("IncludeDir = %q", res.IncludeDir)
	}
	if res.Marker != filepath.Join(root, "lib", "libssl.so") {
		t.Errorf("Marker = %q", res.Marker)
	}
}

func TestLocateGlobMarker(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "lib64", "icuuc74.lib"))

	l := &Locator{LookupEnv: noEnv}
	res := l.Locate(context.Background(), Spec{
		Name:    "icu",
		Roots:   []string{root},
		LibDirs: []string{"lib", "lib64"},
		Markers: []string{"icuuc*.lib"},
	})
	if res == nil {
		t.Fatal("icu not found")
	}
	if res.LibDir != filepath.Join(root, "lib64") {
		t.Errorf("LibDir = %q", res.LibDir)
	}
	if res.IncludeDir != "" {
		t.Errorf("IncludeDir = %q, want empty", res.IncludeDir)
	}
}

func TestLocatePriority(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(first, "lib", "libx.a"))
	touch(t, filepath.Join(second, "lib", "libx.a"))

	l := &Locator{LookupEnv: noEnv}
	res := l.Locate(context.Background(), Spec{Name: "x", Roots: []string{first, second}, Markers: []string{"libx.a"}})
	if res == nil || res.Root != first {
		t.Fatalf("res = %+v, want root %s", res, first)
	}
}

func TestLocateAbsent(t *testing.T) {
	l := &Locator{LookupEnv: noEnv}
	got := l.LocateAll(context.Background(), []Spec{
		{Name: "y", Roots: []string{t.TempDir()}, Markers: []string{"liby.so"}},
	})
	if res, ok := got["y"]; !ok || res != nil {
		t.Fatalf("LocateAll = %v, want y => nil", got)
	}
}

func TestRootExpansion(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "installed", "x64-windows", "lib", "libssl.lib"))
	home := t.TempDir()
	touch(t, filepath.Join(home, "local", "lib", "libssl.lib"))

	env := map[string]string{"VCPKG_ROOT": root, "EMPTY": ""}
	l := &Locator{
		LookupEnv: func(k string) (string, bool) { v, ok := env[k]; return v, ok },
		HomeDir:   home,
	}
	spec := Spec{
		Name:    "openssl",
		Roots:   []string{"${UNSET}/x", "$EMPTY/x", "${VCPKG_ROOT}/installed/x64-windows", "~/local"},
		Markers: []string{"libssl.lib"},
	}
	roots := l.roots(context.Background(), spec)
	want := []string{filepath.Join(root, "installed", "x64-windows"), filepath.Join(home, "local")}
	if fmt.Sprint(roots) != fmt.Sprint(want) {
		t.Errorf("roots = %v, want %v", roots, want)
	}
	if res := l.Locate(context.Background(), spec); res == nil || res.Root != want[0] {
		t.Errorf("res = %+v", res)
	}
}

func TestPrefixCommandFirst(t *testing.T) {
	brew, system := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(brew, "lib", "libssl.dylib"))
	touch(t, filepath.Join(system, "lib", "libssl.dylib"))

	var calls []string
	l := &Locator{
		LookupEnv: noEnv,
		Runner: toolchain.RunFunc(func(ctx context.Context, c *toolchain.Cmd) error {
			calls = append(calls, c.String())
			if c.Args[1] == "missing" {
				return errors.New("exit status 1")
			}
			fmt.Fprintf(c.Stdout, "Warning: something\n%s\n", brew)
			return nil
		}),
	}
	res := l.Locate(context.Background(), Spec{
		Name:           "openssl",
		PrefixCommands: [][]string{{"brew", "--prefix", "missing"}, {"brew", "--prefix", "openssl@3"}},
		Roots:          []string{system},
		Markers:        []string{"libssl.dylib"},
	})
	if res == nil || res.Root != brew {
		t.Fatalf("res = %+v, want brew root %s", res, brew)
	}
	if len(calls) != 2 {
		t.Errorf("calls = %v", calls)
	}
}

func TestRelocate(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "lib", "libssl.lib"))
	touch(t, filepath.Join(root, "lib", "libcrypto.lib"))
	res := &Resolved{
		Name: "openssl",
		Root: root,
		Relocate: []Relocation{{
			Toolchain: "msvc",
			Files:     []string{"lib/libssl.lib", "lib/libcrypto.lib"},
			To:        "lib/VC",
		}},
	}

	if created, err := Relocate(res, "meson"); err != nil || len(created) != 0 {
		t.Fatalf("other toolchain: created %v, err %v", created, err)
	}
	created, err := Relocate(res, "msvc")
	if err != nil {
		t.Fatal(err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %v", created)
	}
	for _, f := range []string{"libssl.lib", "libcrypto.lib"} {
		if _, err := os.Stat(filepath.Join(root, "lib", "VC", f)); err != nil {
			t.Errorf("%s not relocated: %v", f, err)
		}
	}
	again, err := Relocate(res, "msvc")
	if err != nil || len(again) != 0 {
		t.Errorf("second run created %v, err %v", again, err)
	}
	if created, err := Relocate(nil, "msvc"); err != nil || created != nil {
		t.Errorf("nil res: %v %v", created, err)
	}
}

func TestDefaultSpecs(t *testing.T) {
	for _, goos := range []string{"linux", "darwin", "windows", "freebsd"} {
		specs := DefaultSpecs(goos)
		names := make(map[string]bool)
		for _, s := range specs {
			names[s.Name] = true
			if len(s.Markers) == 0 {
				t.Errorf("%s/%s: no markers", goos, s.Name)
			}
		}
		for _, want := range []string{OpenSSL, ICU, Ncurses} {
			if !names[want] {
				t.Errorf("%s: missing %s", goos, want)
			}
		}
	}
	win := DefaultSpecs("windows")
	if win[0].Relocate[0].Toolchain != "msvc" {
		t.Errorf("windows openssl relocation = %+v", win[0].Relocate)
	}
}

func TestMerge(t *testing.T) {
	base := []Spec{{Name: "a", Roots: []string{"/a"}}, {Name: "b"}}
	got := Merge(base, []Spec{{Name: "a", Roots: []string{"/opt/a"}}, {Name: "c"}})
	if len(got) != 3 || got[0].Roots[0] != "/opt/a" || got[2].Name != "c" {
		t.Errorf("Merge = %+v", got)
	}
	if base[0].Roots[0] != "/a" {
		t.Error("Merge mutated base")
	}
}
