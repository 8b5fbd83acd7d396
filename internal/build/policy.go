package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goplus/srcbuild/pkgs/version"
	"github.com/goplus/srcbuild/x/autotools"
	"github.com/goplus/srcbuild/x/cmake"
	"github.com/goplus/srcbuild/x/gotool"
	"github.com/goplus/srcbuild/x/meson"
	"github.com/goplus/srcbuild/x/msvc"
)

// Rule selects a toolchain for a package. Empty OS matches every OS; empty
// Versions matches every version.
type Rule struct {
	Package   string `yaml:"package"`
	OS        string `yaml:"os,omitempty"`
	Versions  string `yaml:"versions,omitempty"`
	Toolchain string `yaml:"toolchain"`
}

// Policy is an ordered rule table; the first matching rule wins.
type Policy []Rule

// DefaultPolicy returns the built-in rules. Upstream projects switch build
// systems between releases, so thresholds live here as data.
func DefaultPolicy() Policy {
	return Policy{
		{Package: "postgresql", OS: "windows", Versions: "<17", Toolchain: msvc.Name},
		{Package: "postgresql", Versions: ">=17", Toolchain: meson.Name},
		{Package: "postgresql", Versions: "<17", Toolchain: autotools.Name},
		{Package: "mysql", Toolchain: cmake.Name},
		{Package: "mongo-tools", Toolchain: gotool.Name},
	}
}

// Validate checks every rule has a package, a known toolchain and a valid
// version constraint.
func (p Policy) Validate() error {
	for i, r := range p {
		if r.Package == "" {
			return fmt.Errorf("policy rule %d: missing package", i)
		}
		if _, ok := toolchains[r.Toolchain]; !ok {
			return fmt.Errorf("policy rule %d (%s): unknown toolchain %q", i, r.Package, r.Toolchain)
		}
		if _, err := version.ParseConstraint(r.Versions); err != nil {
			return fmt.Errorf("policy rule %d (%s): %w", i, r.Package, err)
		}
	}
	return nil
}

// Select returns the toolchain of the first rule matching pkg on goos at v,
// or "" when no rule matches.
func (p Policy) Select(pkg, goos string, v version.Version) (string, error) {
	for _, r := range p {
		if !strings.EqualFold(r.Package, pkg) {
			continue
		}
		if r.OS != "" && r.OS != goos {
			continue
		}
		c, err := version.ParseConstraint(r.Versions)
		if err != nil {
			return "", fmt.Errorf("policy rule for %s: %w", r.Package, err)
		}
		if c.Check(v) {
			return r.Toolchain, nil
		}
	}
	return "", nil
}

// detectFiles maps marker files at the source root to toolchains, in
// priority order.
var detectFiles = []struct {
	file, toolchain string
}{
	{"configure", autotools.Name},
	{"meson.build", meson.Name},
	{"CMakeLists.txt", cmake.Name},
	{"go.mod", gotool.Name},
}

// Detect guesses the toolchain from the files of an extracted tree. It
// returns "" when nothing is recognized.
func Detect(srcDir string) string {
	for _, d := range detectFiles {
		if fi, err := os.Stat(filepath.Join(srcDir, d.file)); err == nil && !fi.IsDir() {
			return d.toolchain
		}
	}
	return ""
}
