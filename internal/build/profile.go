package build

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/goplus/srcbuild/internal/locate"
	"github.com/goplus/srcbuild/x/autotools"
	"github.com/goplus/srcbuild/x/cmake"
	"github.com/goplus/srcbuild/x/gotool"
	"github.com/goplus/srcbuild/x/meson"
	"github.com/goplus/srcbuild/x/msvc"
)

// Flags are the native arguments for one dependency on one toolchain.
// Enable and Disable may use the placeholders ${root}, ${include}, ${lib}
// and ${marker}.
type Flags struct {
	Enable  []string `yaml:"enable,omitempty"`
	Disable []string `yaml:"disable,omitempty"`
}

// Feature maps a toolchain name to its flags for one dependency.
type Feature map[string]Flags

// Profile maps a dependency name to the feature it controls in a package.
type Profile map[string]Feature

// Profiles maps a package name to its profile.
type Profiles map[string]Profile

// DefaultProfiles returns the built-in feature vocabulary.
func DefaultProfiles() Profiles {
	return Profiles{
		"postgresql": {
			locate.OpenSSL: {
				autotools.Name: {Enable: []string{"--with-openssl"}, Disable: []string{"--without-openssl"}},
				meson.Name:     {Enable: []string{"-Dssl=openssl"}, Disable: []string{"-Dssl=none"}},
				msvc.Name:      {Enable: []string{"openssl=${root}"}, Disable: []string{"openssl=undef"}},
			},
			locate.ICU: {
				autotools.Name: {Enable: []string{"--with-icu"}, Disable: []string{"--without-icu"}},
				meson.Name:     {Enable: []string{"-Dicu=enabled"}, Disable: []string{"-Dicu=disabled"}},
				msvc.Name:      {Enable: []string{"icu=${root}"}, Disable: []string{"icu=undef"}},
			},
			locate.Ncurses: {
				autotools.Name: {Disable: []string{"--without-readline"}},
				meson.Name:     {Enable: []string{"-Dreadline=enabled"}, Disable: []string{"-Dreadline=disabled"}},
			},
		},
		"mysql": {
			locate.OpenSSL: {
				// MySQL 8 cannot be built without TLS; system is the nearest to off.
				cmake.Name: {Enable: []string{"-DWITH_SSL=${root}"}, Disable: []string{"-DWITH_SSL=system"}},
			},
			locate.Ncurses: {
				cmake.Name: {Enable: []string{
					"-DCURSES_INCLUDE_PATH=${include}",
					"-DCURSES_LIBRARY=${marker}",
				}},
			},
		},
		"mongo-tools": {
			locate.OpenSSL: {
				gotool.Name: {Enable: []string{gotool.TagPrefix + "ssl"}},
			},
		},
	}
}

// Merge overlays other onto p: a package present in other replaces the
// built-in entry for that dependency, dependency by dependency.
func (p Profiles) Merge(other Profiles) Profiles {
	out := make(Profiles, len(p)+len(other))
	for pkg, prof := range p {
		out[pkg] = prof
	}
	for pkg, prof := range other {
		merged := make(Profile)
		for dep, f := range out[strings.ToLower(pkg)] {
			merged[dep] = f
		}
		for dep, f := range prof {
			merged[dep] = f
		}
		out[strings.ToLower(pkg)] = merged
	}
	return out
}

// Lookup returns the profile of pkg, matched case-insensitively.
func (p Profiles) Lookup(pkg string) Profile {
	if prof, ok := p[pkg]; ok {
		return prof
	}
	for name, prof := range p {
		if strings.EqualFold(name, pkg) {
			return prof
		}
	}
	return nil
}

// Args translates the located dependencies into tc's flag vocabulary.
// A dependency that is absent from deps, or nil, always yields its Disable
// flags. Dependencies are visited in name order.
func (p Profile) Args(tc string, deps map[string]*locate.Resolved) []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var args []string
	for _, name := range names {
		flags, ok := p[name][tc]
		if !ok {
			continue
		}
		res := deps[name]
		if res == nil {
			args = append(args, flags.Disable...)
			continue
		}
		r := placeholders(res)
		for _, f := range flags.Enable {
			args = append(args, r.Replace(f))
		}
	}
	return args
}

func placeholders(res *locate.Resolved) *strings.Replacer {
	include := res.IncludeDir
	if include == "" {
		include = filepath.Join(res.Root, "include")
	}
	return strings.NewReplacer(
		"${root}", res.Root,
		"${include}", include,
		"${lib}", res.LibDir,
		"${marker}", res.Marker,
	)
}
