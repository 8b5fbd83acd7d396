// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package toolchain

import (
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Env is the environment handed to every command of one job. It never
// touches the process environment, so jobs stay reproducible and can be
// tested in isolation.
type Env struct {
	// GOOS selects the search-path vocabulary: INCLUDE/LIB with ";" on
	// windows, CPPFLAGS/LDFLAGS with ":" elsewhere.
	GOOS string
	vars map[string]string
}

// NewEnv returns an Env seeded from base, a list of "key=value" pairs such as
// os.Environ().
func NewEnv(base []string) *Env {
	e := &Env{GOOS: runtime.GOOS, vars: make(map[string]string, len(base))}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			e.vars[k] = v
		}
	}
	return e
}

// Clone returns an independent copy of e.
func (e *Env) Clone() *Env {
	return &Env{GOOS: e.GOOS, vars: maps.Clone(e.vars)}
}

// Get returns the value of key, or "".
func (e *Env) Get(key string) string { return e.vars[key] }

// Set sets key=value.
func (e *Env) Set(key, value string) { e.vars[key] = value }

// Merge sets every pair of vars.
func (e *Env) Merge(vars map[string]string) {
	for k, v := range vars {
		e.vars[k] = v
	}
}

// PrependPath prepends value to a PATH-style variable.
func (e *Env) PrependPath(key, value string) {
	if cur := e.vars[key]; cur != "" {
		value += e.listSep() + cur
	}
	e.vars[key] = value
}

// AppendFlag appends a space-separated flag.
func (e *Env) AppendFlag(key, flag string) {
	if cur := e.vars[key]; cur != "" {
		flag = cur + " " + flag
	}
	e.vars[key] = flag
}

// Use widens the search paths so compilers, pkg-config, CMake and cgo find
// headers and libraries of a dependency installed at root. includeDir and
// libDir default to root/include and root/lib; directories that do not exist
// are skipped.
func (e *Env) Use(root, includeDir, libDir string) {
	if includeDir == "" {
		includeDir = filepath.Join(root, "include")
	}
	if libDir == "" {
		libDir = filepath.Join(root, "lib")
	}
	hasInclude := isDir(includeDir)
	hasLib := isDir(libDir)

	for _, pc := range []string{filepath.Join(libDir, "pkgconfig"), filepath.Join(root, "share", "pkgconfig")} {
		if isDir(pc) {
			e.PrependPath("PKG_CONFIG_PATH", pc)
		}
	}
	if isDir(root) {
		e.PrependPath("CMAKE_PREFIX_PATH", root)
	}
	if hasInclude {
		e.PrependPath("CMAKE_INCLUDE_PATH", includeDir)
		e.AppendFlag("CGO_CFLAGS", "-I"+includeDir)
	}
	if hasLib {
		e.PrependPath("CMAKE_LIBRARY_PATH", libDir)
		e.AppendFlag("CGO_LDFLAGS", "-L"+libDir)
	}

	if e.GOOS == "windows" {
		if hasInclude {
			e.PrependPath("INCLUDE", includeDir)
		}
		if hasLib {
			e.PrependPath("LIB", libDir)
		}
		return
	}
	if hasInclude {
		e.AppendFlag("CPPFLAGS", "-I"+includeDir)
	}
	if hasLib {
		e.AppendFlag("LDFLAGS", "-L"+libDir)
	}
}

// Environ returns the environment as sorted "key=value" pairs.
func (e *Env) Environ() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

func (e *Env) listSep() string {
	if e.GOOS == "windows" {
		return ";"
	}
	return ":"
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
