// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package locate probes well-known install locations for optional native
// libraries such as OpenSSL, ICU and ncurses.
package locate

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/goplus/srcbuild/pkgs/toolchain"
)

// Spec describes where a dependency may live. Candidate lists are data, so a
// new install layout is a new entry, not new code.
type Spec struct {
	Name string `yaml:"name"`
	// PrefixCommands are tool-manager queries (e.g. "brew --prefix openssl@3")
	// whose last output line is a candidate root. They are tried before Roots.
	PrefixCommands [][]string `yaml:"prefix_commands,omitempty"`
	// Roots are candidate install prefixes. $VAR, ${VAR} and a leading ~ are
	// expanded; a root that references an unset variable is skipped.
	Roots []string `yaml:"roots,omitempty"`
	// LibDirs are library subdirectories tried under each root, in order.
	// Defaults to "lib".
	LibDirs []string `yaml:"lib_dirs,omitempty"`
	// IncludeDirs are header subdirectories; the first existing one is
	// reported. Defaults to "include".
	IncludeDirs []string `yaml:"include_dirs,omitempty"`
	// Markers are file names (or globs such as "icuuc*.lib") inside a lib
	// dir; any match proves the dependency is present there.
	Markers []string `yaml:"markers,omitempty"`
	// Relocate lists copies needed by build systems that hardcode a layout.
	Relocate []Relocation `yaml:"relocate,omitempty"`
}

// Resolved is a dependency found on disk. A nil *Resolved means absent.
type Resolved struct {
	Name       string
	Root       string
	LibDir     string
	IncludeDir string
	Marker     string // the matched marker file
	Relocate   []Relocation
}

// Locator runs probes. The zero value is ready to use.
type Locator struct {
	// Runner executes prefix commands. Defaults to toolchain.ExecRunner.
	Runner toolchain.Runner
	// LookupEnv resolves variables in roots. Defaults to os.LookupEnv.
	LookupEnv func(key string) (string, bool)
	// HomeDir replaces a leading ~. Defaults to os.UserHomeDir.
	HomeDir string
}

// Locate returns the first candidate root whose lib dir holds a marker, or
// nil. Absence is never an error.
func (l *Locator) Locate(ctx context.Context, spec Spec) *Resolved {
	log := zap.S().With("dep", spec.Name)
	for _, root := range l.roots(ctx, spec) {
		for _, sub := range orDefault(spec.LibDirs, "lib") {
			libDir := joinRoot(root, sub)
			marker, ok := findMarker(libDir, spec.Markers)
			if !ok {
				log.Debugw("probe miss", "dir", libDir)
				continue
			}
			res := &Resolved{
				Name:     spec.Name,
				Root:     root,
				LibDir:   libDir,
				Marker:   marker,
				Relocate: spec.Relocate,
			}
			for _, inc := range orDefault(spec.IncludeDirs, "include") {
				if dir := joinRoot(root, inc); isDir(dir) {
					res.IncludeDir = dir
					break
				}
			}
			log.Debugw("probe hit", "root", root, "lib", libDir, "marker", marker)
			return res
		}
	}
	log.Debugw("not found")
	return nil
}

// LocateAll probes every spec. Absent dependencies map to nil.
func (l *Locator) LocateAll(ctx context.Context, specs []Spec) map[string]*Resolved {
	found := make(map[string]*Resolved, len(specs))
	for _, spec := range specs {
		found[spec.Name] = l.Locate(ctx, spec)
	}
	return found
}

func (l *Locator) roots(ctx context.Context, spec Spec) []string {
	var roots []string
	seen := make(map[string]bool)
	add := func(root string) {
		root = filepath.Clean(root)
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	for _, argv := range spec.PrefixCommands {
		if root := l.queryPrefix(ctx, argv); root != "" {
			add(root)
		}
	}
	for _, raw := range spec.Roots {
		if root, ok := l.expand(raw); ok {
			add(root)
		}
	}
	return roots
}

func (l *Locator) queryPrefix(ctx context.Context, argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	r := l.Runner
	if r == nil {
		r = toolchain.ExecRunner{}
	}
	var out bytes.Buffer
	if err := r.Run(ctx, &toolchain.Cmd{Name: argv[0], Args: argv[1:], Stdout: &out}); err != nil {
		zap.S().Debugw("prefix query failed", "cmd", strings.Join(argv, " "), "err", err)
		return ""
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	root := strings.TrimSpace(lines[len(lines)-1])
	if !isDir(root) {
		return ""
	}
	return root
}

// expand resolves variables and ~ in root. It reports false when root uses a
// variable that is unset or empty.
func (l *Locator) expand(root string) (string, bool) {
	lookup := l.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	ok := true
	root = os.Expand(root, func(key string) string {
		v, found := lookup(key)
		if !found || v == "" {
			ok = false
		}
		return v
	})
	if !ok || root == "" {
		return "", false
	}
	if root == "~" || strings.HasPrefix(root, "~/") || strings.HasPrefix(root, `~\`) {
		home := l.HomeDir
		if home == "" {
			var err error
			if home, err = os.UserHomeDir(); err != nil {
				return "", false
			}
		}
		root = filepath.Join(home, root[1:])
	}
	return root, true
}

func findMarker(dir string, markers []string) (string, bool) {
	if !isDir(dir) {
		return "", false
	}
	if len(markers) == 0 {
		return dir, true
	}
	for _, m := range markers {
		if strings.ContainsAny(m, "*?[") {
			matches, _ := filepath.Glob(filepath.Join(dir, m))
			if len(matches) > 0 {
				return matches[0], true
			}
			continue
		}
		p := filepath.Join(dir, m)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func joinRoot(root, sub string) string {
	if filepath.IsAbs(sub) {
		return sub
	}
	return filepath.Join(root, filepath.FromSlash(sub))
}

func orDefault(list []string, def string) []string {
	if len(list) == 0 {
		return []string{def}
	}
	return list
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
