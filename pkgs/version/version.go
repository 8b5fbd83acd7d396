// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version parses the versions embedded in vendor archive names and
// orders them semantically.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goplus/srcbuild/pkgs/gnu"
	"golang.org/x/mod/semver"
)

// Extensions lists the archive suffixes recognised by ParseArchive, longest first.
var Extensions = []string{
	".tar.gz", ".tar.xz", ".tar.bz2", ".tar.zst",
	".tgz", ".txz", ".tbz2", ".tar", ".zip",
}

var (
	versionRe = regexp.MustCompile(`^(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)(?:\.(0|[1-9][0-9]*))?$`)
	archiveRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9_+]*(?:-[A-Za-z][A-Za-z0-9_+]*)*)-([0-9][0-9.]*)$`)
)

// Version is a dotted numeric version of the form X.Y or X.Y.Z.
type Version struct {
	Raw   string // exactly as it appears in the archive name
	Major int
}

// ParseError reports a string that does not carry a usable version.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("version: cannot parse %q: want <pkg>-X.Y[.Z]<ext>", e.Input)
}

// Parse parses raw as X.Y or X.Y.Z. Leading zeros are rejected.
func Parse(raw string) (Version, error) {
	m := versionRe.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, &ParseError{Input: raw}
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return Version{}, &ParseError{Input: raw}
	}
	return Version{Raw: raw, Major: major}, nil
}

// IsArchive reports whether name ends with one of Extensions.
func IsArchive(name string) bool {
	_, ok := trimExt(name)
	return ok
}

// ParseArchive splits an archive file name such as "postgresql-16.2.tar.bz2"
// into its package name and version.
func ParseArchive(name string) (pkg string, v Version, err error) {
	stem, ok := trimExt(name)
	if !ok {
		return "", Version{}, &ParseError{Input: name}
	}
	m := archiveRe.FindStringSubmatch(stem)
	if m == nil {
		return "", Version{}, &ParseError{Input: name}
	}
	v, err = Parse(m[2])
	if err != nil {
		return "", Version{}, &ParseError{Input: name}
	}
	return m[1], v, nil
}

func trimExt(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, ext := range Extensions {
		if strings.HasSuffix(lower, ext) && len(name) > len(ext) {
			return name[:len(name)-len(ext)], true
		}
	}
	return name, false
}

// String returns the raw version.
func (v Version) String() string { return v.Raw }

// Semver returns v in the "vX.Y.Z" form understood by golang.org/x/mod/semver.
func (v Version) Semver() string {
	return semver.Canonical("v" + v.Raw)
}

// IsZero reports whether v was never parsed.
func (v Version) IsZero() bool { return v.Raw == "" }

// Compare orders two versions semantically. Versions that are semantically
// equal ("1.2" and "1.2.0") are ordered by GNU version comparison of their
// raw strings so the result is total.
func Compare(a, b Version) int {
	if c := semver.Compare(a.Semver(), b.Semver()); c != 0 {
		return c
	}
	switch c := gnu.Compare(a.Raw, b.Raw); {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}
