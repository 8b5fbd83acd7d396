// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

type bound struct {
	op    string
	ver   string // canonical semver
	parts int    // numeric components written in the bound
}

// Constraint is a conjunction of version bounds such as ">=9.6 <17".
// The zero Constraint matches every version.
type Constraint struct {
	expr   string
	bounds []bound
}

var ops = []string{">=", "<=", "!=", "==", ">", "<", "="}

// ParseConstraint parses a space separated list of bounds. A bound is an
// operator (>=, >, <=, <, =, ==, !=) followed by a version with one to three
// numeric components; a bare version means "=". Equality bounds with fewer
// than three components match the whole series, so "=9.6" accepts 9.6.24.
// "" and "*" match everything.
func ParseConstraint(expr string) (Constraint, error) {
	c := Constraint{expr: strings.TrimSpace(expr)}
	if c.expr == "" || c.expr == "*" {
		return c, nil
	}
	for _, field := range strings.Fields(c.expr) {
		op := "="
		for _, o := range ops {
			if strings.HasPrefix(field, o) {
				op = o
				break
			}
		}
		raw := strings.TrimPrefix(field, op)
		if op == "==" {
			op = "="
		}
		v := "v" + raw
		if raw == "" || !semver.IsValid(v) || semver.Prerelease(v) != "" || semver.Build(v) != "" {
			return Constraint{}, fmt.Errorf("version: invalid bound %q in constraint %q", field, expr)
		}
		c.bounds = append(c.bounds, bound{op: op, ver: semver.Canonical(v), parts: strings.Count(raw, ".") + 1})
	}
	return c, nil
}

// MustConstraint is like ParseConstraint but panics on error. It is meant for
// built-in tables.
func MustConstraint(expr string) Constraint {
	c, err := ParseConstraint(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// Check reports whether v satisfies every bound of c.
func (c Constraint) Check(v Version) bool {
	sv := v.Semver()
	if sv == "" {
		return false
	}
	for _, b := range c.bounds {
		cmp := semver.Compare(sv, b.ver)
		var ok bool
		switch b.op {
		case ">=":
			ok = cmp >= 0
		case ">":
			ok = cmp > 0
		case "<=":
			ok = cmp <= 0
		case "<":
			ok = cmp < 0
		case "!=":
			ok = !b.matches(sv)
		default:
			ok = b.matches(sv)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (b bound) matches(sv string) bool {
	switch b.parts {
	case 1:
		return semver.Major(sv) == semver.Major(b.ver)
	case 2:
		return semver.MajorMinor(sv) == semver.MajorMinor(b.ver)
	}
	return semver.Compare(sv, b.ver) == 0
}

// String returns the expression c was parsed from.
func (c Constraint) String() string {
	if c.expr == "" {
		return "*"
	}
	return c.expr
}
