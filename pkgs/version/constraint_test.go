// Copyright 2024 The srcbuild Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package version

import "testing"

func TestConstraintCheck(t *testing.T) {
	tests := []struct {
		expr string
		ver  string
		want bool
	}{
		{"", "1.0", true},
		{"*", "99.1", true},
		{">=16", "16.0", true},
		{">=16", "15.9.9", false},
		{"<17", "16.4", true},
		{"<17", "17.0", false},
		{">=9.6 <17", "12.1", true},
		{">=9.6 <17", "9.5.25", false},
		{">16", "16.0", false},
		{">16", "16.0.1", true},
		{"<=8.0", "8.0", true},
		{"<=8.0", "8.0.1", false},
		{"=9.6", "9.6.24", true},
		{"9.6", "9.6.0", true},
		{"==9.6", "9.7", false},
		{"=8", "8.4.2", true},
		{"=1.2.3", "1.2.4", false},
		{"!=8", "8.0.36", false},
		{"!=8", "5.7.44", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr+"_"+tt.ver, func(t *testing.T) {
			c, err := ParseConstraint(tt.expr)
			if err != nil {
				t.Fatalf("ParseConstraint(%q): %v", tt.expr, err)
			}
			v, err := Parse(tt.ver)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.ver, err)
			}
			if got := c.Check(v); got != tt.want {
				t.Errorf("%q.Check(%s) = %v, want %v", tt.expr, tt.ver, got, tt.want)
			}
		})
	}
}

func TestParseConstraintInvalid(t *testing.T) {
	for _, expr := range []string{">=", "<abc", ">=1.2.3.4", "~1.0", ">=1.0-rc1", ">=016"} {
		if _, err := ParseConstraint(expr); err == nil {
			t.Errorf("ParseConstraint(%q) succeeded, want error", expr)
		}
	}
}

func TestConstraintString(t *testing.T) {
	if got := (Constraint{}).String(); got != "*" {
		t.Errorf("zero String() = %q, want %q", got, "*")
	}
	c := MustConstraint(" >=16  <17 ")
	if got := c.String(); got != ">=16  <17" {
		t.Errorf("String() = %q", got)
	}
}

func TestMustConstraintPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustConstraint did not panic on invalid input")
		}
	}()
	MustConstraint(">=x")
}

func TestCheckZeroVersion(t *testing.T) {
	if MustConstraint("*").Check(Version{}) {
		t.Error("zero Version must not satisfy any constraint")
	}
}
