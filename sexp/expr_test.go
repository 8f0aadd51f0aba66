// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package sexp

import "testing"

func TestOneLine(t *testing.T) {
	cases := []struct {
		e    Expr
		want string
	}{
		{Atom("memory_0"), "memory_0"},
		{S1(Atom("check-sat")), "(check-sat)"},
		{S3(Atom("bvadd"), Atom("o0"), Atom("o1")), "(bvadd o0 o1)"},
		{
			S4(Atom("define-const"), Atom("x"), S3(Atom("_"), Atom("BitVec"), Atom("64")), Atom("#x01")),
			"(define-const x (_ BitVec 64) #x01)",
		},
	}
	for _, c := range cases {
		if got := c.e.OneLine(); got != c.want {
			t.Errorf("OneLine() = %q, want %q", got, c.want)
		}
	}
}

func TestPrettyFitsOnOneLine(t *testing.T) {
	e := S3(Atom("bvadd"), Atom("o0"), Atom("o1"))
	if got := e.Pretty(80); got != "(bvadd o0 o1)" {
		t.Errorf("Pretty(80) = %q", got)
	}
}

func TestPrettyWraps(t *testing.T) {
	e := S4(Atom("define-const"), Atom("memory_1"),
		List(Atom("Array"), List(Atom("_"), Atom("BitVec"), Atom("64")), List(Atom("_"), Atom("BitVec"), Atom("8"))),
		Atom("(store memory_0 #x0000000000000005 #x01)"))
	got := e.Pretty(10)
	if len(got) == 0 {
		t.Fatal("expected non-empty output")
	}
	// a width-limited render of a long list must not collapse to one line
	oneLine := e.OneLine()
	if got == oneLine {
		t.Errorf("Pretty(10) collapsed to OneLine() output: %q", got)
	}
}

func TestScriptCloneIndependence(t *testing.T) {
	var base Script
	base.Append(Atom("a"))
	left := base.Clone()
	right := base.Clone()
	left.Append(Atom("left-only"))
	right.Append(Atom("right-only"))
	if left.Text() == right.Text() {
		t.Fatal("clones must diverge independently")
	}
	if base.Len() != 1 {
		t.Fatalf("base script was mutated by clone appends: len=%d", base.Len())
	}
}
