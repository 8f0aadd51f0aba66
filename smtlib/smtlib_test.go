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

package smtlib

import (
	"testing"

	"github.com/vericomp/tveq/sexp"
)

func TestHexLiteral(t *testing.T) {
	cases := []struct {
		v    uint64
		w    int
		want string
	}{
		{0, 1, "#x00"},
		{1, 1, "#x01"},
		{0xff, 1, "#xff"},
		{0x2a, 4, "#x0000002a"},
		{0xdeadbeef, 8, "#x00000000deadbeef"},
	}
	for _, c := range cases {
		if got := HexLiteral(c.v, c.w).OneLine(); got != c.want {
			t.Errorf("HexLiteral(%#x, %d) = %q, want %q", c.v, c.w, got, c.want)
		}
	}
}

func TestBitsToBytes(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 7: 1, 8: 1, 9: 2, 32: 4, 64: 8}
	for bits, want := range cases {
		if got := BitsToBytes(bits); got != want {
			t.Errorf("BitsToBytes(%d) = %d, want %d", bits, got, want)
		}
	}
}

func TestMemorySort(t *testing.T) {
	want := "(Array (_ BitVec 64) (_ BitVec 8))"
	if got := MemorySort().OneLine(); got != want {
		t.Errorf("MemorySort() = %q, want %q", got, want)
	}
}

func TestExtract(t *testing.T) {
	want := "((_ extract 15 8) val)"
	got := Extract(15, 8, sexp.Atom("val")).OneLine()
	if got != want {
		t.Errorf("Extract(15, 8, val) = %q, want %q", got, want)
	}
}
