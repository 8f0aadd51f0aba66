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

package ir

import (
	"path/filepath"
	"testing"
)

func e1() Container {
	// left(x, y) { ret x + y }
	// right(x, y) { ret y + x }
	left := Function{
		Name:   "left",
		Params: []Param{{Name: "x", Type: Int(32)}, {Name: "y", Type: Int(32)}},
		Blocks: []BasicBlock{{
			Name: "entry",
			Instrs: []Instruction{{
				Op:       "add",
				Dest:     "r",
				Operand0: ptr(Local("x", Int(32))),
				Operand1: ptr(Local("y", Int(32))),
			}},
			Term: Terminator{Kind: "ret", Operand: ptr(Local("r", Int(32)))},
		}},
	}
	right := Function{
		Name:   "right",
		Params: []Param{{Name: "x", Type: Int(32)}, {Name: "y", Type: Int(32)}},
		Blocks: []BasicBlock{{
			Name: "entry",
			Instrs: []Instruction{{
				Op:       "add",
				Dest:     "r",
				Operand0: ptr(Local("y", Int(32))),
				Operand1: ptr(Local("x", Int(32))),
			}},
			Term: Terminator{Kind: "ret", Operand: ptr(Local("r", Int(32)))},
		}},
	}
	return Container{Functions: []Function{left, right}}
}

func ptr(o Operand) *Operand { return &o }

func TestByteWidth(t *testing.T) {
	cases := []struct {
		t    Type
		want int
	}{
		{Void, 0},
		{Int(1), 1},
		{Int(7), 1},
		{Int(8), 1},
		{Int(9), 2},
		{Int(32), 4},
		{Int(64), 8},
		{Func, 8},
	}
	for _, c := range cases {
		if got := c.t.ByteWidth(); got != c.want {
			t.Errorf("Type%+v.ByteWidth() = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestByteWidthUnsupportedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported type")
		}
	}()
	Type{Kind: "vector"}.ByteWidth()
}

func TestContainerLookup(t *testing.T) {
	c := e1()
	if _, ok := c.Lookup("left"); !ok {
		t.Fatal("expected to find left")
	}
	if _, ok := c.Lookup("right"); !ok {
		t.Fatal("expected to find right")
	}
	if _, ok := c.Lookup("middle"); ok {
		t.Fatal("did not expect to find middle")
	}
}

func TestFunctionBlock(t *testing.T) {
	left, _ := e1().Lookup("left")
	if _, ok := left.Block("entry"); !ok {
		t.Fatal("expected entry block")
	}
	if _, ok := left.Block("nope"); ok {
		t.Fatal("did not expect nope block")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := e1()
	path := filepath.Join(t.TempDir(), "container.ion")
	if err := Save(path, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Functions) != len(c.Functions) {
		t.Fatalf("round trip changed function count: got %d want %d", len(got.Functions), len(c.Functions))
	}
	left, ok := got.Lookup("left")
	if !ok {
		t.Fatal("round trip lost function 'left'")
	}
	if len(left.Blocks) != 1 || len(left.Blocks[0].Instrs) != 1 {
		t.Fatalf("round trip changed block/instruction shape: %+v", left)
	}
	if left.Blocks[0].Instrs[0].Op != "add" {
		t.Fatalf("round trip changed instruction op: %+v", left.Blocks[0].Instrs[0])
	}
}
