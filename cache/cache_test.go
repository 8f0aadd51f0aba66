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

package cache

import (
	"path/filepath"
	"testing"

	"github.com/vericomp/tveq/ir"
)

func p(o ir.Operand) *ir.Operand { return &o }

func fn(name string) ir.Function {
	return ir.Function{
		Name:   name,
		Params: []ir.Param{{Name: "x", Type: ir.Int(32)}},
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Term: ir.Terminator{Kind: "ret", Operand: p(ir.Local("x", ir.Int(32)))},
		}},
	}
}

func TestKeyIsStableAcrossCalls(t *testing.T) {
	left, right := fn("left"), fn("right")
	k1, err := Key(left, right, false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	k2, err := Key(left, right, false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 != k2 {
		t.Fatalf("Key is unstable: %q != %q", k1, k2)
	}
}

func TestKeyDependsOnPolicyFlags(t *testing.T) {
	left, right := fn("left"), fn("right")
	lenient, err := Key(left, right, false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	strict, err := Key(left, right, true, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if lenient == strict {
		t.Fatal("Key did not change when strictReturnArity changed")
	}
}

func TestKeyDependsOnFunctionBody(t *testing.T) {
	left := fn("left")
	right := fn("right")
	k1, err := Key(left, right, false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	right.Params[0].Name = "y"
	right.Blocks[0].Term.Operand = p(ir.Local("y", ir.Int(32)))
	k2, err := Key(left, right, false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if k1 == k2 {
		t.Fatal("Key did not change when a function body changed")
	}
}

func TestStoreLoadRoundTrip(t *testing.T) {
	c := Cache{Dir: t.TempDir()}
	key, err := Key(fn("left"), fn("right"), false, false)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}

	if c.Has(key) {
		t.Fatal("Has reported a hit before Store")
	}

	script := []byte("(set-logic QF_ABV)\n(check-sat)\n")
	if err := c.Store(key, script); err != nil {
		t.Fatalf("Store: %v", err)
	}

	if !c.Has(key) {
		t.Fatal("Has reported a miss after Store")
	}

	got, err := c.Load(key)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(script) {
		t.Fatalf("Load = %q, want %q", got, script)
	}
}

func TestLoadMissReturnsErrMiss(t *testing.T) {
	c := Cache{Dir: t.TempDir()}
	if _, err := c.Load("does-not-exist"); err != ErrMiss {
		t.Fatalf("Load = %v, want ErrMiss", err)
	}
}

func TestStoreCreatesDir(t *testing.T) {
	c := Cache{Dir: filepath.Join(t.TempDir(), "nested", "cache")}
	if err := c.Store("k", []byte("data")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !c.Has("k") {
		t.Fatal("Has reported a miss after Store into a freshly created directory")
	}
}
