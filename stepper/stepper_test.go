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

package stepper

import (
	"strings"
	"testing"

	"github.com/vericomp/tveq/ir"
	"github.com/vericomp/tveq/sexp"
	"github.com/vericomp/tveq/symmem"
)

func ptr(o ir.Operand) *ir.Operand { return &o }

func addFunc() ir.Function {
	// f(x, y) { r = add x, y; ret r }
	return ir.Function{
		Name:   "f",
		Params: []ir.Param{{Name: "x", Type: ir.Int(32)}, {Name: "y", Type: ir.Int(32)}},
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Instrs: []ir.Instruction{{
				Op:       "add",
				Dest:     "r",
				Operand0: ptr(ir.Local("x", ir.Int(32))),
				Operand1: ptr(ir.Local("y", ir.Int(32))),
			}},
			Term: ir.Terminator{Kind: "ret", Operand: ptr(ir.Local("r", ir.Int(32)))},
		}},
	}
}

func TestStepAddThenReturn(t *testing.T) {
	fn := addFunc()
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	snap1, pos, effect := Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
	if effect.Kind != EffectReturn {
		t.Fatalf("effect kind = %v, want EffectReturn", effect.Kind)
	}
	if pos.Instr != 1 {
		t.Fatalf("position after terminator = %+v, want Instr == 1", pos)
	}
	if effect.ReturnOperand == nil || effect.ReturnOperand.Name != "r" {
		t.Fatalf("return operand = %+v, want local r", effect.ReturnOperand)
	}
	if snap1.Name() == snap0.Name() {
		t.Fatal("add instruction should have advanced the memory snapshot")
	}

	text := script.Text()
	if !strings.Contains(text, "bvadd") {
		t.Errorf("script missing bvadd, got:\n%s", text)
	}
}

func TestStepStopsAtCallWithoutExecutingIt(t *testing.T) {
	fn := ir.Function{
		Name: "caller",
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Instrs: []ir.Instruction{{
				Op:     "call",
				Dest:   "r",
				Callee: ptr(ir.Global("callee")),
				Args:   []ir.Operand{ir.Local("x", ir.Int(32))},
			}},
			Term: ir.Terminator{Kind: "ret", Operand: ptr(ir.Local("r", ir.Int(32)))},
		}},
	}
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	snap1, pos, effect := Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
	if effect.Kind != EffectCall {
		t.Fatalf("effect kind = %v, want EffectCall", effect.Kind)
	}
	if pos.Instr != 0 {
		t.Fatalf("position should not have advanced past the call, got %+v", pos)
	}
	if effect.ReturnPos != (Position{BB: 0, Instr: 1}) {
		t.Fatalf("ReturnPos = %+v, want {0,1}", effect.ReturnPos)
	}
	if snap1.Name() != snap0.Name() {
		t.Fatal("a call must not be executed, so the snapshot should be unchanged")
	}
	if script.Len() != 1 {
		t.Fatalf("script should contain only the initial declare-const, got %d lines:\n%s", script.Len(), script.Text())
	}
}

func TestStepCondBr(t *testing.T) {
	fn := ir.Function{
		Name: "branchy",
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Term: ir.Terminator{
				Kind:      "condbr",
				Cond:      ptr(ir.Local("c", ir.Int(8))),
				TrueDest:  "t",
				FalseDest: "f",
			},
		}, {
			Name: "t",
			Term: ir.Terminator{Kind: "ret"},
		}, {
			Name: "f",
			Term: ir.Terminator{Kind: "ret"},
		}},
	}
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	_, _, effect := Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
	if effect.Kind != EffectCondBr {
		t.Fatalf("effect kind = %v, want EffectCondBr", effect.Kind)
	}
	if effect.TrueDest != "t" || effect.FalseDest != "f" {
		t.Fatalf("branch destinations = (%q, %q), want (t, f)", effect.TrueDest, effect.FalseDest)
	}

	if got := Dest(fn, "t"); got != (Position{BB: 1, Instr: 0}) {
		t.Errorf("Dest(t) = %+v, want {1,0}", got)
	}
	if got := Dest(fn, "f"); got != (Position{BB: 2, Instr: 0}) {
		t.Errorf("Dest(f) = %+v, want {2,0}", got)
	}
}

func TestStepUnimplementedTerminatorPanics(t *testing.T) {
	fn := ir.Function{
		Name: "weird",
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Term: ir.Terminator{Kind: "switch"},
		}},
	}
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for unsupported terminator")
		}
	}()
	Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
}

func TestIcmpNEEncodedAsNegatedEquality(t *testing.T) {
	fn := ir.Function{
		Name: "cmp",
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Instrs: []ir.Instruction{{
				Op:       "icmp",
				Dest:     "r",
				Pred:     ir.NE,
				Operand0: ptr(ir.Local("x", ir.Int(32))),
				Operand1: ptr(ir.Local("y", ir.Int(32))),
			}},
			Term: ir.Terminator{Kind: "ret", Operand: ptr(ir.Local("r", ir.Int(8)))},
		}},
	}
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
	text := script.Text()
	if !strings.Contains(text, "(not (=") {
		t.Errorf("NE predicate should lower to (not (= ...)), got:\n%s", text)
	}
}

func TestSelectUsesTrueValueByteWidth(t *testing.T) {
	fn := ir.Function{
		Name: "sel",
		Blocks: []ir.BasicBlock{{
			Name: "entry",
			Instrs: []ir.Instruction{{
				Op:         "select",
				Dest:       "r",
				Cond:       ptr(ir.Local("c", ir.Int(8))),
				TrueValue:  ptr(ir.Local("a", ir.Int(64))),
				FalseValue: ptr(ir.Local("b", ir.Int(64))),
			}},
			Term: ir.Terminator{Kind: "ret", Operand: ptr(ir.Local("r", ir.Int(64)))},
		}},
	}
	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	Step(fn, Position{BB: 0, Instr: 0}, snap0, mem, script)
	text := script.Text()
	if !strings.Contains(text, "ite") {
		t.Errorf("select should lower to an ite expression, got:\n%s", text)
	}
	// the 8-byte true value (not the 1-byte condition) sets the store width.
	if !strings.Contains(text, "((_ extract 63 56) val)") {
		t.Errorf("select result should be stored as 8 bytes, got:\n%s", text)
	}
}
