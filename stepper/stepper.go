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

// Package stepper symbolically executes one basic block of one
// function at a time, stopping whenever it reaches an effect a
// caller can observe: a return, a conditional branch, or an
// opaque call.
package stepper

import (
	"fmt"

	"github.com/vericomp/tveq/ir"
	"github.com/vericomp/tveq/sexp"
	"github.com/vericomp/tveq/smtlib"
	"github.com/vericomp/tveq/symmem"
)

// Position identifies a point within a function: the index of the
// current basic block and the index of the next instruction to
// execute within it. Instr == len(block.Instrs) means "at the
// terminator".
type Position struct {
	BB    int
	Instr int
}

// EffectKind distinguishes the three reasons Step can return.
type EffectKind int

const (
	EffectReturn EffectKind = iota
	EffectCondBr
	EffectCall
)

// Effect describes what execution reached. Exactly the fields
// relevant to Kind are populated.
type Effect struct {
	Kind EffectKind

	// Return
	ReturnOperand *ir.Operand // nil for "ret void"

	// CondBr
	Cond      ir.Operand
	TrueDest  string
	FalseDest string

	// Call
	Call      ir.Instruction
	ReturnPos Position
}

// Step runs fn starting at pos against snap, executing
// instructions in order until it reaches a call or a terminator.
// Every non-call instruction's result is computed symbolically and
// stored into its destination local's page via mem/script; the
// returned snapshot reflects all of those stores.
func Step(fn ir.Function, pos Position, snap symmem.Snapshot, mem *symmem.Model, script *sexp.Script) (symmem.Snapshot, Position, Effect) {
	bb, ok := blockAt(fn, pos.BB)
	if !ok {
		panic(fmt.Sprintf("stepper: position %+v names a nonexistent block in %q", pos, fn.Name))
	}

	for pos.Instr < len(bb.Instrs) {
		instr := bb.Instrs[pos.Instr]
		if instr.Op == "call" {
			return snap, pos, Effect{
				Kind:      EffectCall,
				Call:      instr,
				ReturnPos: Position{BB: pos.BB, Instr: pos.Instr + 1},
			}
		}
		snap = execute(instr, snap, mem, script)
		pos.Instr++
	}

	switch bb.Term.Kind {
	case "ret":
		return snap, pos, Effect{Kind: EffectReturn, ReturnOperand: bb.Term.Operand}
	case "condbr":
		return snap, pos, Effect{
			Kind:      EffectCondBr,
			Cond:      *bb.Term.Cond,
			TrueDest:  bb.Term.TrueDest,
			FalseDest: bb.Term.FalseDest,
		}
	default:
		panic(fmt.Sprintf("stepper: unimplemented terminator %q in %q", bb.Term.Kind, fn.Name))
	}
}

// Dest resolves the block that a CondBr effect's true/false
// destination names, returning the Position of its first
// instruction.
func Dest(fn ir.Function, blockName string) Position {
	for i, bb := range fn.Blocks {
		if bb.Name == blockName {
			return Position{BB: i, Instr: 0}
		}
	}
	panic(fmt.Sprintf("stepper: branch target %q does not exist in %q", blockName, fn.Name))
}

func blockAt(fn ir.Function, i int) (ir.BasicBlock, bool) {
	if i < 0 || i >= len(fn.Blocks) {
		return ir.BasicBlock{}, false
	}
	return fn.Blocks[i], true
}

// execute computes one non-call, non-terminator instruction's
// result and stores it into its destination local's page,
// returning the resulting snapshot.
func execute(instr ir.Instruction, snap symmem.Snapshot, mem *symmem.Model, script *sexp.Script) symmem.Snapshot {
	var value sexp.Expr
	var byteWidth int

	switch instr.Op {
	case "add":
		o0, o1 := operandExpr(*instr.Operand0, snap, mem), operandExpr(*instr.Operand1, snap, mem)
		value = sexp.S3(sexp.Atom("bvadd"), o0, o1)
		byteWidth = instr.Operand0.ByteWidth()
	case "sub":
		o0, o1 := operandExpr(*instr.Operand0, snap, mem), operandExpr(*instr.Operand1, snap, mem)
		value = sexp.S3(sexp.Atom("bvsub"), o0, o1)
		byteWidth = instr.Operand0.ByteWidth()
	case "and":
		o0, o1 := operandExpr(*instr.Operand0, snap, mem), operandExpr(*instr.Operand1, snap, mem)
		value = sexp.S3(sexp.Atom("bvand"), o0, o1)
		byteWidth = instr.Operand0.ByteWidth()
	case "icmp":
		o0, o1 := operandExpr(*instr.Operand0, snap, mem), operandExpr(*instr.Operand1, snap, mem)
		value = icmpExpr(instr.Pred, o0, o1)
		byteWidth = 1
	case "select":
		cond := operandExpr(*instr.Cond, snap, mem)
		trueVal := operandExpr(*instr.TrueValue, snap, mem)
		falseVal := operandExpr(*instr.FalseValue, snap, mem)
		isFalse := smtlib.Eq(cond, smtlib.HexLiteral(0, 1))
		value = smtlib.Ite(isFalse, falseVal, trueVal)
		byteWidth = instr.TrueValue.ByteWidth()
	default:
		panic(fmt.Sprintf("stepper: unimplemented instruction %q", instr.Op))
	}

	addr := mem.AddressOf(instr.Dest)
	return mem.Store(script, snap, addr, value, byteWidth)
}

// icmpExpr builds the (ite (<pred-op> o0 o1) #x01 #x00) expression
// for an icmp instruction. NE has no direct SMT-LIB relation, so it
// is encoded as the negation of equality.
func icmpExpr(pred ir.Predicate, o0, o1 sexp.Expr) sexp.Expr {
	var cmp sexp.Expr
	if pred == ir.NE {
		cmp = smtlib.Not(smtlib.Eq(o0, o1))
	} else {
		op, ok := smtlib.PredicateOp[string(pred)]
		if !ok {
			panic(fmt.Sprintf("stepper: unimplemented icmp predicate %q", pred))
		}
		cmp = sexp.S3(sexp.Atom(op), o0, o1)
	}
	return smtlib.Ite(cmp, smtlib.HexLiteral(1, 1), smtlib.HexLiteral(0, 1))
}

// operandExpr resolves an operand's SMT expression: a load from
// its page for a local or global, or an inline hex literal for a
// constant.
func operandExpr(o ir.Operand, snap symmem.Snapshot, mem *symmem.Model) sexp.Expr {
	switch o.Kind {
	case "local", "global":
		addr := mem.AddressOf(o.Name)
		return mem.Load(snap, addr, o.ByteWidth())
	case "const":
		return smtlib.HexLiteral(o.Value, o.ByteWidth())
	default:
		panic(fmt.Sprintf("stepper: unimplemented operand kind %q", o.Kind))
	}
}
