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

// Package smtlib provides thin constructors for the specific
// SMT-LIB 2 (QF_ABV) forms the verifier emits: constant
// declarations/definitions, if-then-else, bit-vector sorts and
// hex literals, and the byte-addressed memory array sort.
package smtlib

import (
	"fmt"

	"github.com/vericomp/tveq/sexp"
)

// DeclareConst emits (declare-const name sort).
func DeclareConst(name string, sort sexp.Expr) sexp.Expr {
	return sexp.S3(sexp.Atom("declare-const"), sexp.Atom(name), sort)
}

// DefineConst emits (define-const name sort value).
func DefineConst(name string, sort, value sexp.Expr) sexp.Expr {
	return sexp.S4(sexp.Atom("define-const"), sexp.Atom(name), sort, value)
}

// Ite emits (ite cond trueValue falseValue).
func Ite(cond, trueValue, falseValue sexp.Expr) sexp.Expr {
	return sexp.S4(sexp.Atom("ite"), cond, trueValue, falseValue)
}

// BitVecSort emits (_ BitVec bits).
func BitVecSort(bits int) sexp.Expr {
	return sexp.S3(sexp.Atom("_"), sexp.Atom("BitVec"), sexp.Atom(fmt.Sprintf("%d", bits)))
}

// MemorySort emits (Array (_ BitVec 64) (_ BitVec 8)), the sort
// of every memory snapshot.
func MemorySort() sexp.Expr {
	return sexp.S3(sexp.Atom("Array"), BitVecSort(64), BitVecSort(8))
}

// HexLiteral renders v as a #x-prefixed hex bit-vector literal
// occupying exactly byteWidth bytes (2*byteWidth hex digits,
// zero-padded on the left).
func HexLiteral(v uint64, byteWidth int) sexp.Expr {
	return sexp.Atom(fmt.Sprintf("#x%0*x", byteWidth*2, v))
}

// BitsToBytes converts a bit count to the number of bytes
// required to hold it, rounding up.
func BitsToBytes(bits int) int {
	return (bits + 7) / 8
}

// Extract emits ((_ extract hi lo) value), selecting bits
// [lo, hi] (inclusive) of value.
func Extract(hi, lo int, value sexp.Expr) sexp.Expr {
	selector := sexp.List(
		sexp.Atom("_"),
		sexp.Atom("extract"),
		sexp.Atom(fmt.Sprintf("%d", hi)),
		sexp.Atom(fmt.Sprintf("%d", lo)),
	)
	return sexp.S2(selector, value)
}

// Select emits (select array index).
func Select(array, index sexp.Expr) sexp.Expr {
	return sexp.S3(sexp.Atom("select"), array, index)
}

// Store emits (store array index value).
func Store(array, index, value sexp.Expr) sexp.Expr {
	return sexp.List(sexp.Atom("store"), array, index, value)
}

// Concat emits (concat args...), args given most-significant-first.
func Concat(args ...sexp.Expr) sexp.Expr {
	return sexp.List(append([]sexp.Expr{sexp.Atom("concat")}, args...)...)
}

// Let emits (let ((name binding)) body).
func Let(name string, binding, body sexp.Expr) sexp.Expr {
	bindings := sexp.S1(sexp.S2(sexp.Atom(name), binding))
	return sexp.S3(sexp.Atom("let"), bindings, body)
}

// Eq emits (= a b).
func Eq(a, b sexp.Expr) sexp.Expr {
	return sexp.S3(sexp.Atom("="), a, b)
}

// Not emits (not a).
func Not(a sexp.Expr) sexp.Expr {
	return sexp.S2(sexp.Atom("not"), a)
}

// False emits the boolean literal false.
func False() sexp.Expr {
	return sexp.Atom("false")
}

// And emits (and args...).
func And(args ...sexp.Expr) sexp.Expr {
	return sexp.List(append([]sexp.Expr{sexp.Atom("and")}, args...)...)
}

// Assert emits (assert e).
func Assert(e sexp.Expr) sexp.Expr {
	return sexp.S2(sexp.Atom("assert"), e)
}

// CheckSat emits (check-sat).
func CheckSat() sexp.Expr { return sexp.S1(sexp.Atom("check-sat")) }

// GetModel emits (get-model).
func GetModel() sexp.Expr { return sexp.S1(sexp.Atom("get-model")) }

// Simplify emits (simplify name).
func Simplify(name string) sexp.Expr {
	return sexp.S2(sexp.Atom("simplify"), sexp.Atom(name))
}

// Echo emits (echo "msg").
func Echo(msg string) sexp.Expr {
	return sexp.S2(sexp.Atom("echo"), sexp.Atom(fmt.Sprintf("%q", msg)))
}

// PredicateOp maps an IR integer-comparison predicate name
// (as defined by the ir package) to its SMT-LIB operator.
// NE is deliberately absent from this table; callers encode
// NE as Not(Eq(o0, o1)) rather than a single operator, since
// SMT-LIB has no native "not-equal" bit-vector relation.
var PredicateOp = map[string]string{
	"EQ":  "=",
	"UGT": "bvugt",
	"UGE": "bvuge",
	"ULT": "bvult",
	"ULE": "bvule",
	"SGT": "bvsgt",
	"SGE": "bvsge",
	"SLT": "bvslt",
	"SLE": "bvsle",
}
