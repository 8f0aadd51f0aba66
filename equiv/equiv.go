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

// Package equiv implements the dual-function equivalence driver:
// it walks left and right in lock-step, splitting the work queue
// at every matched conditional branch, and discharges an
// equivalence obligation to an oracle whenever both sides reach a
// return or an opaque call.
package equiv

import (
	"fmt"
	"log"

	"github.com/vericomp/tveq/ir"
	"github.com/vericomp/tveq/oracle"
	"github.com/vericomp/tveq/sexp"
	"github.com/vericomp/tveq/smtlib"
	"github.com/vericomp/tveq/stepper"
	"github.com/vericomp/tveq/symmem"
)

// Config controls the two policy decisions the distilled driver
// left underspecified.
type Config struct {
	// StrictReturnArity routes a return-operand-presence mismatch
	// between left and right to the oracle as a counter-example
	// instead of closing the path silently.
	StrictReturnArity bool
	// HavocAfterCall, when true, replaces the post-call memory
	// snapshot with a fresh uninterpreted constant instead of
	// passing the pre-call snapshot through unchanged.
	HavocAfterCall bool
}

// VerifierState is cloned by value at every branch point. The
// local-address map inside Mem is shared by reference across
// clones: it only ever grows, and new addresses are a deterministic
// function of insertion order, so sharing it is safe and avoids
// redundant allocation on independent branches.
type VerifierState struct {
	Script      sexp.Script
	Mem         *symmem.Model
	Interesting []string
	Goals       []sexp.Expr
}

// Clone returns an independent VerifierState: appends to the
// clone's Script or Goals do not affect the original, and vice
// versa.
func (v VerifierState) Clone() VerifierState {
	goals := make([]sexp.Expr, len(v.Goals))
	copy(goals, v.Goals)
	interesting := make([]string, len(v.Interesting))
	copy(interesting, v.Interesting)
	return VerifierState{
		Script:      v.Script.Clone(),
		Mem:         v.Mem,
		Interesting: interesting,
		Goals:       goals,
	}
}

func (v *VerifierState) markInteresting(name string) {
	v.Interesting = append(v.Interesting, name)
}

// PathState is one element of the driver's FIFO work queue: a
// cloned verifier state paired with both functions' current
// positions and memory snapshots.
type PathState struct {
	State     VerifierState
	LeftPos   stepper.Position
	RightPos  stepper.Position
	LeftSnap  symmem.Snapshot
	RightSnap symmem.Snapshot
}

// Run implements §4.5's initialization and main loop in full: it
// seeds the queue with the two functions' entry blocks sharing
// memory_0, then drains the queue, matching effects pairwise until
// every path has been discharged or the run aborts via a recovered
// panic from the oracle or the stepper.
func Run(container ir.Container, leftName, rightName string, oc oracle.Oracle, cfg Config) error {
	left, ok := container.Lookup(leftName)
	if !ok {
		return fmt.Errorf("equiv: function %q not found in container", leftName)
	}
	right, ok := container.Lookup(rightName)
	if !ok {
		return fmt.Errorf("equiv: function %q not found in container", rightName)
	}

	mem := symmem.NewModel()
	script := &sexp.Script{}
	snap0 := symmem.Init(script)

	state := VerifierState{Script: *script, Mem: mem}
	bindParams(&state, left, snap0)

	queue := []PathState{{
		State:     state,
		LeftPos:   stepper.Position{BB: 0, Instr: 0},
		RightPos:  stepper.Position{BB: 0, Instr: 0},
		LeftSnap:  snap0,
		RightSnap: snap0,
	}}

	steps := 0
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		steps++

		next := step(left, right, path, oc, cfg)
		queue = append(queue, next...)
	}

	log.Printf("equiv: %q vs %q discharged in %d path steps", leftName, rightName, steps)
	return nil
}

// bindParams declares param_<name> for each of left's formal
// parameters as the load of its page from snap0 and marks it
// interesting, per §4.5's initialization step. Both functions are
// required to share the same parameter names and widths, which the
// stepper's shared addressing already assumes.
func bindParams(state *VerifierState, left ir.Function, snap0 symmem.Snapshot) {
	for _, p := range left.Params {
		addr := state.Mem.AddressOf(p.Name)
		value := state.Mem.Load(snap0, addr, p.Type.ByteWidth())
		name := "param_" + p.Name
		state.Script.Append(smtlib.DefineConst(name, smtlib.BitVecSort(p.Type.ByteWidth()*8), value))
		state.markInteresting(name)
	}
}

// step advances one path state by one round of stepper.Step on
// each side and dispatches on the cross-product of the resulting
// effects, returning zero or more successor path states to enqueue.
func step(left, right ir.Function, path PathState, oc oracle.Oracle, cfg Config) []PathState {
	leftSnap, _, leftEffect := stepper.Step(left, path.LeftPos, path.LeftSnap, path.State.Mem, &path.State.Script)
	rightSnap, _, rightEffect := stepper.Step(right, path.RightPos, path.RightSnap, path.State.Mem, &path.State.Script)

	switch {
	case leftEffect.Kind == stepper.EffectReturn && rightEffect.Kind == stepper.EffectReturn:
		return handleReturn(path, leftSnap, rightSnap, leftEffect, rightEffect, oc, cfg)
	case leftEffect.Kind == stepper.EffectCall && rightEffect.Kind == stepper.EffectCall:
		return handleCall(path, leftSnap, rightSnap, leftEffect, rightEffect, oc, cfg)
	case leftEffect.Kind == stepper.EffectCondBr && rightEffect.Kind == stepper.EffectCondBr:
		return handleCondBr(left, right, path, leftSnap, rightSnap, leftEffect, rightEffect)
	default:
		return handleDivergence(path, leftEffect, rightEffect, oc)
	}
}

// handleReturn implements the "both return" case of §4.5.
func handleReturn(path PathState, leftSnap, rightSnap symmem.Snapshot, leftEffect, rightEffect stepper.Effect, oc oracle.Oracle, cfg Config) []PathState {
	state := path.State

	arityMismatch := (leftEffect.ReturnOperand == nil) != (rightEffect.ReturnOperand == nil)
	if arityMismatch {
		if cfg.StrictReturnArity {
			ensureGoal(&state)
			checkOracle(oc, &state, "Return operand presence mismatch")
		}
		return nil
	}
	if leftEffect.ReturnOperand == nil {
		// both sides return void: trivially equivalent.
		return nil
	}

	bits := leftEffect.ReturnOperand.ByteWidth() * 8
	leftVal := resolveOperand(&state, *leftEffect.ReturnOperand, leftSnap)
	rightVal := resolveOperand(&state, *rightEffect.ReturnOperand, rightSnap)

	state.Script.Append(smtlib.DefineConst("return_left", smtlib.BitVecSort(bits), leftVal))
	state.Script.Append(smtlib.DefineConst("return_right", smtlib.BitVecSort(bits), rightVal))
	state.markInteresting("return_left")
	state.markInteresting("return_right")
	state.Goals = append(state.Goals, smtlib.Eq(sexp.Atom("return_left"), sexp.Atom("return_right")))

	checkOracle(oc, &state, "Return with different values")
	return nil
}

// resolveOperand resolves an operand's SMT expression against a
// given snapshot, mirroring the stepper's own operand resolution.
// It is used wherever the driver (rather than the stepper) needs
// an operand's value: return operands, call callees/arguments, and
// branch conditions.
func resolveOperand(state *VerifierState, o ir.Operand, snap symmem.Snapshot) sexp.Expr {
	switch o.Kind {
	case "local", "global":
		addr := state.Mem.AddressOf(o.Name)
		return state.Mem.Load(snap, addr, o.ByteWidth())
	case "const":
		return smtlib.HexLiteral(o.Value, o.ByteWidth())
	default:
		panic(fmt.Sprintf("equiv: unimplemented operand kind %q", o.Kind))
	}
}

// handleCall implements the "both call" case of §4.5: it emits the
// function-or-argument-mismatch obligation (or a pure function-type
// mismatch report) and always continues the path past the call.
func handleCall(path PathState, leftSnap, rightSnap symmem.Snapshot, leftEffect, rightEffect stepper.Effect, oc oracle.Oracle, cfg Config) []PathState {
	state := path.State

	leftCallee := *leftEffect.Call.Callee
	rightCallee := *rightEffect.Call.Callee

	if leftCallee.ByteWidth() != rightCallee.ByteWidth() || len(leftEffect.Call.Args) != len(rightEffect.Call.Args) {
		ensureGoal(&state)
		checkOracle(oc, &state, "Mismatched function call")
	} else {
		leftFn := resolveOperand(&state, leftCallee, leftSnap)
		rightFn := resolveOperand(&state, rightCallee, rightSnap)
		state.Script.Append(smtlib.DefineConst("function_left", smtlib.BitVecSort(64), leftFn))
		state.Script.Append(smtlib.DefineConst("function_right", smtlib.BitVecSort(64), rightFn))
		state.markInteresting("function_left")
		state.markInteresting("function_right")

		equiv := smtlib.Eq(sexp.Atom("function_left"), sexp.Atom("function_right"))
		for i := range leftEffect.Call.Args {
			la := resolveOperand(&state, leftEffect.Call.Args[i], leftSnap)
			ra := resolveOperand(&state, rightEffect.Call.Args[i], rightSnap)
			equiv = smtlib.And(equiv, smtlib.Eq(la, ra))
		}
		state.Goals = append(state.Goals, equiv)
		checkOracle(oc, &state, "Mismatched function or arguments")
	}

	nextLeftSnap, nextRightSnap := leftSnap, rightSnap
	if cfg.HavocAfterCall {
		nextLeftSnap = symmem.Init(&state.Script)
		nextRightSnap = nextLeftSnap
	}

	return []PathState{{
		State:     state,
		LeftPos:   leftEffect.ReturnPos,
		RightPos:  rightEffect.ReturnPos,
		LeftSnap:  nextLeftSnap,
		RightSnap: nextRightSnap,
	}}
}

// handleCondBr implements the "both CondBr" four-way fan-out of
// §4.5: each of the four (direction-left, direction-right)
// combinations gets an independent clone of the verifier state with
// its own pair of path-condition assertions.
func handleCondBr(left, right ir.Function, path PathState, leftSnap, rightSnap symmem.Snapshot, leftEffect, rightEffect stepper.Effect) []PathState {
	state := path.State
	leftVal := resolveOperand(&state, leftEffect.Cond, leftSnap)
	rightVal := resolveOperand(&state, rightEffect.Cond, rightSnap)

	leftTrue, leftFalse := boolAssertion(leftVal, true), boolAssertion(leftVal, false)
	rightTrue, rightFalse := boolAssertion(rightVal, true), boolAssertion(rightVal, false)

	combos := []struct {
		leftAssert  sexp.Expr
		leftDest    string
		rightAssert sexp.Expr
		rightDest   string
	}{
		{leftTrue, leftEffect.TrueDest, rightTrue, rightEffect.TrueDest},
		{leftTrue, leftEffect.TrueDest, rightFalse, rightEffect.FalseDest},
		{leftFalse, leftEffect.FalseDest, rightTrue, rightEffect.TrueDest},
		{leftFalse, leftEffect.FalseDest, rightFalse, rightEffect.FalseDest},
	}

	out := make([]PathState, 0, 4)
	for _, c := range combos {
		branch := path.State.Clone()
		branch.Script.Append(smtlib.Assert(c.leftAssert))
		branch.Script.Append(smtlib.Assert(c.rightAssert))
		out = append(out, PathState{
			State:     branch,
			LeftPos:   stepper.Dest(left, c.leftDest),
			RightPos:  stepper.Dest(right, c.rightDest),
			LeftSnap:  leftSnap,
			RightSnap: rightSnap,
		})
	}
	return out
}

// boolAssertion builds the §4.4 boolean interpretation of an
// already-resolved condition value: true is "not equal to #x00",
// false is "equal to #x00".
func boolAssertion(val sexp.Expr, want bool) sexp.Expr {
	eq := smtlib.Eq(val, smtlib.HexLiteral(0, 1))
	if want {
		return smtlib.Not(eq)
	}
	return eq
}

// handleDivergence implements the "any other mismatch" case of
// §4.5: a structural asymmetry between the two sides' effects is
// itself the counter-example.
func handleDivergence(path PathState, leftEffect, rightEffect stepper.Effect, oc oracle.Oracle) []PathState {
	state := path.State
	label := divergenceLabel(leftEffect, rightEffect)
	ensureGoal(&state)
	checkOracle(oc, &state, label)
	return nil
}

func divergenceLabel(leftEffect, rightEffect stepper.Effect) string {
	if leftEffect.Kind == stepper.EffectCall && rightEffect.Kind != stepper.EffectCall {
		return "Call missed in new"
	}
	if leftEffect.Kind != stepper.EffectCall && rightEffect.Kind == stepper.EffectCall {
		return "Call happened in new"
	}
	return "Structural divergence between left and right"
}

// ensureGoal guarantees state.Goals is non-empty before a call site
// that is itself the counter-example obligation (a structural
// mismatch rather than a value-equality check). oracle.Check treats
// zero goals as "nothing to verify" and skips the query entirely; an
// unconditionally false goal negates to a tautology, so the query
// reduces to whether the accumulated path constraints are reachable
// at all, which is exactly what these call sites need checked.
func ensureGoal(state *VerifierState) {
	if len(state.Goals) == 0 {
		state.Goals = append(state.Goals, smtlib.False())
	}
}

// checkOracle invokes oc.Check and re-panics any error as a fatal
// abort, per the engine's all-or-nothing error model: a genuine
// counter-example from the default Z3Oracle already arrives as a
// panic, while its I/O failures (and any error from another Oracle)
// arrive as a returned error, which this still treats as fatal.
func checkOracle(oc oracle.Oracle, state *VerifierState, label string) {
	if err := oc.Check(&state.Script, state.Goals, state.Interesting, label); err != nil {
		panic(fmt.Sprintf("equiv: %s: %v", label, err))
	}
}
