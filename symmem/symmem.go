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

// Package symmem implements the symbolic memory model: a single
// versioned SMT array from 64-bit addresses to 8-bit values, plus
// the local-name-to-address allocator that assigns each IR local
// a disjoint page within that array.
package symmem

import (
	"fmt"

	"github.com/vericomp/tveq/ints"
	"github.com/vericomp/tveq/sexp"
	"github.com/vericomp/tveq/smtlib"
)

// Stride is the size, in bytes, of the address range reserved for
// each local name. It must be at least 2^32 so that no value
// written at any local's page (at most 8 bytes, per the supported
// fragment's widest type) can ever overflow into a neighboring
// page. 2^32 leaves an enormous, deliberately wasteful margin;
// the addresses are never materialized outside of the SMT script,
// so there is no real memory behind them.
const Stride uint64 = 1 << 32

// pageOffset shifts page 0 a few slots up so that address 0 itself
// is never the base of any local's storage. This is purely
// cosmetic: any nonzero offset would do just as well.
const pageOffset = 5

// Snapshot identifies one version of memory: an SMT constant named
// "memory_<index>". Snapshot 0 is the uninterpreted initial memory;
// snapshot N for N >= 1 is defined in terms of snapshot N-1.
type Snapshot struct {
	index int
}

// Name returns the SMT identifier for the snapshot, e.g. "memory_3".
func (s Snapshot) Name() string {
	return fmt.Sprintf("memory_%d", s.index)
}

// Expr returns s as an Expr suitable for use as an SMT operand.
func (s Snapshot) Expr() sexp.Expr { return sexp.Atom(s.Name()) }

// Model owns the local-name-to-address allocation and the
// memory-generation counter for one VerifierState. Two clones of a
// VerifierState share the same *Model by design (see package equiv):
// the address map only ever grows by appending new names, and new
// addresses are a deterministic function of insertion order, so
// sharing it across clones is safe and avoids re-deriving the same
// addresses independently on every branch.
type Model struct {
	addresses map[string]uint64
	gen       int
}

// NewModel returns a Model with generation 0 unallocated; callers
// should call Init to declare memory_0 before using Store/Load.
func NewModel() *Model {
	return &Model{addresses: make(map[string]uint64)}
}

// Init declares the initial, uninterpreted memory snapshot
// (memory_0) on script and returns it.
func Init(script *sexp.Script) Snapshot {
	s := Snapshot{index: 0}
	script.Append(smtlib.DeclareConst(s.Name(), smtlib.MemorySort()))
	return s
}

// AddressOf returns the base address of name's page, allocating a
// new page on first use. The allocation stride guarantees that any
// two distinct names occupy disjoint byte ranges regardless of how
// many bytes either value occupies (up to 8, the widest supported
// operand).
func (m *Model) AddressOf(name string) uint64 {
	if addr, ok := m.addresses[name]; ok {
		return addr
	}
	addr := (uint64(len(m.addresses)) + pageOffset) * Stride
	if !ints.IsAligned64(addr, Stride) {
		panic("symmem: computed address is not page-aligned")
	}
	m.addresses[name] = addr
	return addr
}

// next allocates and returns the next memory generation.
func (m *Model) next() Snapshot {
	m.gen++
	return Snapshot{index: m.gen}
}

// Store emits the SMT binding for writing value (of the given byte
// width) to addr in snap, producing a new snapshot. Bytes are laid
// out little-endian: byte i of value occupies address addr+i.
//
// The result is wrapped in a let-binding named "val" so that, if
// value's SMT expression is large, it is not duplicated once per
// byte of the store.
func (m *Model) Store(script *sexp.Script, snap Snapshot, addr uint64, value sexp.Expr, byteWidth int) Snapshot {
	next := m.next()
	stored := snap.Expr()
	for i := 0; i < byteWidth; i++ {
		hi := 8*i + 7
		lo := 8 * i
		byteVal := smtlib.Extract(hi, lo, sexp.Atom("val"))
		addrLit := smtlib.HexLiteral(addr+uint64(i), 8)
		stored = smtlib.Store(stored, addrLit, byteVal)
	}
	binding := smtlib.Let("val", value, stored)
	script.Append(smtlib.DefineConst(next.Name(), smtlib.MemorySort(), binding))
	return next
}

// Load returns the SMT expression reading byteWidth bytes from addr
// in snap, little-endian: for byteWidth == 1 this is a single
// select; for byteWidth > 1 it is a concat of the individual
// selected bytes, most-significant (highest address) first.
func (m *Model) Load(snap Snapshot, addr uint64, byteWidth int) sexp.Expr {
	if byteWidth == 1 {
		return smtlib.Select(snap.Expr(), smtlib.HexLiteral(addr, 8))
	}
	parts := make([]sexp.Expr, byteWidth)
	for i := 0; i < byteWidth; i++ {
		parts[byteWidth-1-i] = smtlib.Select(snap.Expr(), smtlib.HexLiteral(addr+uint64(i), 8))
	}
	return smtlib.Concat(parts...)
}
