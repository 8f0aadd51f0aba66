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

// Package sexp implements a minimal, immutable s-expression tree
// along with a single-line serializer and a width-limited pretty-printer.
//
// An Expr is either an Atom or a List of Exprs. There is no escaping
// performed when rendering an Atom: the only producer of atoms in this
// module is the smtlib package, which only ever constructs well-formed
// SMT-LIB tokens.
package sexp

import "strings"

// Expr is an s-expression: either an Atom or a List.
//
// Expr values are immutable once constructed; there is no way
// to mutate an Expr in place, so sharing a subtree between two
// larger expressions is always safe.
type Expr struct {
	atom   string
	list   []Expr
	isAtom bool
}

// Atom returns an Expr representing a single token.
func Atom(s string) Expr {
	return Expr{atom: s, isAtom: true}
}

// List returns an Expr representing a parenthesized list of items.
func List(items ...Expr) Expr {
	return Expr{list: items}
}

// S1 builds a one-element list, e.g. (check-sat).
func S1(a Expr) Expr { return List(a) }

// S2 builds a two-element list, e.g. (not expr).
func S2(a, b Expr) Expr { return List(a, b) }

// S3 builds a three-element list, e.g. (bvadd o0 o1).
func S3(a, b, c Expr) Expr { return List(a, b, c) }

// S4 builds a four-element list, e.g. (define-const name sort value).
func S4(a, b, c, d Expr) Expr { return List(a, b, c, d) }

// IsAtom returns true if e is an atom rather than a list.
func (e Expr) IsAtom() bool { return e.isAtom }

// Items returns the elements of e if e is a list, or nil otherwise.
func (e Expr) Items() []Expr { return e.list }

// OneLine renders e as a single line of SMT-LIB text with no
// extraneous whitespace: atoms verbatim, lists parenthesized
// and space-separated.
func (e Expr) OneLine() string {
	var b strings.Builder
	e.writeOneLine(&b)
	return b.String()
}

func (e Expr) writeOneLine(b *strings.Builder) {
	if e.isAtom {
		b.WriteString(e.atom)
		return
	}
	b.WriteByte('(')
	for i, item := range e.list {
		if i > 0 {
			b.WriteByte(' ')
		}
		item.writeOneLine(b)
	}
	b.WriteByte(')')
}

// Pretty renders e as human-readable, width-limited multi-line text.
// A list is kept on one line if it fits within width columns of its
// current indentation; otherwise each item is placed on its own line,
// indented one level deeper than the opening parenthesis.
func (e Expr) Pretty(width int) string {
	var b strings.Builder
	e.writePretty(&b, 0, width)
	return b.String()
}

func (e Expr) writePretty(b *strings.Builder, indent, width int) {
	if e.isAtom || len(e.list) == 0 {
		e.writeOneLine(b)
		return
	}
	oneLine := e.OneLine()
	if indent+len(oneLine) <= width {
		b.WriteString(oneLine)
		return
	}
	b.WriteByte('(')
	childIndent := indent + 1
	for i, item := range e.list {
		if i > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.Repeat(" ", childIndent))
		}
		item.writePretty(b, childIndent, width)
	}
	b.WriteByte(')')
}
