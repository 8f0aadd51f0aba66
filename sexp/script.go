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

import "strings"

// Script is an append-only sequence of top-level SMT-LIB commands.
//
// A Script is deliberately a plain value (a slice header plus the
// rendered text) rather than a pointer so that Clone produces a Script
// whose future Append calls cannot be observed by the original: this
// is what lets the equivalence driver clone a VerifierState at every
// branch point and have the two resulting branches diverge independently.
type Script struct {
	lines []string
}

// Append adds one SMT-LIB command to the end of the script,
// rendered as a single line.
func (s *Script) Append(e Expr) {
	s.lines = append(s.lines, e.OneLine())
}

// AppendRaw adds a pre-rendered line verbatim, for commands
// such as (echo "...") that embed a quoted string literal
// that should not be re-tokenized.
func (s *Script) AppendRaw(line string) {
	s.lines = append(s.lines, line)
}

// Text renders the whole script as newline-terminated SMT-LIB text.
func (s Script) Text() string {
	var b strings.Builder
	for _, l := range s.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Clone returns an independent copy of s: appends to the
// returned Script do not affect s, and vice versa.
func (s Script) Clone() Script {
	cp := make([]string, len(s.lines))
	copy(cp, s.lines)
	return Script{lines: cp}
}

// Len returns the number of commands appended so far.
func (s Script) Len() int { return len(s.lines) }
