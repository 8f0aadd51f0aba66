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

// Package ints holds small integer helpers shared by the symbolic
// memory model.
package ints

// IsAligned64 returns true if and only if v is an integer multiple of
// alignment. symmem uses it to assert that every address it hands out
// falls on a page boundary.
func IsAligned64(v, alignment uint64) bool {
	return v%alignment == 0
}
