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

// Package ion implements a small, self-describing binary encoding
// (a subset of Amazon Ion) along with reflection-based Marshal/Unmarshal
// helpers driven by `ion:"..."` struct tags.
//
// The ir package uses this encoding as the on-disk format for the IR
// container that the verifier reads: a Container is just a tagged Go
// struct, so Marshal/Unmarshal do all the work of reading and writing it.
package ion
