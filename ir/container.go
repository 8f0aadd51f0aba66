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

package ir

import (
	"fmt"
	"os"

	"github.com/vericomp/tveq/ion"
)

// Load reads and decodes a Container from the ion-encoded file at path.
func Load(path string) (Container, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return Container{}, fmt.Errorf("reading IR container %s: %w", path, err)
	}
	var st ion.Symtab
	rest, err := st.Unmarshal(buf)
	if err != nil {
		return Container{}, fmt.Errorf("decoding symbol table in %s: %w", path, err)
	}
	var c Container
	if _, err := ion.Unmarshal(&st, rest, &c); err != nil {
		return Container{}, fmt.Errorf("decoding IR container %s: %w", path, err)
	}
	return c, nil
}

// Save encodes c and writes it to path, overwriting any existing
// file. It is primarily useful for test fixtures and for tools
// that produce IR containers for the verifier to consume.
func Save(path string, c Container) error {
	var body ion.Buffer
	var st ion.Symtab
	if err := ion.Marshal(&st, &body, c); err != nil {
		return fmt.Errorf("encoding IR container: %w", err)
	}
	var out ion.Buffer
	st.Marshal(&out, true)
	out.UnsafeAppend(body.Bytes())
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing IR container %s: %w", path, err)
	}
	return nil
}
