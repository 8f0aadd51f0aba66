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

// Package cache implements an on-disk verification cache: a run
// that has already discharged a given pair of functions under a
// given policy configuration can be skipped entirely on a
// subsequent invocation of the same container.
package cache

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dchest/siphash"
	"github.com/klauspost/compress/zstd"

	"github.com/vericomp/tveq/ir"
)

// Fixed siphash keys: the cache key only needs to be stable across
// runs of this binary, not resistant to adversarial collisions.
const (
	k0 = 0x5d1ec810febed702
	k1 = 0x40fd7fee17262f71
)

// ErrMiss is returned by Load when no cached entry exists for the
// given key.
var ErrMiss = errors.New("cache: miss")

// Cache stores verification results (currently just a presence
// marker; a future version could store the full accumulated
// script for inspection) keyed by a hash of the serialized IR of
// the two functions plus the policy flags that affect their
// verification.
type Cache struct {
	Dir string
}

// Key computes the cache key for comparing left against right
// under the given policy flags. It hashes the ion-encoded
// representation of both functions together with the flags, so
// any change to either function's IR or to the policy invalidates
// the entry.
func Key(left, right ir.Function, strictReturnArity, havocAfterCall bool) (string, error) {
	tmp, err := os.CreateTemp("", "tveq-cache-key-*.ion")
	if err != nil {
		return "", fmt.Errorf("cache: creating scratch file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	container := ir.Container{Functions: []ir.Function{left, right}}
	if err := ir.Save(tmpPath, container); err != nil {
		return "", fmt.Errorf("cache: serializing functions for key: %w", err)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("cache: reading serialized functions: %w", err)
	}
	if strictReturnArity {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}
	if havocAfterCall {
		data = append(data, 1)
	} else {
		data = append(data, 0)
	}

	h := siphash.Hash(k0, k1, data)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h)
	return hex.EncodeToString(buf[:]), nil
}

func (c Cache) path(key string) string {
	return filepath.Join(c.Dir, key+".zst")
}

// Has reports whether key is present in the cache, without
// decompressing its contents.
func (c Cache) Has(key string) bool {
	_, err := os.Stat(c.path(key))
	return err == nil
}

// Store compresses script and writes it to the cache under key,
// marking this pair of functions (under this policy) as
// previously discharged.
func (c Cache) Store(key string, script []byte) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("cache: creating %s: %w", c.Dir, err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("cache: initializing compressor: %w", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(script, nil)
	if err := os.WriteFile(c.path(key), compressed, 0o644); err != nil {
		return fmt.Errorf("cache: writing %s: %w", key, err)
	}
	return nil
}

// Load returns the cached, decompressed script for key, or
// ErrMiss if no entry exists.
func (c Cache) Load(key string) ([]byte, error) {
	compressed, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache: reading %s: %w", key, err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("cache: initializing decompressor: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("cache: decompressing %s: %w", key, err)
	}
	return out, nil
}
