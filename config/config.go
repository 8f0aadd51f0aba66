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

// Package config decodes the small YAML-shaped configuration file
// the driver accepts: solver binary name, scratch directory,
// per-query timeout, and the two equivalence-driver policy flags.
// A missing config file is not an error; every field has a default
// that reproduces the behavior described for the fixed-path engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"sigs.k8s.io/yaml"
)

// Duration wraps time.Duration so config files can spell timeouts
// as "30s" rather than a raw nanosecond count.
type Duration time.Duration

// UnmarshalJSON accepts either a Go duration string ("30s") or a
// bare integer number of nanoseconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var asString string
	if err := json.Unmarshal(b, &asString); err == nil {
		parsed, err := time.ParseDuration(asString)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", asString, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var asNanos int64
	if err := json.Unmarshal(b, &asNanos); err != nil {
		return fmt.Errorf("config: duration must be a string or a number of nanoseconds: %w", err)
	}
	*d = Duration(asNanos)
	return nil
}

// Config is the top-level shape of the YAML config file.
type Config struct {
	// SolverBin is the SMT solver executable name or path.
	SolverBin string `json:"solverBin"`
	// ScratchDir holds the query/result/model/simplify files for
	// one run.
	ScratchDir string `json:"scratchDir"`
	// QueryTimeout bounds a single solver invocation; a zero
	// duration means no timeout.
	QueryTimeout Duration `json:"queryTimeout"`
	// CgroupLimit, in bytes, caps the solver subprocess's memory
	// via a cgroupv2 controller; zero disables the cap.
	CgroupLimit int64 `json:"cgroupLimitBytes"`
	// StrictReturnArity and HavocAfterCall mirror equiv.Config;
	// see its doc comments for their meaning.
	StrictReturnArity bool `json:"strictReturnArity"`
	HavocAfterCall    bool `json:"havocAfterCall"`
}

// Default returns the configuration that reproduces the
// fixed-path, non-strict behavior the engine was designed around.
func Default() Config {
	return Config{
		SolverBin:  "z3",
		ScratchDir: ".",
	}
}

// Load reads and decodes a YAML config file at path. A path of ""
// is not an error: Load returns Default() unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
