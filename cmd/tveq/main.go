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

// Command tveq checks two functions from an IR container for
// observational equivalence by symbolic co-execution, discharging
// the obligations it derives to an external SMT solver.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vericomp/tveq/cache"
	"github.com/vericomp/tveq/cgroup"
	"github.com/vericomp/tveq/config"
	"github.com/vericomp/tveq/equiv"
	"github.com/vericomp/tveq/ir"
	"github.com/vericomp/tveq/oracle"
)

var (
	dashConfig      string
	dashLeft        string
	dashRight       string
	dashSolver      string
	dashScratch     string
	dashTimeout     time.Duration
	dashCgroupBytes int64
	dashStrict      bool
	dashHavoc       bool
	dashCacheDir    string
	dashNoCache     bool
)

func init() {
	flag.StringVar(&dashConfig, "config", "", "path to a tveq.yaml configuration file")
	flag.StringVar(&dashLeft, "left", "", "name of the left (old) function")
	flag.StringVar(&dashRight, "right", "", "name of the right (new) function")
	flag.StringVar(&dashSolver, "solver", "", "solver binary (overrides config, default z3)")
	flag.StringVar(&dashScratch, "scratch", "", "scratch directory for solver I/O (overrides config)")
	flag.DurationVar(&dashTimeout, "timeout", 0, "per-query solver timeout, e.g. 30s (overrides config)")
	flag.Int64Var(&dashCgroupBytes, "cgroup-memory-limit", 0, "cap the solver subprocess's memory, in bytes, via cgroupv2 (overrides config)")
	flag.BoolVar(&dashStrict, "strict-return-arity", false, "treat a void/non-void return mismatch as a counter-example (overrides config)")
	flag.BoolVar(&dashHavoc, "havoc-after-call", false, "replace post-call memory with a fresh uninterpreted constant (overrides config)")
	flag.StringVar(&dashCacheDir, "cache-dir", "", "skip re-verification of function pairs already proven equivalent under this directory")
	flag.BoolVar(&dashNoCache, "no-cache", false, "ignore and do not populate the verification cache")
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <container.ion>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if dashLeft == "" || dashRight == "" {
		exitf("both -left and -right are required")
	}

	cfg, err := config.Load(dashConfig)
	if err != nil {
		exit(err)
	}
	applyOverrides(&cfg)

	container, err := ir.Load(flag.Arg(0))
	if err != nil {
		exit(err)
	}
	left, ok := container.Lookup(dashLeft)
	if !ok {
		exitf("function %q not found in %s", dashLeft, flag.Arg(0))
	}
	right, ok := container.Lookup(dashRight)
	if !ok {
		exitf("function %q not found in %s", dashRight, flag.Arg(0))
	}

	var cacheKey string
	var vcache cache.Cache
	if !dashNoCache && dashCacheDir != "" {
		vcache = cache.Cache{Dir: dashCacheDir}
		cacheKey, err = cache.Key(left, right, cfg.StrictReturnArity, cfg.HavocAfterCall)
		if err != nil {
			exit(err)
		}
		if vcache.Has(cacheKey) {
			log.Printf("tveq: %q vs %q already verified equivalent (cache hit)", dashLeft, dashRight)
			return
		}
	}

	var cgroupDir cgroup.Dir
	if cfg.CgroupLimit > 0 {
		root, err := cgroup.Self()
		if err != nil {
			exit(err)
		}
		cgroupDir, err = root.Create("tveq", true)
		if err != nil {
			exit(err)
		}
		defer cgroupDir.Remove()
	}

	oc := &oracle.Z3Oracle{
		Bin:         cfg.SolverBin,
		ScratchDir:  cfg.ScratchDir,
		Timeout:     time.Duration(cfg.QueryTimeout),
		Cgroup:      cgroupDir,
		CgroupLimit: cfg.CgroupLimit,
	}

	if err := runGuarded(container, dashLeft, dashRight, oc, equiv.Config{
		StrictReturnArity: cfg.StrictReturnArity,
		HavocAfterCall:    cfg.HavocAfterCall,
	}); err != nil {
		exit(err)
	}

	if vcache.Dir != "" {
		if err := vcache.Store(cacheKey, []byte(fmt.Sprintf("equivalent: %s vs %s\n", dashLeft, dashRight))); err != nil {
			log.Printf("tveq: warning: could not populate verification cache: %v", err)
		}
	}

	fmt.Printf("%s and %s are observationally equivalent\n", dashLeft, dashRight)
}

// runGuarded converts a fatal panic raised by the oracle or the
// stepper (a discovered counter-example, or IR outside the
// supported fragment) into a plain error, so main can report it
// and exit non-zero instead of unwinding with a stack trace.
func runGuarded(container ir.Container, leftName, rightName string, oc oracle.Oracle, cfg equiv.Config) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return equiv.Run(container, leftName, rightName, oc, cfg)
}

func applyOverrides(cfg *config.Config) {
	if dashSolver != "" {
		cfg.SolverBin = dashSolver
	}
	if dashScratch != "" {
		cfg.ScratchDir = dashScratch
	}
	if dashTimeout != 0 {
		cfg.QueryTimeout = config.Duration(dashTimeout)
	}
	if dashCgroupBytes != 0 {
		cfg.CgroupLimit = dashCgroupBytes
	}
	if dashStrict {
		cfg.StrictReturnArity = true
	}
	if dashHavoc {
		cfg.HavocAfterCall = true
	}
}

func exitf(f string, args ...any) {
	exit(fmt.Errorf(f, args...))
}

func exit(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
