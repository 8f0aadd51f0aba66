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

// Package oracle discharges equivalence obligations to an external
// SMT solver: it writes the accumulated script to disk, runs the
// solver as a subprocess, and turns a `sat` response into a fatal
// abort carrying a simplified counter-example.
package oracle

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/vericomp/tveq/cgroup"
	"github.com/vericomp/tveq/sexp"
	"github.com/vericomp/tveq/smtlib"
)

// Oracle discharges a verifier state's accumulated goals. Check
// must not return an error for a successful (unsat) outcome. In
// Z3Oracle a genuine counter-example or unparseable solver output
// is reported by panicking, and an I/O failure (writing a scratch
// file, starting the solver) is returned as an error; callers
// treat both as fatal, per the engine's all-or-nothing error model.
type Oracle interface {
	Check(script *sexp.Script, goals []sexp.Expr, interesting []string, label string) error
}

// Z3Oracle is the default Oracle: it shells out to a `z3` binary
// once per query.
type Z3Oracle struct {
	// Bin is the solver executable name or path. Defaults to "z3".
	Bin string
	// ScratchDir holds the fixed query/result/model/simplified
	// file names for one run. Callers should give concurrent
	// runs distinct scratch directories.
	ScratchDir string
	// Timeout bounds how long a single solver invocation may
	// run; zero means no timeout.
	Timeout time.Duration
	// CgroupLimit, if non-zero, caps the solver subprocess's
	// memory via a cgroupv2 controller directory created under
	// Dir. A zero Dir (the default) disables the cap.
	Cgroup      cgroup.Dir
	CgroupLimit int64
}

const (
	queryFileName = "query.smt2"
	resultFile    = "result.txt"
	modelFile     = "model.txt"
	simplifyFile  = "simplify.smt2"
)

func (o *Z3Oracle) bin() string {
	if o.Bin == "" {
		return "z3"
	}
	return o.Bin
}

func (o *Z3Oracle) path(name string) string {
	return filepath.Join(o.ScratchDir, name)
}

// Check implements the five-to-seven step protocol of the oracle
// component: skip on no goals, single- vs N-goal encoding, write,
// invoke, parse, and on sat, simplify and abort.
func (o *Z3Oracle) Check(script *sexp.Script, goals []sexp.Expr, interesting []string, label string) error {
	if len(goals) == 0 {
		return nil
	}

	query := script.Clone()
	query.Append(smtlib.Assert(negateGoals(goals)))
	query.Append(smtlib.CheckSat())
	query.Append(smtlib.GetModel())

	if err := o.writeFile(queryFileName, query.Text()); err != nil {
		return fmt.Errorf("oracle: writing query: %w", err)
	}

	out, err := o.run(o.path(queryFileName))
	if err != nil {
		return fmt.Errorf("oracle: running solver: %w", err)
	}
	if err := o.writeFile(resultFile, out); err != nil {
		return fmt.Errorf("oracle: writing result: %w", err)
	}

	trimmed := strings.TrimSpace(out)
	switch {
	case strings.HasPrefix(trimmed, "unsat"):
		return nil
	case strings.HasPrefix(trimmed, "sat"):
		model := strings.TrimSpace(strings.TrimPrefix(trimmed, "sat"))
		model = strings.TrimPrefix(model, "(")
		model = strings.TrimSuffix(model, ")")
		if err := o.writeFile(modelFile, model); err != nil {
			return fmt.Errorf("oracle: writing model: %w", err)
		}
		panic(o.diagnose(query, model, interesting, label))
	default:
		panic(fmt.Sprintf("oracle: solver produced unparseable output for %q:\n%s", label, out))
	}
}

// diagnose re-invokes the solver to simplify every interesting
// constant against the model, and assembles the final abort
// message. The order interesting is iterated in is the order the
// (echo ...)/(simplify ...) lines are emitted, so it is also the
// order they appear in the message.
func (o *Z3Oracle) diagnose(query sexp.Script, model string, interesting []string, label string) string {
	simplify := query.Clone()
	simplify.AppendRaw(model)
	simplify.Append(smtlib.Echo(label))
	for _, name := range interesting {
		simplify.Append(smtlib.Echo(name + " is:"))
		simplify.Append(smtlib.Simplify(name))
	}

	if err := o.writeFile(simplifyFile, simplify.Text()); err != nil {
		return fmt.Sprintf("%s: counter-example found, but writing simplify script failed: %v\nraw model:\n%s", label, err, model)
	}
	out, err := o.run(o.path(simplifyFile))
	if err != nil {
		return fmt.Sprintf("%s: counter-example found, but simplify invocation failed: %v\nraw model:\n%s", label, err, model)
	}
	return fmt.Sprintf("%s:\n%s", label, out)
}

// run invokes the solver against the file at path, returning its
// combined stdout. The child is placed in its own process group so
// that, on timeout, the whole group (not just the direct child) can
// be killed.
func (o *Z3Oracle) run(path string) (string, error) {
	cmd := exec.Command(o.bin(), path)
	cmd.SysProcAttr = &unix.SysProcAttr{Setpgid: true}

	if !o.Cgroup.IsZero() && o.CgroupLimit != 0 {
		if err := o.Cgroup.SetMemoryMax(o.CgroupLimit); err != nil {
			return "", fmt.Errorf("applying cgroup memory cap: %w", err)
		}
	}

	var out strings.Builder
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting %s: %w", o.bin(), err)
	}
	if !o.Cgroup.IsZero() && o.CgroupLimit != 0 {
		if err := cgroup.Move(cmd.Process.Pid, o.Cgroup); err != nil {
			_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
			_ = cmd.Wait()
			return "", fmt.Errorf("moving solver into cgroup: %w", err)
		}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if o.Timeout <= 0 {
		<-done
		return out.String(), nil
	}

	select {
	case <-done:
		return out.String(), nil
	case <-time.After(o.Timeout):
		_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		<-done
		return "sat ((timeout))", nil
	}
}

func (o *Z3Oracle) writeFile(name, contents string) error {
	f, err := os.Create(o.path(name))
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if _, err := w.WriteString(contents); err != nil {
		return err
	}
	return w.Flush()
}

// negateGoals builds the (not G) or (not (and g1 ... gN)) form
// described in the oracle's step 2, generalized to any goal count.
func negateGoals(goals []sexp.Expr) sexp.Expr {
	if len(goals) == 1 {
		return smtlib.Not(goals[0])
	}
	return smtlib.Not(smtlib.And(goals...))
}
