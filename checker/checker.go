// Package checker implements spec.md §1/§7's "co-running functional
// reference model [that] provides oracle state used by the checker" and
// §6's `checker()` contract: it steps an independent emu.Emulator one
// instruction per retirement and compares the result against what the
// core actually committed, the same role the original's `pipe->peek()` +
// `checker()` pair plays in retire.cc.
//
// Because emu.Emulator.Step re-derives its outcome from the retired
// instruction (including its PC) and its own architectural state, this
// catches any divergence in a retiring instruction's computed result or
// trap, but not a core that fetched the wrong instruction to begin with —
// it trusts RetireEvent.Inst and its PC and decodes nothing itself.
package checker

import (
	"fmt"
	"io"

	"github.com/brassfork/rvooo/emu"
	"github.com/brassfork/rvooo/pipeline"
)

// Mismatch describes one retirement that disagreed with the functional
// reference.
type Mismatch struct {
	PC       uint64
	Field    string // "dest_valid", "dest_value", or "trap_cause"
	Expected uint64
	Actual   uint64
}

func (m Mismatch) String() string {
	return fmt.Sprintf("pc=0x%x %s: expected=0x%x actual=0x%x", m.PC, m.Field, m.Expected, m.Actual)
}

// Checker runs a functional reference model in lockstep with a Pipeline's
// retirements via a RetireHook, flagging anything that disagrees.
type Checker struct {
	oracle *emu.Emulator

	// Trace, if non-nil, receives one line per checked retirement — the
	// per-instruction debug trace spec.md's distillation dropped and
	// SPEC_FULL.md's supplemented-features section adds back.
	Trace io.Writer

	mismatches []Mismatch
}

// New creates a Checker whose oracle starts at entry over mem. mem should
// be the same backing memory the Pipeline under test reads and writes,
// so store effects the checker needs to re-derive loads from are already
// visible to it.
func New(entry uint64, mem *emu.Memory) *Checker {
	return &Checker{oracle: emu.NewEmulator(entry, mem)}
}

// Hook returns a pipeline.Option wiring this Checker's Check method in as
// the Pipeline's retire hook.
func (c *Checker) Hook() pipeline.Option {
	return pipeline.WithRetireHook(c.Check)
}

// Check steps the oracle over ev.Inst and compares the outcome against
// what the core committed. It never panics: every disagreement is
// appended to Mismatches and, if Trace is set, written out immediately.
func (c *Checker) Check(ev pipeline.RetireEvent) {
	if ev.Inst == nil {
		return
	}

	res := c.oracle.Step(ev.Inst)

	if res.Trap.Cause != ev.Trap.Cause {
		c.record(Mismatch{PC: ev.PC, Field: "trap_cause", Expected: uint64(res.Trap.Cause), Actual: uint64(ev.Trap.Cause)})
	}
	if res.Trap.Cause == ev.Trap.Cause && res.Trap.Cause != 0 {
		c.trace(ev)
		return
	}

	if res.WroteRd != ev.DestValid {
		c.record(Mismatch{PC: ev.PC, Field: "dest_valid", Expected: boolToU64(res.WroteRd), Actual: boolToU64(ev.DestValid)})
	} else if res.WroteRd && res.RdValue != ev.Value {
		c.record(Mismatch{PC: ev.PC, Field: "dest_value", Expected: res.RdValue, Actual: ev.Value})
	}

	c.trace(ev)
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func (c *Checker) record(m Mismatch) {
	c.mismatches = append(c.mismatches, m)
}

func (c *Checker) trace(ev pipeline.RetireEvent) {
	if c.Trace == nil {
		return
	}
	if ev.DestValid {
		fmt.Fprintf(c.Trace, "retire pc=0x%08x x%d=0x%x\n", ev.PC, ev.LogDst, ev.Value)
		return
	}
	if ev.Trap.Cause != 0 {
		fmt.Fprintf(c.Trace, "retire pc=0x%08x trap=%s\n", ev.PC, ev.Trap.Name())
		return
	}
	fmt.Fprintf(c.Trace, "retire pc=0x%08x\n", ev.PC)
}

// Mismatches returns every disagreement recorded so far.
func (c *Checker) Mismatches() []Mismatch {
	return c.mismatches
}

// OK reports whether every checked retirement has matched the oracle.
func (c *Checker) OK() bool {
	return len(c.mismatches) == 0
}
