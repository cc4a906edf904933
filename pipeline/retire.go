package pipeline

import (
	"github.com/brassfork/rvooo/insts"
	"github.com/brassfork/rvooo/pay"
	"github.com/brassfork/rvooo/renamer"
	"github.com/brassfork/rvooo/trap"
)

const sysExit = 93

// retire examines the Active List head and, once it is complete, commits
// it: store data reaches memory, a load's queue slot is freed, an AMO
// performs its read-modify-write, a syscall is interpreted, and the
// retire hook fires before the Payload Buffer entry is freed.
//
// A head that raised an exception or a load-ordering violation never
// commits: it triggers a full squash instead (squashComplete), and the
// simulator keeps running from the redirected PC rather than halting.
// A serializing instruction (amo, csr) commits normally and then
// squashes and redirects to its own next sequential PC, so that anything
// younger the out-of-order machine ran ahead of it is discarded and
// refetched under it (spec.md §4.7).
func (p *Pipeline) retire() {
	info, ok := p.renamer.Precommit()
	if !ok || !info.Completed {
		return
	}

	payIdx := p.payByAL[info.ALIndex]
	e := p.pay.Get(payIdx)
	inst := e.Inst

	if info.Exception {
		p.retireException(info, e)
		return
	}
	if info.LoadViolation {
		p.retireLoadViolation(info)
		return
	}

	// Both halves of a split store share one Store Queue slot; only the
	// value (lower) half, which retires last, commits it.
	if info.Store && !(inst.SplitStore && inst.Upper) {
		if tr := p.lsuUnit.Commit(int(e.SQIndex), inst.PC); tr.Cause != trap.CauseNone {
			p.renamer.SetException(info.ALIndex)
			e.HasTrap = true
			e.TrapCause = uint8(tr.Cause)
			e.TrapPC = tr.PC
			e.TrapAddr = tr.BadVAddr
			return
		}
	}
	if info.Load {
		p.lsuUnit.CommitLoad()
	}
	if info.AMO {
		old, tr := p.lsuUnit.AMO(e.Src1Val, inst.MemSize, inst.PC, amoCombine(inst.Op, e.Src2Val))
		if tr.Cause != trap.CauseNone {
			p.renamer.SetException(info.ALIndex)
			e.HasTrap = true
			e.TrapCause = uint8(tr.Cause)
			e.TrapPC = tr.PC
			e.TrapAddr = tr.BadVAddr
			return
		}
		e.ResultVal = old
		if e.PdstValid {
			p.renamer.Write(e.Pdst, old)
			p.renamer.SetReady(e.Pdst)
			p.iq.Wakeup(e.Pdst)
		}
	}

	if inst.IsSyscall() {
		p.handleSyscall()
	}
	if inst.IsBreakpoint() {
		p.halted = true
		p.exitCode = 0
	}

	ev := RetireEvent{
		PC:        info.PC,
		Inst:      inst,
		DestValid: e.PdstValid,
		LogDst:    uint64(inst.Rd),
		Value:     e.ResultVal,
	}
	if info.CSR {
		// Matches emu.Emulator.stepCSR's oracle result: a CSR instruction
		// always carries the serialize-and-refetch pseudo-trap, even on a
		// successful commit, so the checker compares it as agreement
		// rather than a spurious trap_cause mismatch.
		ev.Trap = trap.CSRInstruction(info.PC)
	}
	// Likewise the oracle reports ECALL/EBREAK as a syscall/breakpoint
	// trap, even though Retire interprets them in place.
	if inst.IsSyscall() {
		ev.Trap = trap.Syscall(info.PC)
	} else if inst.IsBreakpoint() {
		ev.Trap = trap.Breakpoint(info.PC)
	}
	if p.retireHook != nil {
		p.retireHook(ev)
	}

	p.renamer.Commit()

	if (info.AMO || info.CSR) && !p.halted {
		p.squashComplete(info.PC + 4)
	}

	p.pay.Free(payIdx)
	p.stats.Instructions++
}

// retireException takes the trap recorded on the Active List head: a
// CSR-instruction pseudo-trap re-fetches the same PC (spec.md §4.7), every
// other cause redirects to the pipeline's trap vector. The instruction is
// accounted as retired and squashComplete discards it along with every
// younger in-flight instruction.
func (p *Pipeline) retireException(info renamer.PrecommitInfo, e *pay.Entry) {
	tr := trap.Trap{Cause: trap.Cause(e.TrapCause), PC: e.TrapPC, BadVAddr: e.TrapAddr}

	if p.retireHook != nil {
		p.retireHook(RetireEvent{PC: e.TrapPC, Inst: e.Inst, Trap: tr})
	}

	target := p.trapVector
	if tr.Cause == trap.CauseCSRInstruction {
		target = e.TrapPC
	}

	p.stats.Instructions++
	p.squashComplete(target)
}

// retireLoadViolation handles a load the LSU found had raced an older,
// address-overlapping store: nothing commits, and fetch restarts at the
// load's own PC so it reissues against the now-resolved memory state
// (spec.md §4.7). If the memory-dependence predictor is enabled, this PC
// is recorded so future dispatches of the same load wait for older stores
// instead of speculating past them again.
func (p *Pipeline) retireLoadViolation(info renamer.PrecommitInfo) {
	if p.cfg.MemDepPred {
		p.memDepPC[info.PC] = struct{}{}
	}
	p.squashComplete(info.PC)
}

// amoCombine returns the read-modify-write function for an AMO op, given
// the AMO's rs2 value read at Register-Read.
func amoCombine(op insts.Op, operand uint64) func(uint64) uint64 {
	switch op {
	case insts.OpAMOSWAPW:
		return func(uint64) uint64 { return operand }
	default: // OpAMOADDW
		return func(old uint64) uint64 { return old + operand }
	}
}

func (p *Pipeline) handleSyscall() {
	num := p.renamer.ReadLogical(17) // a7
	if num == sysExit {
		code := int32(p.renamer.ReadLogical(10)) // a0
		p.halted = true
		p.exitCode = int(code)
		if p.exitHook != nil {
			p.exitHook(p.exitCode)
		}
	}
}
