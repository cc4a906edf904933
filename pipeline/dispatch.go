package pipeline

import (
	"github.com/brassfork/rvooo/config"
	"github.com/brassfork/rvooo/insts"
	"github.com/brassfork/rvooo/iq"
	"github.com/brassfork/rvooo/trap"
)

// classify returns Dispatch's issue-queue routing decision for inst
// (spec.md §6): a genuine fetch-time fault skips the issue queue and is
// marked exceptional immediately; ECALL/EBREAK also skip the issue queue
// (there is nothing for an execution lane to do) but complete normally,
// leaving Retire to interpret them; everything else issues.
func classify(inst *insts.Instruction) selClass {
	if inst.FetchException != insts.FetchExceptionNone {
		return selIQNoneException
	}
	if inst.IsSyscall() || inst.IsBreakpoint() {
		return selIQNone
	}
	return selIQ
}

// chooseLane picks an execution lane for inst per cfg.LaneSteer: a fixed
// per-op-class lane, or a rotating round-robin pointer across every lane.
func (p *Pipeline) chooseLane(inst *insts.Instruction) int {
	n := len(p.lanes)
	if p.cfg.Presteer || p.cfg.LaneSteer == config.LaneRoundRobin {
		lane := p.laneSteer % n
		p.laneSteer++
		return lane
	}
	return fuClass(inst) % n
}

// fuClass groups instructions by the kind of functional unit they need,
// used by the fixed lane-steering policy to keep similar work on the same
// lane cycle over cycle.
func fuClass(inst *insts.Instruction) int {
	switch {
	case inst.IsLoad() || inst.IsStore() || inst.IsAMO():
		return 1
	case inst.IsBranch():
		return 2
	default:
		return 0
	}
}

// dispatch consumes the bundle Rename2 staged last cycle, allocating
// Active List, Issue Queue, and Load/Store Queue resources for each
// member. Like the rename sub-stages, a structural stall holds the whole
// bundle in place for a retry next cycle rather than dropping it.
func (p *Pipeline) dispatch() {
	if !p.dl.Valid {
		return
	}
	bundle := p.dl.Bundle

	var needAL, needIQ, needLoads, needStores uint64
	for _, idx := range bundle {
		e := p.pay.Get(idx)
		needAL++
		if classify(e.Inst) == selIQ {
			needIQ++
		}
		if e.Inst.IsLoad() {
			needLoads++
		}
		if e.Inst.IsStore() && e.Inst.Upper {
			needStores++
		}
	}

	if p.renamer.StallDispatch(needAL) || p.iq.Stall(needIQ) || p.lsuUnit.Stall(needLoads, needStores) {
		p.nextDL = p.dl
		return
	}

	for _, idx := range bundle {
		p.dispatchOne(idx)
	}
}

func (p *Pipeline) dispatchOne(idx uint64) {
	e := p.pay.Get(idx)
	inst := e.Inst

	lane := p.chooseLane(inst)
	e.Lane = lane

	alIdx := p.renamer.DispatchInst(e.PdstValid, uint64(inst.Rd), e.Pdst,
		inst.IsLoad(), inst.IsStore(), inst.IsBranch(), inst.IsAMO(), inst.IsCSR(), inst.PC)
	e.ALIndex = alIdx
	p.payByAL[alIdx] = idx

	switch classify(inst) {
	case selIQNoneException:
		p.renamer.SetComplete(alIdx)
		p.renamer.SetException(alIdx)
		e.HasTrap = true
		e.TrapCause = uint8(fetchTrapCause(inst.FetchException))
		e.TrapPC = inst.PC
	case selIQNone:
		p.renamer.SetComplete(alIdx)
	case selIQ:
		a := iq.Source{Valid: e.Psrc1Valid, Ready: e.Psrc1Valid && p.renamer.IsReady(e.Psrc1), Phys: e.Psrc1}
		b := iq.Source{Valid: e.Psrc2Valid, Ready: e.Psrc2Valid && p.renamer.IsReady(e.Psrc2), Phys: e.Psrc2}
		p.iq.Dispatch(alIdx, e.BranchMask, lane, a, b, iq.Source{})
	}

	if inst.IsLoad() || inst.IsStore() {
		lqIdx, sqIdx := p.lsuUnit.Dispatch(inst.IsLoad(), inst.IsStore(), inst.SplitStore && !inst.Upper, e.BranchMask)
		if lqIdx >= 0 {
			e.HasLQ = true
			e.LQIndex = uint64(lqIdx)
			p.payByLQ[lqIdx] = idx
		}
		if sqIdx >= 0 {
			e.HasSQ = true
			e.SQIndex = uint64(sqIdx)
		}
	}

	if inst.IsBranch() {
		bi := p.branchInfo[e.BranchID]
		bi.lq = p.lsuUnit.Checkpoint()
		p.branchInfo[e.BranchID] = bi
	}
}

// fetchTrapCause maps a decode-time fetch exception to its architectural
// trap cause.
func fetchTrapCause(c insts.FetchExceptionCause) trap.Cause {
	switch c {
	case insts.FetchExceptionMisalignedFetch:
		return trap.CauseInstructionAddressMisaligned
	case insts.FetchExceptionAccessFault:
		return trap.CauseInstructionAccessFault
	case insts.FetchExceptionFPDisabled:
		return trap.CauseFPDisabled
	case insts.FetchExceptionPrivileged:
		return trap.CausePrivilegedInstruction
	default:
		return trap.CauseIllegalInstruction
	}
}
