package pipeline

import "github.com/brassfork/rvooo/pay"

// writeback consumes lane's Writeback slot: it resolves a branch against
// its prediction (recovering immediately on a mispredict, "approach #5"
// per spec.md §4.6), writes a result (including a jump's link value) into
// the Physical Register File and wakes any Issue Queue entries waiting on
// it, and marks the Active List entry complete.
func (p *Pipeline) writeback(lane int) {
	wb := p.lanes[lane].wb
	if !wb.Valid {
		return
	}
	e := p.pay.Get(wb.Pay)
	inst := e.Inst

	switch {
	case inst.IsBranch():
		p.resolveBranch(e)
		if e.PdstValid {
			// JAL/JALR link register.
			e.ResultVal = execALU(inst, inst.PC, e.Src1Val, e.Src2Val)
			p.renamer.Write(e.Pdst, e.ResultVal)
			p.renamer.SetReady(e.Pdst)
			p.iq.Wakeup(e.Pdst)
		}
	case inst.IsAMO():
		// The read-modify-write, and therefore the destination value,
		// happens at Retire (see lsu.AMO's doc comment); nothing to
		// publish to the PRF yet.
	case e.PdstValid:
		p.renamer.Write(e.Pdst, e.ResultVal)
		p.renamer.SetReady(e.Pdst)
		p.iq.Wakeup(e.Pdst)
	}

	p.renamer.SetComplete(e.ALIndex)
}

func (p *Pipeline) resolveBranch(e *pay.Entry) {
	info := p.branchInfo[e.BranchID]

	// In perfect-prediction mode every branch resolves correct and the
	// GBM is never rolled back (spec.md §4.6): there is nothing left to
	// mispredict, so skip the real predictor's verdict entirely.
	correct := p.cfg.PerfectBranchPred || p.predictor.VerifyPred(info.pc, info.pred, e.BranchTaken, e.BranchTarget)

	p.stats.Branches++

	if correct {
		p.renamer.Resolve(e.ALIndex, e.BranchID, true)
		p.iq.ClearBranchBit(e.BranchID)
		return
	}

	p.stats.Mispredictions++

	// Resolve's rollback discards every Active List entry after this
	// branch; capture the tail it is about to discard up to so the
	// matching Payload Buffer entries can be freed alongside it.
	oldTail := p.renamer.Tail()
	p.renamer.Resolve(e.ALIndex, e.BranchID, false)

	p.lsuUnit.Restore(info.lq)

	// squashAfter must run before freeALRange: it frees and clears every
	// lane/dispatch-latch slot still carrying one of these instructions
	// by branch mask, the same precise check Free relies on not being
	// skipped. freeALRange then sweeps whatever it left behind — entries
	// that were never latched into a lane, namely ones still waiting in
	// the Issue Queue, which Squash drops structurally without freeing
	// their Payload Buffer slot.
	p.squashAfter(e.BranchID)
	p.freeALRange(e.ALIndex, oldTail)

	if e.BranchTaken {
		p.pc = e.BranchTarget
	} else {
		p.pc = info.pc + 4
	}
}

// freeALRange returns every still-allocated Payload Buffer entry in the
// Active List ring range (alIndex, oldTail) to the pool, mirroring the
// Active List slots Resolve's rollback just discarded. Most of these were
// already freed by the preceding squashAfter (anything that had reached a
// lane or the dispatch latch); the Valid check skips those and only
// catches entries squashAfter's Issue Queue Squash call dropped without
// freeing — instructions still waiting on an operand, never latched into
// a lane.
func (p *Pipeline) freeALRange(alIndex, oldTail uint64) {
	cap := p.renamer.Cap()
	for i := (alIndex + 1) % cap; i != oldTail; i = (i + 1) % cap {
		idx := p.payByAL[i]
		if p.pay.Get(idx).Valid {
			p.pay.Free(idx)
		}
	}
}

// loadReplay polls for a load whose cache miss has resolved since it left
// the lane pipeline and finishes it out-of-band: the instruction already
// drained out of its Execute chain, so there is no lane slot left to
// carry it through an ordinary Writeback.
func (p *Pipeline) loadReplay() {
	lqIdx, value, ok := p.lsuUnit.LoadUnstall()
	if !ok {
		return
	}
	payIdx := p.payByLQ[lqIdx]
	e := p.pay.Get(payIdx)
	e.ResultVal = value

	if e.PdstValid {
		p.renamer.Write(e.Pdst, value)
		p.renamer.SetReady(e.Pdst)
		p.iq.Wakeup(e.Pdst)
	}
	p.renamer.SetComplete(e.ALIndex)
}
