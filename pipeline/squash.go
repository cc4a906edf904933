package pipeline

// squashAfter discards every speculative instruction younger than the
// branch identified by branchID, resolved as mispredicted at Writeback.
// Because fetch is strictly in-order, anything still sitting in the
// front-end latches or the Fetch Queue was necessarily fetched after this
// branch and can simply be dropped; anything already dispatched is
// identified precisely by branchID's bit in its own branch mask.
func (p *Pipeline) squashAfter(branchID uint64) {
	bit := uint64(1) << branchID

	p.fetchQ.Flush()
	p.fl, p.nextFL = fetchLatch{}, fetchLatch{}

	for _, idx := range p.dl.Bundle {
		p.pay.Free(idx)
	}
	p.dl, p.nextDL = dispatchLatch{}, dispatchLatch{}

	p.iq.Squash(branchID)

	for _, l := range p.lanes {
		p.squashLaneSlot(&l.rr, bit)
		p.squashLaneSlot(&l.nextRR, bit)
		for i := range l.ex {
			p.squashLaneSlot(&l.ex[i], bit)
			p.squashLaneSlot(&l.nextEX[i], bit)
		}
		p.squashLaneSlot(&l.wb, bit)
		p.squashLaneSlot(&l.nextWB, bit)
	}

	p.stats.Flushes++
}

func (p *Pipeline) squashLaneSlot(s *laneSlot, bit uint64) {
	if !s.Valid {
		return
	}
	e := p.pay.Get(s.Pay)
	if e.BranchMask&bit == 0 {
		return
	}
	p.pay.Free(s.Pay)
	s.Clear()
}

// squashComplete performs a full pipeline squash (spec.md §4.8): every
// in-flight instruction is discarded, not just those younger than a single
// branch. Retire calls this on an exception, a load-ordering violation, and
// a serializing (amo/csr) instruction's successful commit, handing it the
// PC fetch should resume at.
func (p *Pipeline) squashComplete(jumpPC uint64) {
	p.fetchQ.Flush()
	p.fl, p.nextFL = fetchLatch{}, fetchLatch{}

	for _, idx := range p.dl.Bundle {
		p.pay.Free(idx)
	}
	p.dl, p.nextDL = dispatchLatch{}, dispatchLatch{}

	p.iq.Flush()

	for _, l := range p.lanes {
		l.clearAll(p.pay.Free)
	}

	head, tail, alCap := p.renamer.Head(), p.renamer.Tail(), p.renamer.Cap()
	for i := head; i != tail; i = (i + 1) % alCap {
		idx := p.payByAL[i]
		if p.pay.Get(idx).Valid {
			p.pay.Free(idx)
		}
	}

	p.lsuUnit.Flush()
	p.predictor.Flush()
	p.pc = jumpPC
	p.renamer.Squash()

	p.stats.Flushes++
}
