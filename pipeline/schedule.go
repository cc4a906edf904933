package pipeline

// schedule selects the oldest ready entry queued for lane and promotes it
// into that lane's Register-Read slot for next cycle.
func (p *Pipeline) schedule(lane int) {
	entry, ok := p.iq.IssueForLane(lane)
	if !ok {
		return
	}
	payIdx := p.payByAL[entry.ALIndex]
	p.lanes[lane].nextRR = laneSlot{Valid: true, Pay: payIdx}
}

// registerRead reads each ready source operand out of the Physical
// Register File and stages the instruction into the lane's first Execute
// sub-stage.
func (p *Pipeline) registerRead(lane int) {
	rr := p.lanes[lane].rr
	if !rr.Valid {
		return
	}
	e := p.pay.Get(rr.Pay)
	if e.Psrc1Valid {
		e.Src1Val = p.renamer.Read(e.Psrc1)
	}
	if e.Psrc2Valid {
		e.Src2Val = p.renamer.Read(e.Psrc2)
	}
	p.lanes[lane].nextEX[0] = laneSlot{Valid: true, Pay: rr.Pay}
}
