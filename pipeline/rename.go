package pipeline

import "github.com/brassfork/rvooo/insts"

// usesRs1 reports whether inst reads a first source register, as opposed
// to carrying only an immediate or nothing (LUI/AUIPC/JAL/ECALL/EBREAK).
func usesRs1(inst *insts.Instruction) bool {
	switch inst.Format {
	case insts.FormatU, insts.FormatJ:
		return false
	}
	switch inst.Op {
	case insts.OpECALL, insts.OpEBREAK:
		return false
	}
	return true
}

// rename2 consumes the bundle Rename1 staged last cycle, performs the
// actual rename work (source/destination translation, branch
// checkpointing, Payload Buffer allocation), and stages the resulting PAY
// indices for Dispatch. Like Rename1, it holds its input bundle in place
// (by re-latching fl unchanged) rather than dropping it when a resource
// is unavailable.
func (p *Pipeline) rename2() {
	if p.nextDL.Valid {
		// Dispatch is holding last cycle's bundle for a retry; propagate
		// that backpressure by holding ours too.
		p.nextFL = p.fl
		return
	}
	if !p.fl.Valid {
		return
	}

	bundle := p.fl.Bundle

	var needRegs, needBranches uint64
	for _, inst := range bundle {
		if inst.HasRd() {
			needRegs++
		}
		if inst.IsBranch() {
			needBranches++
		}
	}
	if p.renamer.StallReg(needRegs) || p.renamer.StallBranch(needBranches) {
		p.nextFL = p.fl
		return
	}

	payIdxs := make([]uint64, 0, len(bundle))
	for i := 0; i < len(bundle); i++ {
		inst := bundle[i]

		var idx uint64
		if inst.SplitStore && inst.Upper && i+1 < len(bundle) && bundle[i+1].SplitStore && !bundle[i+1].Upper {
			upper, lower := p.pay.AllocSplitPair()
			p.renameOne(upper, inst)
			p.renameOne(lower, bundle[i+1])
			payIdxs = append(payIdxs, upper, lower)
			i++
			continue
		}

		idx = p.pay.Alloc()
		p.renameOne(idx, inst)
		payIdxs = append(payIdxs, idx)
	}

	p.nextDL = dispatchLatch{Valid: true, Bundle: payIdxs}
}

// renameOne fills in one Payload Buffer entry's rename results for inst.
func (p *Pipeline) renameOne(idx uint64, inst *insts.Instruction) {
	e := p.pay.Get(idx)
	e.Inst = inst

	e.BranchMask = p.renamer.GetBranchMask()

	if usesRs1(inst) {
		e.Psrc1 = p.renamer.RenameRsrc(uint64(inst.Rs1))
		e.Psrc1Valid = true
	}
	if inst.HasRs2() {
		e.Psrc2 = p.renamer.RenameRsrc(uint64(inst.Rs2))
		e.Psrc2Valid = true
	}

	if inst.HasRd() {
		e.Pdst = p.renamer.RenameRdst(uint64(inst.Rd))
		e.PdstValid = true
	}

	if inst.IsBranch() {
		e.BranchID = p.renamer.Checkpoint()
		e.HasCheckpoint = true
		p.branchInfo[e.BranchID] = branchInfo{
			pc:   inst.PC,
			pred: p.predictor.Predict(inst.PC),
		}
	}
}
