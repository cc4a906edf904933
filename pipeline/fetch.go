package pipeline

import "github.com/brassfork/rvooo/insts"

// fetch reads up to FetchWidth instruction words starting at pc, decodes
// each, and pushes the result into the Fetch Queue. A decoded store
// contributes both its address (upper) and value (lower) halves so later
// stages never special-case split stores differently from any other
// multi-entry bundle member.
func (p *Pipeline) fetch() {
	if p.halted {
		return
	}

	for i := uint64(0); i < p.cfg.FetchWidth; i++ {
		word := uint32(p.mem.Read8(p.pc, 4))
		inst := p.decoder.Decode(word, p.pc)
		if inst.IsFPOp() && !p.cfg.RISCVEnableFPU {
			inst.FetchException = insts.FetchExceptionFPDisabled
		}

		p.fetchQ.Push(inst)
		if inst.SplitStore {
			p.fetchQ.Push(inst.LowerHalf())
		}

		if inst.IsBranch() {
			// Stop fetching after a control-transfer instruction; the
			// pipeline does not model a taken-branch fetch redirect
			// before the branch itself resolves.
			p.pc += 4
			break
		}
		p.pc += 4
	}
}

// rename1 moves a ready bundle out of the Fetch Queue into the latch
// Rename2 consumes next cycle. It only checks Fetch Queue occupancy:
// register, branch-checkpoint, and structural stalls are Rename2's and
// Dispatch's concern.
func (p *Pipeline) rename1() {
	if p.nextFL.Valid {
		// Rename2 (or backpressure from Dispatch) is holding the current
		// bundle for a retry; don't clobber it with a new pop.
		return
	}

	width := p.cfg.DispatchWidth
	if !p.fetchQ.BundleReady(width) {
		return
	}
	bundle := p.fetchQ.Pop(width)
	p.nextFL = fetchLatch{Valid: true, Bundle: bundle}
}
