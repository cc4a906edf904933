package pipeline

import "github.com/brassfork/rvooo/insts"

// execute advances lane's Execute sub-stage chain by one cycle: every
// in-flight slot shifts one position deeper, and the slot draining out of
// the final sub-stage has its result computed and staged for Writeback —
// except a load left pending in the LSU, which leaves the lane here and is
// finished by loadReplay. registerRead fills nextEX[0] separately, later
// in the same Tick.
func (p *Pipeline) execute(lane int) {
	l := p.lanes[lane]
	depth := len(l.ex)

	drain := l.ex[depth-1]
	if drain.Valid && p.computeResult(drain.Pay) {
		l.nextWB = laneSlot{Valid: true, Pay: drain.Pay}
	}

	for i := depth - 1; i >= 1; i-- {
		l.nextEX[i] = l.ex[i-1]
	}
}

// computeResult fills in a Payload Buffer entry's Execute-stage result:
// ALU arithmetic, address generation plus the LSU handshake for memory
// ops, branch direction/target, or a CSR read-modify-write. AMOs defer
// their read-modify-write to Retire (see lsu.AMO's doc comment) and do
// nothing here beyond existing. It reports false for a load that LoadAddr
// left pending, which must not be staged for Writeback.
func (p *Pipeline) computeResult(payIdx uint64) bool {
	e := p.pay.Get(payIdx)
	inst := e.Inst

	switch {
	case inst.IsBranch():
		taken, target := branchOutcome(inst, inst.PC, e.Src1Val, e.Src2Val)
		e.BranchTaken = taken
		e.BranchTarget = target

	case inst.IsLoad():
		addr := e.Src1Val + uint64(inst.Imm)
		wait := p.waitOlderStores(inst.PC)
		hit, value := p.lsuUnit.LoadAddr(int(e.LQIndex), addr, inst.MemSize, inst.MemSigned, wait)
		if !hit {
			// On a miss, or a disambiguation stall, LoadAddr has marked the
			// entry pending; loadReplay picks the result up out-of-band once
			// it resolves.
			return false
		}
		e.ResultVal = value

	case inst.IsStore():
		addr := e.Src1Val + uint64(inst.Imm)
		if inst.Upper {
			if lqIdx, violated := p.lsuUnit.StoreAddr(int(e.SQIndex), addr, inst.MemSize); violated {
				p.flagLoadViolation(lqIdx)
			}
		} else {
			p.lsuUnit.StoreValue(int(e.SQIndex), e.Src2Val)
		}

	case inst.IsAMO():
		// Handled entirely at Retire.

	case inst.IsCSR():
		e.ResultVal = p.execCSR(inst, e.Src1Val)

	default:
		e.ResultVal = execALU(inst, inst.PC, e.Src1Val, e.Src2Val)
	}
	return true
}

// waitOlderStores decides whether a load at pc must wait for every older,
// not-yet-addressed store before reading memory (spec.md §4.3's
// memory-dependence disambiguation knobs): with speculative disambiguation
// off and no oracle, nothing may speculate past an unresolved store; with
// either on, a load runs ahead unless its own PC was previously recorded
// as a violator by the memory-dependence predictor.
func (p *Pipeline) waitOlderStores(pc uint64) bool {
	if p.cfg.MemDepPred {
		if _, bad := p.memDepPC[pc]; bad {
			return true
		}
	}
	return !p.cfg.SpecDisambig && !p.cfg.OracleDisambig
}

// flagLoadViolation marks the in-flight load at Load Queue index lqIdx as
// a memory-ordering violation once its address is found to overlap an
// older store that resolved its own address too late. Retire discovers
// the flag once the load reaches the Active List head and replays it.
func (p *Pipeline) flagLoadViolation(lqIdx int) {
	payIdx := p.payByLQ[lqIdx]
	e := p.pay.Get(payIdx)
	if !e.Valid {
		return
	}
	p.renamer.SetLoadViolation(e.ALIndex)
}

// execCSR performs a Zicsr read-modify-write against the pipeline's own
// CSR file, returning the pre-modification value the destination
// register receives. This models only the read/modify/write data effect;
// it does not serialize or refetch the way spec.md §7 describes a real
// CSR instruction doing, a simplification recorded in DESIGN.md.
func (p *Pipeline) execCSR(inst *insts.Instruction, rs1Val uint64) uint64 {
	old := p.csr[inst.CSR]
	var next uint64
	switch inst.Op {
	case insts.OpCSRRW:
		next = rs1Val
	case insts.OpCSRRS:
		next = old | rs1Val
	case insts.OpCSRRC:
		next = old &^ rs1Val
	default:
		next = old
	}
	p.csr[inst.CSR] = next
	return old
}
