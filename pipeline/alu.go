package pipeline

import "github.com/brassfork/rvooo/insts"

// execALU computes a non-memory instruction's result (for JAL/JALR, the
// link value; their branch outcome comes from branchOutcome). This is
// the timing path's own independent arithmetic, deliberately separate from
// the emu package's functional reference model: the checker package's
// value comes from having two independently written implementations agree,
// not from the pipeline borrowing the oracle's own math.
func execALU(inst *insts.Instruction, pc, rs1, rs2 uint64) uint64 {
	operand2 := rs2
	if inst.Format == insts.FormatI {
		operand2 = uint64(inst.Imm)
	}

	switch inst.Op {
	case insts.OpADD, insts.OpADDI:
		return rs1 + operand2
	case insts.OpSUB:
		return rs1 - operand2
	case insts.OpAND, insts.OpANDI:
		return rs1 & operand2
	case insts.OpOR, insts.OpORI:
		return rs1 | operand2
	case insts.OpXOR, insts.OpXORI:
		return rs1 ^ operand2
	case insts.OpSLT, insts.OpSLTI:
		return boolToU64(int64(rs1) < int64(operand2))
	case insts.OpSLTU, insts.OpSLTIU:
		return boolToU64(rs1 < operand2)
	case insts.OpSLL, insts.OpSLLI:
		return rs1 << (operand2 & 0x3f)
	case insts.OpSRL, insts.OpSRLI:
		return rs1 >> (operand2 & 0x3f)
	case insts.OpSRA, insts.OpSRAI:
		return uint64(int64(rs1) >> (operand2 & 0x3f))
	case insts.OpMUL:
		return rs1 * rs2
	case insts.OpDIV:
		if rs2 == 0 {
			return ^uint64(0)
		}
		return uint64(int64(rs1) / int64(rs2))
	case insts.OpREM:
		if rs2 == 0 {
			return rs1
		}
		return uint64(int64(rs1) % int64(rs2))
	case insts.OpLUI:
		return uint64(inst.Imm)
	case insts.OpAUIPC:
		return pc + uint64(inst.Imm)
	case insts.OpJAL, insts.OpJALR:
		return pc + 4
	default:
		return 0
	}
}

func boolToU64(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// branchOutcome evaluates a conditional branch's direction and target.
func branchOutcome(inst *insts.Instruction, pc, rs1, rs2 uint64) (taken bool, target uint64) {
	switch inst.Op {
	case insts.OpBEQ:
		taken = rs1 == rs2
	case insts.OpBNE:
		taken = rs1 != rs2
	case insts.OpBLT:
		taken = int64(rs1) < int64(rs2)
	case insts.OpBGE:
		taken = int64(rs1) >= int64(rs2)
	case insts.OpBLTU:
		taken = rs1 < rs2
	case insts.OpBGEU:
		taken = rs1 >= rs2
	case insts.OpJAL:
		taken = true
	case insts.OpJALR:
		taken = true
	}

	switch inst.Op {
	case insts.OpJALR:
		target = (rs1 + uint64(inst.Imm)) &^ 1
	default:
		target = uint64(int64(pc) + inst.Imm)
	}
	return taken, target
}
