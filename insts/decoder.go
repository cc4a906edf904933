package insts

// Decoder decodes RISC-V-like machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit instruction word fetched from PC.
// It returns an Instruction with FetchException set to
// FetchExceptionIllegalInstruction for any encoding it does not recognize,
// rather than returning nil: the core never sees a nil Instruction once it
// has left the fetch queue.
func (d *Decoder) Decode(word uint32, pc uint64) *Instruction {
	inst := &Instruction{PC: pc}

	opcode := word & 0x7f
	rd := uint8((word >> 7) & 0x1f)
	funct3 := uint8((word >> 12) & 0x7)
	rs1 := uint8((word >> 15) & 0x1f)
	rs2 := uint8((word >> 20) & 0x1f)
	funct7 := uint8((word >> 25) & 0x7f)

	switch opcode {
	case 0x33: // OP: register-register
		d.decodeOpReg(inst, funct3, funct7, rd, rs1, rs2)
	case 0x13: // OP-IMM: register-immediate
		d.decodeOpImm(inst, word, funct3, rd, rs1)
	case 0x37: // LUI
		inst.Op = OpLUI
		inst.Format = FormatU
		inst.Rd = rd
		inst.Imm = signExtend(int64(word&0xfffff000), 32)
	case 0x17: // AUIPC
		inst.Op = OpAUIPC
		inst.Format = FormatU
		inst.Rd = rd
		inst.Imm = signExtend(int64(word&0xfffff000), 32)
	case 0x6f: // JAL
		inst.Op = OpJAL
		inst.Format = FormatJ
		inst.Rd = rd
		inst.Imm = decodeJImm(word)
	case 0x67: // JALR
		inst.Op = OpJALR
		inst.Format = FormatI
		inst.Rd = rd
		inst.Rs1 = rs1
		inst.Imm = signExtend(int64(word)>>20, 12)
	case 0x63: // BRANCH
		d.decodeBranch(inst, word, funct3, rs1, rs2)
	case 0x03: // LOAD
		d.decodeLoad(inst, funct3, rd, rs1, word)
	case 0x23: // STORE
		d.decodeStore(inst, funct3, rs1, rs2, word)
	case 0x2f: // AMO
		d.decodeAMO(inst, funct3, funct7, rd, rs1, rs2)
	case 0x73: // SYSTEM
		d.decodeSystem(inst, word, funct3, rd, rs1)
	default:
		inst.Op = OpUnknown
		inst.FetchException = FetchExceptionIllegalInstruction
	}

	return inst
}

func (d *Decoder) decodeOpReg(inst *Instruction, funct3, funct7, rd, rs1, rs2 uint8) {
	inst.Format = FormatR
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Rs2 = rs2

	switch {
	case funct7 == 0x01:
		switch funct3 {
		case 0x0:
			inst.Op = OpMUL
		case 0x4:
			inst.Op = OpDIV
		case 0x6:
			inst.Op = OpREM
		default:
			inst.FetchException = FetchExceptionIllegalInstruction
		}
	default:
		switch funct3 {
		case 0x0:
			if funct7 == 0x20 {
				inst.Op = OpSUB
			} else {
				inst.Op = OpADD
			}
		case 0x1:
			inst.Op = OpSLL
		case 0x2:
			inst.Op = OpSLT
		case 0x3:
			inst.Op = OpSLTU
		case 0x4:
			inst.Op = OpXOR
		case 0x5:
			if funct7 == 0x20 {
				inst.Op = OpSRA
			} else {
				inst.Op = OpSRL
			}
		case 0x6:
			inst.Op = OpOR
		case 0x7:
			inst.Op = OpAND
		}
	}
}

func (d *Decoder) decodeOpImm(inst *Instruction, word uint32, funct3, rd, rs1 uint8) {
	inst.Format = FormatI
	inst.Rd = rd
	inst.Rs1 = rs1
	imm := signExtend(int64(word)>>20, 12)
	shamt := uint8((word >> 20) & 0x3f)
	funct7 := uint8((word >> 26) & 0x3f)

	switch funct3 {
	case 0x0:
		inst.Op = OpADDI
		inst.Imm = imm
	case 0x1:
		inst.Op = OpSLLI
		inst.Imm = int64(shamt)
	case 0x2:
		inst.Op = OpSLTI
		inst.Imm = imm
	case 0x3:
		inst.Op = OpSLTIU
		inst.Imm = imm
	case 0x4:
		inst.Op = OpXORI
		inst.Imm = imm
	case 0x5:
		if funct7 == 0x10 {
			inst.Op = OpSRAI
		} else {
			inst.Op = OpSRLI
		}
		inst.Imm = int64(shamt)
	case 0x6:
		inst.Op = OpORI
		inst.Imm = imm
	case 0x7:
		inst.Op = OpANDI
		inst.Imm = imm
	}
}

func (d *Decoder) decodeBranch(inst *Instruction, word uint32, funct3, rs1, rs2 uint8) {
	inst.Format = FormatB
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.Imm = decodeBImm(word)

	switch funct3 {
	case 0x0:
		inst.Op = OpBEQ
	case 0x1:
		inst.Op = OpBNE
	case 0x4:
		inst.Op = OpBLT
	case 0x5:
		inst.Op = OpBGE
	case 0x6:
		inst.Op = OpBLTU
	case 0x7:
		inst.Op = OpBGEU
	default:
		inst.FetchException = FetchExceptionIllegalInstruction
	}
}

func (d *Decoder) decodeLoad(inst *Instruction, funct3, rd, rs1 uint8, word uint32) {
	inst.Format = FormatI
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Imm = signExtend(int64(word)>>20, 12)

	switch funct3 {
	case 0x0:
		inst.Op, inst.MemSize, inst.MemSigned = OpLB, 1, true
	case 0x1:
		inst.Op, inst.MemSize, inst.MemSigned = OpLH, 2, true
	case 0x2:
		inst.Op, inst.MemSize, inst.MemSigned = OpLW, 4, true
	case 0x3:
		inst.Op, inst.MemSize, inst.MemSigned = OpLD, 8, false
	case 0x4:
		inst.Op, inst.MemSize, inst.MemSigned = OpLBU, 1, false
	case 0x5:
		inst.Op, inst.MemSize, inst.MemSigned = OpLHU, 2, false
	case 0x6:
		inst.Op, inst.MemSize, inst.MemSigned = OpLWU, 4, false
	default:
		inst.FetchException = FetchExceptionIllegalInstruction
	}
}

// decodeStore fills in the address (upper) half of a split store; LowerHalf
// derives the value (lower) half from it. Fetch pushes that half into the
// Fetch Queue right after the upper one, and Rename2 links the two Payload
// Buffer entries by Sibling (pay.Buffer.AllocSplitPair) rather than by
// slot adjacency.
func (d *Decoder) decodeStore(inst *Instruction, funct3, rs1, rs2 uint8, word uint32) {
	inst.Format = FormatS
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.Imm = decodeSImm(word)
	inst.Split = true
	inst.SplitStore = true
	inst.Upper = true

	switch funct3 {
	case 0x0:
		inst.Op, inst.MemSize = OpSB, 1
	case 0x1:
		inst.Op, inst.MemSize = OpSH, 2
	case 0x2:
		inst.Op, inst.MemSize = OpSW, 4
	case 0x3:
		inst.Op, inst.MemSize = OpSD, 8
	default:
		inst.FetchException = FetchExceptionIllegalInstruction
	}
}

// LowerHalf returns the value-producing half of a split store, sharing the
// address/LQ-SQ bookkeeping fields with the upper half but carrying no
// source other than Rs2 (the value to store).
func (i *Instruction) LowerHalf() *Instruction {
	lower := *i
	lower.Upper = false
	lower.Rs1 = 0
	return &lower
}

func (d *Decoder) decodeAMO(inst *Instruction, funct3, funct7, rd, rs1, rs2 uint8) {
	inst.Format = FormatAMO
	inst.Rd = rd
	inst.Rs1 = rs1
	inst.Rs2 = rs2
	inst.MemSize = 4
	inst.Aq = funct7&0x02 != 0
	inst.Rl = funct7&0x01 != 0

	if funct3 != 0x2 {
		inst.FetchException = FetchExceptionIllegalInstruction
		return
	}

	switch funct7 >> 2 {
	case 0x00:
		inst.Op = OpAMOADDW
	case 0x01:
		inst.Op = OpAMOSWAPW
	case 0x02:
		inst.Op = OpLRW
	case 0x03:
		inst.Op = OpSCW
	default:
		inst.FetchException = FetchExceptionIllegalInstruction
	}
}

func (d *Decoder) decodeSystem(inst *Instruction, word uint32, funct3, rd, rs1 uint8) {
	inst.Format = FormatSystem
	inst.Rd = rd
	inst.Rs1 = rs1

	switch funct3 {
	case 0x0:
		imm := uint16((word >> 20) & 0xfff)
		inst.Funct12 = imm
		if imm == Funct12ECALL {
			inst.Op = OpECALL
		} else if imm == Funct12EBREAK {
			inst.Op = OpEBREAK
		} else {
			inst.FetchException = FetchExceptionIllegalInstruction
		}
	case 0x1:
		inst.Op = OpCSRRW
		inst.CSR = uint16((word >> 20) & 0xfff)
	case 0x2:
		inst.Op = OpCSRRS
		inst.CSR = uint16((word >> 20) & 0xfff)
	case 0x3:
		inst.Op = OpCSRRC
		inst.CSR = uint16((word >> 20) & 0xfff)
	default:
		inst.FetchException = FetchExceptionIllegalInstruction
	}
}

// signExtend sign-extends the low `bits` bits of v.
func signExtend(v int64, bits uint) int64 {
	shift := 64 - bits
	return (v << shift) >> shift
}

func decodeJImm(word uint32) int64 {
	imm20 := (word >> 31) & 0x1
	imm10_1 := (word >> 21) & 0x3ff
	imm11 := (word >> 20) & 0x1
	imm19_12 := (word >> 12) & 0xff

	raw := (imm20 << 20) | (imm19_12 << 12) | (imm11 << 11) | (imm10_1 << 1)
	return signExtend(int64(raw), 21)
}

func decodeBImm(word uint32) int64 {
	imm12 := (word >> 31) & 0x1
	imm10_5 := (word >> 25) & 0x3f
	imm4_1 := (word >> 8) & 0xf
	imm11 := (word >> 7) & 0x1

	raw := (imm12 << 12) | (imm11 << 11) | (imm10_5 << 5) | (imm4_1 << 1)
	return signExtend(int64(raw), 13)
}

func decodeSImm(word uint32) int64 {
	imm11_5 := (word >> 25) & 0x7f
	imm4_0 := (word >> 7) & 0x1f
	raw := (imm11_5 << 5) | imm4_0
	return signExtend(int64(raw), 12)
}
