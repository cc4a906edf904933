// Package emu is the functional reference model: architectural register
// file, flat memory, and a single-instruction Step function with no
// pipelining, no speculation, and no timing. The checker package runs one
// instruction through Step per commit and compares the result against what
// the Active List actually retired, the same role the teacher's ARM64 emu
// package plays for m2sim2's timing core (spec.md §1 calls this an
// external, out-of-scope "golden" simulator; this package is the minimal
// in-tree stand-in the test suite needs to play that role).
package emu

import (
	"github.com/brassfork/rvooo/insts"
	"github.com/brassfork/rvooo/trap"
)

// Emulator holds the architectural state Step operates on.
type Emulator struct {
	Reg *RegFile
	Mem *Memory
	CSR map[uint16]uint64

	exited   bool
	exitCode int
}

// NewEmulator creates a reference machine with PC set to entry.
func NewEmulator(entry uint64, mem *Memory) *Emulator {
	return &Emulator{
		Reg: NewRegFile(entry),
		Mem: mem,
		CSR: make(map[uint16]uint64),
	}
}

// StepResult reports what executing one instruction did, for the checker
// to compare against the committed Active List entry.
type StepResult struct {
	NextPC   uint64
	WroteRd  bool
	RdValue  uint64
	Trap     trap.Trap
	Exited   bool
	ExitCode int
}

// Exited reports whether a prior Step executed an exit syscall.
func (e *Emulator) Exited() bool { return e.exited }

// ExitCode returns the code passed to the exit syscall, valid once Exited
// is true.
func (e *Emulator) ExitCode() int { return e.exitCode }

// Step executes inst against the current architectural state and returns
// what happened. inst.PC must equal the emulator's current PC; Step does
// not check this itself; the checker's peek/compare loop (spec.md §7's
// "checker()") is responsible for keeping oracle and committed-PC in
// lockstep.
func (e *Emulator) Step(inst *insts.Instruction) StepResult {
	pc := inst.PC
	fallthroughPC := pc + 4

	if inst.FetchException != insts.FetchExceptionNone {
		return StepResult{NextPC: fallthroughPC, Trap: fetchTrap(inst)}
	}

	rs1 := e.Reg.Read(inst.Rs1)
	rs2 := e.Reg.Read(inst.Rs2)

	switch {
	case inst.IsBranch():
		return e.stepBranch(inst, pc, fallthroughPC, rs1, rs2)
	case inst.IsLoad():
		return e.stepLoad(inst, pc, fallthroughPC, rs1)
	case inst.IsStore():
		return e.stepStore(inst, pc, fallthroughPC, rs1, rs2)
	case inst.IsAMO():
		return e.stepAMO(inst, pc, fallthroughPC, rs1, rs2)
	case inst.IsCSR():
		return e.stepCSR(inst, pc, fallthroughPC, rs1)
	case inst.IsSyscall():
		return e.stepSyscall(pc, fallthroughPC)
	case inst.IsBreakpoint():
		return StepResult{NextPC: fallthroughPC, Trap: trap.Breakpoint(pc)}
	default:
		return e.stepALU(inst, pc, fallthroughPC, rs1, rs2)
	}
}

func fetchTrap(inst *insts.Instruction) trap.Trap {
	switch inst.FetchException {
	case insts.FetchExceptionMisalignedFetch:
		return trap.InstructionAddressMisaligned(inst.PC)
	case insts.FetchExceptionAccessFault:
		return trap.InstructionAccessFault(inst.PC)
	case insts.FetchExceptionFPDisabled:
		return trap.FPDisabled(inst.PC)
	case insts.FetchExceptionPrivileged:
		return trap.PrivilegedInstruction(inst.PC)
	default:
		return trap.IllegalInstruction(inst.PC)
	}
}

func (e *Emulator) stepALU(inst *insts.Instruction, pc, fallthroughPC uint64, rs1, rs2 uint64) StepResult {
	var result uint64
	switch inst.Op {
	case insts.OpADD, insts.OpADDI:
		result = aluBinary(aluADD, rs1, operand2(inst, rs2))
	case insts.OpSUB:
		result = aluBinary(aluSUB, rs1, rs2)
	case insts.OpAND, insts.OpANDI:
		result = aluBinary(aluAND, rs1, operand2(inst, rs2))
	case insts.OpOR, insts.OpORI:
		result = aluBinary(aluOR, rs1, operand2(inst, rs2))
	case insts.OpXOR, insts.OpXORI:
		result = aluBinary(aluXOR, rs1, operand2(inst, rs2))
	case insts.OpSLT, insts.OpSLTI:
		result = aluBinary(aluSLT, rs1, operand2(inst, rs2))
	case insts.OpSLTU, insts.OpSLTIU:
		result = aluBinary(aluSLTU, rs1, operand2(inst, rs2))
	case insts.OpSLL, insts.OpSLLI:
		result = aluBinary(aluSLL, rs1, operand2(inst, rs2))
	case insts.OpSRL, insts.OpSRLI:
		result = aluBinary(aluSRL, rs1, operand2(inst, rs2))
	case insts.OpSRA, insts.OpSRAI:
		result = aluBinary(aluSRA, rs1, operand2(inst, rs2))
	case insts.OpMUL:
		result = aluBinary(aluMUL, rs1, rs2)
	case insts.OpDIV:
		result = aluBinary(aluDIV, rs1, rs2)
	case insts.OpREM:
		result = aluBinary(aluREM, rs1, rs2)
	case insts.OpLUI:
		result = uint64(inst.Imm)
	case insts.OpAUIPC:
		result = pc + uint64(inst.Imm)
	case insts.OpJAL:
		e.Reg.Write(inst.Rd, fallthroughPC)
		return StepResult{NextPC: uint64(int64(pc) + inst.Imm), WroteRd: true, RdValue: fallthroughPC}
	case insts.OpJALR:
		target := (rs1 + uint64(inst.Imm)) &^ 1
		e.Reg.Write(inst.Rd, fallthroughPC)
		return StepResult{NextPC: target, WroteRd: true, RdValue: fallthroughPC}
	default:
		return StepResult{NextPC: fallthroughPC, Trap: trap.IllegalInstruction(pc)}
	}

	if inst.HasRd() {
		e.Reg.Write(inst.Rd, result)
		return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: result}
	}
	return StepResult{NextPC: fallthroughPC}
}

// operand2 picks Rs2's value for register-register ops or the decoded
// immediate for register-immediate ops, keyed off the instruction's format
// rather than a second copy of the opcode table.
func operand2(inst *insts.Instruction, rs2 uint64) uint64 {
	if inst.Format == insts.FormatI {
		return uint64(inst.Imm)
	}
	return rs2
}

func (e *Emulator) stepBranch(inst *insts.Instruction, pc, fallthroughPC, rs1, rs2 uint64) StepResult {
	var cond int
	switch inst.Op {
	case insts.OpBEQ:
		cond = brEQ
	case insts.OpBNE:
		cond = brNE
	case insts.OpBLT:
		cond = brLT
	case insts.OpBGE:
		cond = brGE
	case insts.OpBLTU:
		cond = brLTU
	case insts.OpBGEU:
		cond = brGEU
	}
	if branchTaken(cond, rs1, rs2) {
		target := uint64(int64(pc) + inst.Imm)
		if target%4 != 0 {
			return StepResult{NextPC: fallthroughPC, Trap: trap.InstructionAddressMisaligned(target)}
		}
		return StepResult{NextPC: target}
	}
	return StepResult{NextPC: fallthroughPC}
}

func (e *Emulator) stepLoad(inst *insts.Instruction, pc, fallthroughPC, rs1 uint64) StepResult {
	addr := rs1 + uint64(inst.Imm)
	raw := e.Mem.Read8(addr, inst.MemSize)
	val := raw
	if inst.MemSigned {
		val = uint64(signExtendBits(int64(raw), int(inst.MemSize)*8))
	}
	e.Reg.Write(inst.Rd, val)
	return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: val}
}

func (e *Emulator) stepStore(inst *insts.Instruction, pc, fallthroughPC, rs1, rs2 uint64) StepResult {
	addr := rs1 + uint64(inst.Imm)
	e.Mem.Write8(addr, inst.MemSize, rs2)
	return StepResult{NextPC: fallthroughPC}
}

func (e *Emulator) stepAMO(inst *insts.Instruction, pc, fallthroughPC, rs1, rs2 uint64) StepResult {
	addr := rs1
	old := e.Mem.Read8(addr, inst.MemSize)
	switch inst.Op {
	case insts.OpLRW:
		e.Reg.Write(inst.Rd, old)
		return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: old}
	case insts.OpSCW:
		e.Mem.Write8(addr, inst.MemSize, rs2)
		e.Reg.Write(inst.Rd, 0)
		return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: 0}
	case insts.OpAMOSWAPW:
		e.Mem.Write8(addr, inst.MemSize, rs2)
	case insts.OpAMOADDW:
		e.Mem.Write8(addr, inst.MemSize, old+rs2)
	}
	e.Reg.Write(inst.Rd, old)
	return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: old}
}

func (e *Emulator) stepCSR(inst *insts.Instruction, pc, fallthroughPC, rs1 uint64) StepResult {
	old := e.CSR[inst.CSR]
	switch inst.Op {
	case insts.OpCSRRW:
		e.CSR[inst.CSR] = rs1
	case insts.OpCSRRS:
		e.CSR[inst.CSR] = old | rs1
	case insts.OpCSRRC:
		e.CSR[inst.CSR] = old &^ rs1
	}
	e.Reg.Write(inst.Rd, old)
	return StepResult{NextPC: fallthroughPC, WroteRd: true, RdValue: old, Trap: trap.CSRInstruction(pc)}
}

// RISC-V Linux-ish syscall numbers the functional model recognizes, enough
// to let a statically linked test program exit cleanly.
const sysExit = 93

func (e *Emulator) stepSyscall(pc, fallthroughPC uint64) StepResult {
	num := e.Reg.Read(17) // a7
	if num == sysExit {
		e.exited = true
		e.exitCode = int(int32(e.Reg.Read(10))) // a0
		return StepResult{NextPC: fallthroughPC, Trap: trap.Syscall(pc), Exited: true, ExitCode: e.exitCode}
	}
	return StepResult{NextPC: fallthroughPC, Trap: trap.Syscall(pc)}
}

func signExtendBits(v int64, bits int) int64 {
	shift := 64 - uint(bits)
	return (v << shift) >> shift
}
