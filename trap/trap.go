// Package trap models the architectural traps the core can attach to an
// Active List entry. Traps are a tagged variant rather than an
// exception hierarchy: Execute and Retire pattern-match on Cause and
// attach the result directly to the Active List entry, with no
// unwinding (spec.md §9, "Exceptions for control flow").
package trap

// Cause identifies the kind of trap.
type Cause uint8

// Trap causes recognized by the core.
const (
	CauseNone Cause = iota
	CauseInstructionAddressMisaligned
	CauseInstructionAccessFault
	CauseIllegalInstruction
	CauseBreakpoint
	CauseSyscall
	CauseFPDisabled
	CausePrivilegedInstruction
	CauseStoreAddressMisaligned
	CauseStoreAccessFault
	CauseLoadAddressMisaligned
	CauseLoadAccessFault
	// CauseCSRInstruction is the microarchitectural "serialize and
	// refetch the same PC" exception described in spec.md §7; it is not
	// an architectural trap vector, but it flows through the same
	// tagged-variant handle.
	CauseCSRInstruction
)

// Trap is a single trap occurrence, carrying whatever payload its cause
// needs (faulting address, trapping PC). A zero-value Trap (Cause ==
// CauseNone) means "no trap" and is never attached to an Active List
// entry.
type Trap struct {
	Cause   Cause
	PC      uint64
	BadVAddr uint64
}

// Name returns the trap's human-readable name, as used in trace output.
func (t Trap) Name() string {
	switch t.Cause {
	case CauseInstructionAddressMisaligned:
		return "instruction_address_misaligned"
	case CauseInstructionAccessFault:
		return "instruction_access_fault"
	case CauseIllegalInstruction:
		return "illegal_instruction"
	case CauseBreakpoint:
		return "breakpoint"
	case CauseSyscall:
		return "syscall"
	case CauseFPDisabled:
		return "fp_disabled"
	case CausePrivilegedInstruction:
		return "privileged_instruction"
	case CauseStoreAddressMisaligned:
		return "store_address_misaligned"
	case CauseStoreAccessFault:
		return "store_access_fault"
	case CauseLoadAddressMisaligned:
		return "load_address_misaligned"
	case CauseLoadAccessFault:
		return "load_access_fault"
	case CauseCSRInstruction:
		return "csr_instruction"
	default:
		return "none"
	}
}

// Syscall constructs an ECALL trap.
func Syscall(pc uint64) Trap { return Trap{Cause: CauseSyscall, PC: pc} }

// Breakpoint constructs an EBREAK trap.
func Breakpoint(pc uint64) Trap { return Trap{Cause: CauseBreakpoint, PC: pc} }

// InstructionAddressMisaligned constructs a misaligned-fetch trap.
func InstructionAddressMisaligned(pc uint64) Trap {
	return Trap{Cause: CauseInstructionAddressMisaligned, PC: pc, BadVAddr: pc}
}

// InstructionAccessFault constructs a fetch access-fault trap.
func InstructionAccessFault(pc uint64) Trap {
	return Trap{Cause: CauseInstructionAccessFault, PC: pc, BadVAddr: pc}
}

// IllegalInstruction constructs an illegal-instruction trap.
func IllegalInstruction(pc uint64) Trap {
	return Trap{Cause: CauseIllegalInstruction, PC: pc}
}

// FPDisabled constructs a trap for FP use while the FPU is disabled.
func FPDisabled(pc uint64) Trap { return Trap{Cause: CauseFPDisabled, PC: pc} }

// PrivilegedInstruction constructs a trap for a privileged instruction
// used from user mode.
func PrivilegedInstruction(pc uint64) Trap {
	return Trap{Cause: CausePrivilegedInstruction, PC: pc}
}

// StoreAccessFault constructs a store access-fault trap.
func StoreAccessFault(pc, addr uint64) Trap {
	return Trap{Cause: CauseStoreAccessFault, PC: pc, BadVAddr: addr}
}

// StoreAddressMisaligned constructs a misaligned-store trap.
func StoreAddressMisaligned(pc, addr uint64) Trap {
	return Trap{Cause: CauseStoreAddressMisaligned, PC: pc, BadVAddr: addr}
}

// LoadAccessFault constructs a load access-fault trap.
func LoadAccessFault(pc, addr uint64) Trap {
	return Trap{Cause: CauseLoadAccessFault, PC: pc, BadVAddr: addr}
}

// LoadAddressMisaligned constructs a misaligned-load trap.
func LoadAddressMisaligned(pc, addr uint64) Trap {
	return Trap{Cause: CauseLoadAddressMisaligned, PC: pc, BadVAddr: addr}
}

// CSRInstruction constructs the microarchitectural serialize-and-refetch
// exception for CSR instructions.
func CSRInstruction(pc uint64) Trap { return Trap{Cause: CauseCSRInstruction, PC: pc} }
