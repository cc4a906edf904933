package emu

// numRegs is the size of the RISC-V integer register file, x0..x31. x0 is
// hardwired to zero: Read always returns 0 for it and Write is a no-op.
const numRegs = 32

// RegFile is the functional reference model's architectural register file:
// 32 general-purpose integer registers plus the program counter. It carries
// no microarchitectural state (no renaming, no speculation) — it is the
// ground truth the checker package compares committed Active List entries
// against.
type RegFile struct {
	X  [numRegs]uint64
	PC uint64
}

// NewRegFile creates a zeroed register file with PC set to entry.
func NewRegFile(entry uint64) *RegFile {
	return &RegFile{PC: entry}
}

// Read returns the value of logical register r.
func (rf *RegFile) Read(r uint8) uint64 {
	if r == 0 {
		return 0
	}
	return rf.X[r]
}

// Write sets logical register r to v. Writes to x0 are discarded.
func (rf *RegFile) Write(r uint8, v uint64) {
	if r == 0 {
		return
	}
	rf.X[r] = v
}
