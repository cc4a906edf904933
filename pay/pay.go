// Package pay implements the Payload Buffer (PAY): the per-inflight-
// instruction scratchpad that threads decoded fields, rename results,
// operand values, LQ/SQ indices, branch ID, Active List index, and trap
// pointer through Rename, Dispatch, Issue, Register-Read, Execute,
// Writeback, and Retire.
//
// spec.md §9 flags that the original models a split store's "lower"
// (value) half as inheriting its LQ/SQ indices via PAY.buf[index+1] —
// relying on the decoder placing split halves in adjacent slots. This
// package avoids that off-by-one hazard: a split store's two Entry
// values are linked by an explicit Sibling index set at allocation time,
// never by positional adjacency.
package pay

import "github.com/brassfork/rvooo/insts"

// Entry is one instruction's scratchpad record.
type Entry struct {
	Valid bool
	Inst  *insts.Instruction

	// Rename results.
	Psrc1, Psrc2   uint64
	Psrc1Valid     bool
	Psrc2Valid     bool
	Pdst           uint64
	PdstValid      bool
	BranchMask     uint64
	BranchID       uint64
	HasCheckpoint  bool

	// Dispatch results.
	ALIndex uint64
	Lane    int

	HasLQ    bool
	HasSQ    bool
	LQIndex  uint64
	LQPhase  bool
	SQIndex  uint64
	SQPhase  bool

	// Split-store linkage (see package doc): Sibling is the pay index of
	// this entry's other half, valid iff IsSplitUpper || IsSplitLower.
	IsSplitUpper bool
	IsSplitLower bool
	Sibling      uint64

	// Operand values captured at Register-Read.
	Src1Val uint64
	Src2Val uint64

	// Result captured at Execute, consumed at Writeback.
	ResultVal  uint64
	HasTrap    bool
	TrapCause  uint8
	TrapPC     uint64
	TrapAddr   uint64

	// Branch outcome captured at Execute, consumed at Writeback for
	// resolution against the Fetch-time prediction.
	BranchTaken  bool
	BranchTarget uint64
}

// Buffer is a fixed-capacity pool of Entry records addressed by opaque
// index. Free slots are kept on a LIFO stack, so indices carry no program
// order; the pipeline keeps its own Active-List-index-to-PAY-index map.
type Buffer struct {
	entries []Entry
	free    []uint64
	freeTop int
}

// New creates a Payload Buffer with the given capacity.
func New(capacity uint64) *Buffer {
	b := &Buffer{
		entries: make([]Entry, capacity),
		free:    make([]uint64, capacity),
	}
	for i := range b.free {
		b.free[i] = uint64(len(b.free) - 1 - i)
	}
	b.freeTop = len(b.free)
	return b
}

// Alloc reserves a free slot and returns its index. It panics if the
// buffer is exhausted; callers must size the buffer for every entry that
// can be live at once (the pipeline allocates at Rename2, ahead of
// Dispatch's Active List check, and sizes it accordingly).
func (b *Buffer) Alloc() uint64 {
	if b.freeTop == 0 {
		panic("pay: buffer exhausted")
	}
	b.freeTop--
	idx := b.free[b.freeTop]
	b.entries[idx] = Entry{Valid: true}
	return idx
}

// AllocSplitPair reserves two slots for a split store's upper (address)
// and lower (value) halves and links them via Sibling.
func (b *Buffer) AllocSplitPair() (upper, lower uint64) {
	upper = b.Alloc()
	lower = b.Alloc()
	b.entries[upper].IsSplitUpper = true
	b.entries[upper].Sibling = lower
	b.entries[lower].IsSplitLower = true
	b.entries[lower].Sibling = upper
	return upper, lower
}

// Get returns a pointer to the entry at idx for in-place mutation.
func (b *Buffer) Get(idx uint64) *Entry {
	return &b.entries[idx]
}

// Free returns idx to the pool.
func (b *Buffer) Free(idx uint64) {
	b.entries[idx] = Entry{}
	b.free[b.freeTop] = idx
	b.freeTop++
}
