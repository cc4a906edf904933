// Package renamer implements the register renaming core of the pipeline:
// the Rename Map Table, Architectural Map Table, Free List, Active List,
// Global Branch Mask, and Branch Checkpoints, together with the
// rename/dispatch/schedule/writeback/retire/squash protocol the rest of
// the pipeline drives it through.
//
// The Renamer owns every invariant in spec.md §3 and §8. It never
// recovers from a violated precondition (an empty Free List handed to
// RenameRdst, a double Commit, ...): those are caller bugs, enforced by
// the stall_* predicates, and surfaced as a FatalError panic rather than
// an error return.
package renamer

import "math/bits"

// Renamer is the core register-renaming state machine.
type Renamer struct {
	nLogRegs  uint64
	nPhysRegs uint64
	nBranches uint64

	rmt []uint64
	amt []uint64

	free   freeList
	active activeList

	prf      []uint64
	prfReady []bool

	gbm         uint64
	checkpoints []checkpoint

	mispredictHook func(alIndex, branchID uint64)
}

// New creates a Renamer for nLogRegs logical registers, nPhysRegs
// physical registers, and up to nBranches in-flight checkpointed
// branches (1 <= nBranches <= 64). The initial state has RMT==AMT as the
// identity mapping over the first nLogRegs physical registers, and every
// other physical register free and ready.
func New(nLogRegs, nPhysRegs, nBranches uint64, opts ...Option) *Renamer {
	if nPhysRegs <= nLogRegs {
		fatal("renamer: n_phys_regs must exceed n_log_regs")
	}
	if nBranches < 1 || nBranches > 64 {
		fatal("renamer: n_branches must be in [1, 64]")
	}

	r := &Renamer{
		nLogRegs:  nLogRegs,
		nPhysRegs: nPhysRegs,
		nBranches: nBranches,
		rmt:       make([]uint64, nLogRegs),
		amt:       make([]uint64, nLogRegs),
		prf:       make([]uint64, nPhysRegs),
		prfReady:  make([]bool, nPhysRegs),
	}

	freeRegs := make([]uint64, nPhysRegs-nLogRegs)
	for l := uint64(0); l < nLogRegs; l++ {
		r.rmt[l] = l
		r.amt[l] = l
		r.prfReady[l] = true
	}
	for i := range freeRegs {
		p := nLogRegs + uint64(i)
		freeRegs[i] = p
		r.prfReady[p] = true
	}

	r.free = newFreeList(freeRegs)
	r.active = newActiveList(nPhysRegs - nLogRegs)
	r.checkpoints = newCheckpoints(nBranches, nLogRegs)

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// ---- Rename stage ----

// StallReg reports whether fewer than n physical registers are free.
func (r *Renamer) StallReg(n uint64) bool {
	return r.free.stall(n)
}

// StallBranch reports whether fewer than n checkpoint slots are free.
func (r *Renamer) StallBranch(n uint64) bool {
	free := r.nBranches - uint64(bits.OnesCount64(r.gbm))
	return free < n
}

// GetBranchMask returns the current GBM, to be captured as a renaming
// instruction's branch mask.
func (r *Renamer) GetBranchMask() uint64 {
	return r.gbm
}

// RenameRsrc translates a logical source register through the RMT.
func (r *Renamer) RenameRsrc(logReg uint64) uint64 {
	return r.rmt[logReg]
}

// RenameRdst allocates a fresh physical register for a logical
// destination, clears its ready bit, and updates the RMT. Precondition:
// StallReg(1) is false.
func (r *Renamer) RenameRdst(logReg uint64) uint64 {
	if r.free.stall(1) {
		fatal("renamer: RenameRdst called with an empty free list")
	}
	p := r.free.pop()
	r.rmt[logReg] = p
	r.prfReady[p] = false
	return p
}

// Checkpoint allocates the lowest free GBM bit to a new branch,
// snapshots RMT/Free-List-head/GBM into its checkpoint record, and
// returns the branch ID (the GBM bit position). Precondition:
// StallBranch(1) is false.
func (r *Renamer) Checkpoint() uint64 {
	if r.StallBranch(1) {
		fatal("renamer: Checkpoint called with no free GBM bit")
	}
	b := uint64(bits.TrailingZeros64(^r.gbm))
	r.gbm |= 1 << b

	cp := &r.checkpoints[b]
	copy(cp.rmt, r.rmt)
	cp.freeListHead = r.free.head
	cp.gbm = r.gbm

	return b
}

// ---- Dispatch stage ----

// StallDispatch reports whether fewer than n Active List slots are free.
func (r *Renamer) StallDispatch(n uint64) bool {
	return r.active.stall(n)
}

// DispatchInst appends an Active List record at the tail and returns its
// index. Precondition: StallDispatch(1) is false.
func (r *Renamer) DispatchInst(destValid bool, logReg, physReg uint64, load, store, branch, amo, csr bool, pc uint64) uint64 {
	if r.active.stall(1) {
		fatal("renamer: DispatchInst called with a full Active List")
	}
	return r.active.dispatch(ALEntry{
		PC:        pc,
		DestValid: destValid,
		LogDst:    logReg,
		PhysDst:   physReg,
		Load:      load,
		Store:     store,
		Branch:    branch,
		AMO:       amo,
		CSR:       csr,
	})
}

// ---- Schedule stage ----

// IsReady reports the ready bit of physReg.
func (r *Renamer) IsReady(physReg uint64) bool {
	return r.prfReady[physReg]
}

// ClearReady clears the ready bit of physReg.
func (r *Renamer) ClearReady(physReg uint64) {
	r.prfReady[physReg] = false
}

// SetReady sets the ready bit of physReg.
func (r *Renamer) SetReady(physReg uint64) {
	r.prfReady[physReg] = true
}

// ---- Register Read / Writeback ----

// Read returns the value held in physReg.
func (r *Renamer) Read(physReg uint64) uint64 {
	return r.prf[physReg]
}

// Write stores value into physReg.
func (r *Renamer) Write(physReg, value uint64) {
	r.prf[physReg] = value
}

// ReadLogical returns the architecturally-committed value of logReg, i.e.
// the PRF entry the AMT currently maps it to. Retire uses this to read a
// syscall's argument registers, which by definition are only ever
// produced by already-committed instructions.
func (r *Renamer) ReadLogical(logReg uint64) uint64 {
	return r.prf[r.amt[logReg]]
}

// SetComplete marks the AL entry at alIndex completed.
func (r *Renamer) SetComplete(alIndex uint64) {
	r.active.entries[alIndex].Completed = true
}

// SetException marks the AL entry at alIndex as having raised an
// exception.
func (r *Renamer) SetException(alIndex uint64) {
	r.active.entries[alIndex].Exception = true
}

// SetLoadViolation marks the AL entry at alIndex as a load-ordering
// violation.
func (r *Renamer) SetLoadViolation(alIndex uint64) {
	r.active.entries[alIndex].LoadViolation = true
}

// SetBranchMisprediction marks the AL entry at alIndex. Not used by
// approach-#5 recovery (Writeback resolves branches immediately); kept
// for deferred-recovery callers.
func (r *Renamer) SetBranchMisprediction(alIndex uint64) {
	r.active.entries[alIndex].BranchMisprediction = true
}

// SetValueMisprediction marks the AL entry at alIndex.
func (r *Renamer) SetValueMisprediction(alIndex uint64) {
	r.active.entries[alIndex].ValueMisprediction = true
}

// GetException reports the exception bit of the AL entry at alIndex.
func (r *Renamer) GetException(alIndex uint64) bool {
	return r.active.entries[alIndex].Exception
}

// Tail returns the Active List's current tail index (the ring slot the
// next DispatchInst call would use). The pipeline reads this before a
// branch resolution to know which index range Resolve's rollback is
// about to discard, so it can free the matching Payload Buffer entries.
func (r *Renamer) Tail() uint64 {
	return r.active.tail
}

// Cap returns the Active List's ring capacity.
func (r *Renamer) Cap() uint64 {
	return r.active.cap
}

// Head returns the Active List's current head index (the oldest
// in-flight instruction, or the slot the next dispatch would occupy if
// the list is empty). The pipeline reads this alongside Tail before a
// full squash to know the whole in-flight range whose Payload Buffer
// entries must be freed, since Squash discards the Active List without
// any Payload Buffer visibility of its own.
func (r *Renamer) Head() uint64 {
	return r.active.head
}

// Resolve processes branch resolution for the branch at alIndex/branchID.
//
// On a correct prediction, it clears branchID's bit from the live GBM and
// from every checkpoint's stored GBM (including checkpoints allocated
// after this branch; harmless, since those will be discarded by any
// later misprediction that rolls back past this point).
//
// On a misprediction, it restores the GBM from the branch's checkpoint
// (with branchID's bit cleared), rolls the Active List tail back to just
// after alIndex, rolls the Free List head back to the checkpointed head,
// marks every now-free physical register ready, and restores the RMT
// from the checkpoint's shadow copy. It does not set the AL entry's
// branch-misprediction bit: recovery happens immediately here, so no
// second squash is needed when the branch reaches the AL head.
func (r *Renamer) Resolve(alIndex, branchID uint64, correct bool) {
	bit := uint64(1) << branchID

	if correct {
		r.gbm &^= bit
		for i := range r.checkpoints {
			r.checkpoints[i].gbm &^= bit
		}
		return
	}

	cp := r.checkpoints[branchID]
	r.gbm = cp.gbm &^ bit

	r.active.rollbackTail(alIndex)

	freed := r.free.restoreHead(cp.freeListHead)
	for _, p := range freed {
		r.prfReady[p] = true
	}

	copy(r.rmt, cp.rmt)

	if r.mispredictHook != nil {
		r.mispredictHook(alIndex, branchID)
	}
}

// ---- Retire stage ----

// PrecommitInfo snapshots the Active List head for the retire stage's
// decision logic. It is the Go analogue of the original's by-reference
// out parameters.
type PrecommitInfo struct {
	ALIndex             uint64
	Completed           bool
	Exception           bool
	LoadViolation       bool
	BranchMisprediction bool
	ValueMisprediction  bool
	Load                bool
	Store               bool
	Branch              bool
	AMO                 bool
	CSR                 bool
	PC                  uint64
}

// Precommit examines the Active List head without mutating anything. It
// returns false if the Active List is empty.
func (r *Renamer) Precommit() (PrecommitInfo, bool) {
	if r.active.empty() {
		return PrecommitInfo{}, false
	}
	e := r.active.headEntry()
	return PrecommitInfo{
		ALIndex:             r.active.head,
		Completed:           e.Completed,
		Exception:           e.Exception,
		LoadViolation:       e.LoadViolation,
		BranchMisprediction: e.BranchMisprediction,
		ValueMisprediction:  e.ValueMisprediction,
		Load:                e.Load,
		Store:               e.Store,
		Branch:              e.Branch,
		AMO:                 e.AMO,
		CSR:                 e.CSR,
		PC:                  e.PC,
	}, true
}

// Commit retires the Active List head. Precondition: the Active List is
// non-empty, its head is completed, and has neither an exception nor a
// load violation — the caller must have checked Precommit first.
func (r *Renamer) Commit() {
	if r.active.empty() {
		fatal("renamer: Commit called with an empty Active List")
	}
	e := r.active.headEntry()
	if !e.Completed || e.Exception || e.LoadViolation {
		fatal("renamer: Commit called on a head entry not ready to commit")
	}

	if e.DestValid {
		old := r.amt[e.LogDst]
		r.free.push(old)
		r.amt[e.LogDst] = e.PhysDst
	}

	r.active.popHead()
}

// Squash performs a full architectural rollback: RMT reverts to AMT, the
// Free List reclaims its entire capacity, every reclaimed register is
// marked ready, the Active List empties, and the GBM clears.
func (r *Renamer) Squash() {
	copy(r.rmt, r.amt)

	for _, p := range r.free.fill() {
		r.prfReady[p] = true
	}

	r.active.clear()
	r.gbm = 0
}
