// Package lsu implements the Load/Store Unit: load and store queues with
// wraparound phase bits for age ordering, checkpoint/restore for branch
// misprediction recovery, and a cache-backed memory hierarchy giving loads
// and stores genuine hit/miss timing (spec.md §1 abstracts caches away from
// the core's own structures but still wants the LSU itself to have real
// timing, which is exactly the division of labor the teacher's
// timing/cache package draws against its ARM64 core).
package lsu

import (
	"github.com/brassfork/rvooo/cache"
	"github.com/brassfork/rvooo/trap"
)

// loadEntry is one Load Queue slot. seq is this load's program-order
// sequence number, assigned at Dispatch, used to tell whether a given
// Store Queue entry is older or younger than it for disambiguation.
type loadEntry struct {
	valid     bool
	addr      uint64
	size      uint8
	signed    bool
	branch    uint64
	pending   bool
	value     uint64
	addrValid bool
	seq       uint64
}

// storeEntry is one Store Queue slot. A split store occupies one slot
// shared by its address-producing (upper) and value-producing (lower)
// halves; AddrValid/ValueValid track which half has arrived. seq mirrors
// loadEntry.seq.
type storeEntry struct {
	valid      bool
	addrValid  bool
	valueValid bool
	addr       uint64
	size       uint8
	value      uint64
	branch     uint64
	seq        uint64
}

// Checkpoint captures the LQ/SQ (index, phase) state at a branch dispatch,
// restored verbatim on a mispredict per spec.md §6's
// "LSU.checkpoint / LSU.restore" contract.
type Checkpoint struct {
	lqTail, lqPhase int
	sqTail, sqPhase int
}

// LSU is the load/store unit.
type LSU struct {
	lq      []loadEntry
	lqHead  int
	lqTail  int
	lqPhase int // increments each time lqTail wraps past 0

	sq      []storeEntry
	sqHead  int
	sqTail  int
	sqPhase int

	dcache *cache.Cache

	// seq is a monotonically increasing program-order counter, stamped
	// into each allocated LQ/SQ entry at Dispatch so a load and a store
	// can be age-compared across their separate rings for
	// memory-dependence disambiguation.
	seq uint64
}

// Option configures an LSU at construction.
type Option func(*LSU)

// WithLoadQueueSize sets the Load Queue capacity.
func WithLoadQueueSize(n int) Option {
	return func(l *LSU) { l.lq = make([]loadEntry, n) }
}

// WithStoreQueueSize sets the Store Queue capacity.
func WithStoreQueueSize(n int) Option {
	return func(l *LSU) { l.sq = make([]storeEntry, n) }
}

// WithCache attaches a data cache; without one, every access is a hit with
// zero latency, useful for unit tests that do not care about timing.
func WithCache(c *cache.Cache) Option {
	return func(l *LSU) { l.dcache = c }
}

// New creates an LSU with 16-entry LQ/SQ by default.
func New(opts ...Option) *LSU {
	l := &LSU{
		lq: make([]loadEntry, 16),
		sq: make([]storeEntry, 16),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LSU) lqOccupied() int {
	if l.lqTail >= l.lqHead {
		return l.lqTail - l.lqHead
	}
	return len(l.lq) - l.lqHead + l.lqTail
}

func (l *LSU) sqOccupied() int {
	if l.sqTail >= l.sqHead {
		return l.sqTail - l.sqHead
	}
	return len(l.sq) - l.sqHead + l.sqTail
}

// Stall reports whether the LSU cannot accept nl loads and ns stores this
// cycle.
func (l *LSU) Stall(nl, ns uint64) bool {
	lqFree := uint64(len(l.lq) - l.lqOccupied())
	sqFree := uint64(len(l.sq) - l.sqOccupied())
	return lqFree < nl || sqFree < ns
}

// Dispatch allocates queue entries for one memory op. isSplitLower reuses
// the most recently allocated Store Queue slot rather than allocating a
// new one, matching spec.md §6's split-store slot-sharing rule. It returns
// the load-queue index (-1 if not a load) and store-queue index (-1 if not
// a store) to be recorded in the Payload Buffer entry.
func (l *LSU) Dispatch(isLoad, isStore, isSplitLower bool, branchMask uint64) (lqIndex, sqIndex int) {
	lqIndex, sqIndex = -1, -1
	seq := l.seq
	l.seq++

	if isLoad {
		lqIndex = l.lqTail
		l.lq[l.lqTail] = loadEntry{valid: true, branch: branchMask, seq: seq}
		l.advanceLQTail()
	}

	if isStore {
		if isSplitLower {
			sqIndex = l.lastSQIndex()
		} else {
			sqIndex = l.sqTail
			l.sq[l.sqTail] = storeEntry{valid: true, branch: branchMask, seq: seq}
			l.advanceSQTail()
		}
	}

	return lqIndex, sqIndex
}

func (l *LSU) lastSQIndex() int {
	idx := l.sqTail - 1
	if idx < 0 {
		idx = len(l.sq) - 1
	}
	return idx
}

func (l *LSU) advanceLQTail() {
	l.lqTail++
	if l.lqTail == len(l.lq) {
		l.lqTail = 0
		l.lqPhase++
	}
}

func (l *LSU) advanceSQTail() {
	l.sqTail++
	if l.sqTail == len(l.sq) {
		l.sqTail = 0
		l.sqPhase++
	}
}

// LoadAddr submits a load's computed address. On a cache hit it returns
// the loaded value immediately; on a miss, or when waitOlderStores holds
// it back pending an older store's address (memory-dependence
// disambiguation, spec.md §4.3/§6), the entry is marked pending and the
// caller must poll LoadUnstall in later cycles.
func (l *LSU) LoadAddr(lqIndex int, addr uint64, size uint8, signed, waitOlderStores bool) (hit bool, value uint64) {
	e := &l.lq[lqIndex]
	e.addr, e.size, e.signed, e.addrValid = addr, size, signed, true

	if waitOlderStores && l.hasUnresolvedOlderStore(lqIndex) {
		e.pending = true
		return false, 0
	}

	res := l.read(addr, int(size))
	if !res.Hit {
		e.pending = true
		return false, 0
	}

	value = finishLoad(res.Data, size, signed)
	e.value = value
	return true, value
}

// hasUnresolvedOlderStore reports whether any Store Queue entry dispatched
// before the load at lqIndex has not yet had its address resolved.
func (l *LSU) hasUnresolvedOlderStore(lqIndex int) bool {
	seq := l.lq[lqIndex].seq
	for i := range l.sq {
		se := &l.sq[i]
		if se.valid && se.seq < seq && !se.addrValid {
			return true
		}
	}
	return false
}

// LoadUnstall checks every pending load once per cycle and returns the
// first one whose miss has since resolved to a hit and whose blocking
// older stores, if any, have all resolved their addresses.
func (l *LSU) LoadUnstall() (lqIndex int, value uint64, ok bool) {
	for i := range l.lq {
		e := &l.lq[i]
		if !e.valid || !e.pending {
			continue
		}
		if l.hasUnresolvedOlderStore(i) {
			continue
		}
		res := l.read(e.addr, int(e.size))
		if res.Hit {
			e.pending = false
			e.value = finishLoad(res.Data, e.size, e.signed)
			return i, e.value, true
		}
	}
	return 0, 0, false
}

func finishLoad(raw uint64, size uint8, signed bool) uint64 {
	if !signed {
		return raw
	}
	shift := 64 - uint(size)*8
	return uint64((int64(raw) << shift) >> shift)
}

// StoreAddr submits the address half of a store and reports a younger
// load whose address was already submitted and overlaps this store's —
// whether that load has read memory or is still pending — the
// memory-dependence violation
// spec.md §1/§8 names as a THE-CORE deliverable. The caller must squash
// and replay the reported load.
func (l *LSU) StoreAddr(sqIndex int, addr uint64, size uint8) (violatedLQIndex int, violated bool) {
	e := &l.sq[sqIndex]
	e.addr, e.size, e.addrValid = addr, size, true

	for i := range l.lq {
		le := &l.lq[i]
		if !le.valid || !le.addrValid || le.seq <= e.seq {
			continue
		}
		if overlaps(addr, size, le.addr, le.size) {
			return i, true
		}
	}
	return 0, false
}

// overlaps reports whether the byte ranges [addr1, addr1+size1) and
// [addr2, addr2+size2) intersect.
func overlaps(addr1 uint64, size1 uint8, addr2 uint64, size2 uint8) bool {
	end1 := addr1 + uint64(size1)
	end2 := addr2 + uint64(size2)
	return addr1 < end2 && addr2 < end1
}

// StoreValue submits the value half of a store.
func (l *LSU) StoreValue(sqIndex int, value uint64) {
	e := &l.sq[sqIndex]
	e.value, e.valueValid = value, true
}

// Commit writes a store's value to memory at retire, once both address and
// value have arrived. It returns a non-zero-Cause trap if the access
// faults; spec.md §6 folds this into the AL head's commit step.
func (l *LSU) Commit(sqIndex int, pc uint64) trap.Trap {
	e := &l.sq[sqIndex]
	if !e.addrValid || !e.valueValid {
		return trap.Trap{}
	}
	if e.addr%uint64(e.size) != 0 {
		return trap.StoreAddressMisaligned(pc, e.addr)
	}
	l.write(e.addr, int(e.size), e.value)
	l.advanceSQHead()
	return trap.Trap{}
}

func (l *LSU) advanceSQHead() {
	l.sqHead++
	if l.sqHead == len(l.sq) {
		l.sqHead = 0
	}
}

// CommitLoad retires a load's LQ slot, advancing the head.
func (l *LSU) CommitLoad() {
	l.lqHead++
	if l.lqHead == len(l.lq) {
		l.lqHead = 0
	}
}

// AMO performs an atomic read-modify-write through the data cache at
// retire, bypassing the LQ/SQ: spec.md §4.7 runs the AMO's RMW at Retire
// rather than Execute, so there is no address/value split to track the way
// a plain store has. combine computes the new value from the old one
// (e.g. addition for AMOADD.W); it returns the pre-RMW value, the value
// the destination register receives.
func (l *LSU) AMO(addr uint64, size uint8, pc uint64, combine func(old uint64) uint64) (old uint64, tr trap.Trap) {
	if addr%uint64(size) != 0 {
		return 0, trap.StoreAddressMisaligned(pc, addr)
	}
	res := l.read(addr, int(size))
	old = res.Data
	l.write(addr, int(size), combine(old))
	return old, trap.Trap{}
}

func (l *LSU) read(addr uint64, size int) cache.AccessResult {
	if l.dcache == nil {
		return cache.AccessResult{Hit: true}
	}
	return l.dcache.Read(addr, size)
}

func (l *LSU) write(addr uint64, size int, value uint64) {
	if l.dcache == nil {
		return
	}
	l.dcache.Write(addr, size, value)
}

// Checkpoint captures the current LQ/SQ tail state for later restore.
func (l *LSU) Checkpoint() Checkpoint {
	return Checkpoint{
		lqTail: l.lqTail, lqPhase: l.lqPhase,
		sqTail: l.sqTail, sqPhase: l.sqPhase,
	}
}

// Restore rolls the LQ/SQ tails back to a captured checkpoint, discarding
// every entry allocated since, on a branch mispredict.
func (l *LSU) Restore(cp Checkpoint) {
	l.lqTail, l.lqPhase = cp.lqTail, cp.lqPhase
	l.sqTail, l.sqPhase = cp.sqTail, cp.sqPhase
	for i := range l.lq {
		if !entryBetween(i, l.lqHead, l.lqTail, len(l.lq)) {
			l.lq[i] = loadEntry{}
		}
	}
	for i := range l.sq {
		if !entryBetween(i, l.sqHead, l.sqTail, len(l.sq)) {
			l.sq[i] = storeEntry{}
		}
	}
}

// entryBetween reports whether index i lies in the occupied ring range
// [head, tail) of a ring of the given length.
func entryBetween(i, head, tail, length int) bool {
	if head <= tail {
		return i >= head && i < tail
	}
	return i >= head || i < tail
}

// Flush empties both queues, used on a full pipeline squash.
func (l *LSU) Flush() {
	for i := range l.lq {
		l.lq[i] = loadEntry{}
	}
	for i := range l.sq {
		l.sq[i] = storeEntry{}
	}
	l.lqHead, l.lqTail, l.lqPhase = 0, 0, 0
	l.sqHead, l.sqTail, l.sqPhase = 0, 0, 0
}
