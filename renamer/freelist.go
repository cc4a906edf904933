package renamer

// freeList is a circular queue of free physical register numbers, fixed
// at capacity P-L. Size is tracked explicitly rather than derived from
// head/tail, since head==tail is ambiguous between empty and full.
type freeList struct {
	regs []uint64
	head uint64
	tail uint64
	size uint64
	cap  uint64
}

func newFreeList(regs []uint64) freeList {
	cap := uint64(len(regs))
	return freeList{
		regs: regs,
		head: 0,
		tail: 0,
		size: cap,
		cap:  cap,
	}
}

func (f *freeList) stall(n uint64) bool {
	return f.size < n
}

// pop removes and returns the head entry. Caller must have checked
// stall(1) first.
func (f *freeList) pop() uint64 {
	p := f.regs[f.head]
	f.head = (f.head + 1) % f.cap
	f.size--
	return p
}

// push appends p at the tail.
func (f *freeList) push(p uint64) {
	f.regs[f.tail] = p
	f.tail = (f.tail + 1) % f.cap
	f.size++
}

// restoreHead rolls the head back to a checkpointed position, recomputing
// size as size+delta where delta is the number of pops (renames) that
// happened since the checkpoint was taken. Returns the set of physical
// registers now sitting between the restored head and the unchanged
// tail, i.e. the ones the caller must mark ready again.
func (f *freeList) restoreHead(checkpointedHead uint64) []uint64 {
	delta := (f.head - checkpointedHead + f.cap) % f.cap
	f.head = checkpointedHead
	f.size += delta

	freed := make([]uint64, 0, f.size)
	idx := f.head
	for i := uint64(0); i < f.size; i++ {
		freed = append(freed, f.regs[idx])
		idx = (idx + 1) % f.cap
	}
	return freed
}

// fill sets the free list to its maximum capacity, occupying the entire
// ring (used by squash, where every non-architectural register becomes
// free). Returns every physical register now in the list.
func (f *freeList) fill() []uint64 {
	f.head = f.tail
	f.size = f.cap
	return f.regs
}
