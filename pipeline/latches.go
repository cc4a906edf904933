package pipeline

import "github.com/brassfork/rvooo/insts"

// fetchLatch holds the bundle Rename1 has moved out of the Fetch Queue,
// awaiting Rename2 (spec.md §4.2). Mirrors the teacher's IFIDRegister
// Valid+Clear() latch idiom, generalized from one instruction to a bundle.
type fetchLatch struct {
	Valid   bool
	Bundle  []*insts.Instruction
}

func (l *fetchLatch) Clear() { *l = fetchLatch{} }

// dispatchLatch holds the bundle Rename2 has renamed, awaiting Dispatch.
// Each entry is a Payload Buffer index.
type dispatchLatch struct {
	Valid  bool
	Bundle []uint64
}

func (l *dispatchLatch) Clear() { *l = dispatchLatch{} }

// laneSlot holds at most one in-flight instruction at a pipeline stage
// boundary within an execution lane (RR, one of the EX sub-stages, or WB).
type laneSlot struct {
	Valid bool
	Pay   uint64 // Payload Buffer index, valid iff Valid
}

func (s *laneSlot) Clear() { *s = laneSlot{} }
