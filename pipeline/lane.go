package pipeline

// lane is one execution lane's pipeline slots: a Register-Read slot, a
// depth-sized chain of Execute sub-stages, and a Writeback slot. depth is
// fixed per lane at construction, taken from config.Config.ExDepth.
type lane struct {
	rr laneSlot
	ex []laneSlot
	wb laneSlot

	nextRR laneSlot
	nextEX []laneSlot
	nextWB laneSlot
}

func newLane(depth uint64) *lane {
	return &lane{
		ex:     make([]laneSlot, depth),
		nextEX: make([]laneSlot, depth),
	}
}

// latch swaps every next-cycle shadow slot into the current one, the same
// synchronous-update step the teacher's Pipeline.Tick performs on its
// ifid/idex/exmem/memwb registers.
func (l *lane) latch() {
	l.rr = l.nextRR
	copy(l.ex, l.nextEX)
	l.wb = l.nextWB
	l.nextRR = laneSlot{}
	for i := range l.nextEX {
		l.nextEX[i] = laneSlot{}
	}
	l.nextWB = laneSlot{}
}

// clearAll frees the Payload Buffer entry behind every valid slot in the
// lane (via free) and empties the slot, used by a full pipeline squash:
// unlike squashAfter's branch-mask-scoped squashLaneSlot, every in-flight
// instruction is discarded here regardless of which branch (if any) it
// is behind.
func (l *lane) clearAll(free func(payIdx uint64)) {
	clear := func(s *laneSlot) {
		if !s.Valid {
			return
		}
		free(s.Pay)
		s.Clear()
	}
	clear(&l.rr)
	clear(&l.wb)
	for i := range l.ex {
		clear(&l.ex[i])
	}
	clear(&l.nextRR)
	clear(&l.nextWB)
	for i := range l.nextEX {
		clear(&l.nextEX[i])
	}
}
