package renamer

// checkpoint is the state snapshotted when a branch is renamed: a shadow
// copy of the RMT, the Free-List head at that point, and the GBM
// (including the checkpointing branch's own bit).
type checkpoint struct {
	rmt          []uint64
	freeListHead uint64
	gbm          uint64
}

func newCheckpoints(n, nLogRegs uint64) []checkpoint {
	cps := make([]checkpoint, n)
	for i := range cps {
		cps[i].rmt = make([]uint64, nLogRegs)
	}
	return cps
}
