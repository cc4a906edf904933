// Package iq implements the Issue Queue collaborator spec.md §6 and §4.4
// describe: a pool of waiting instructions woken by producer broadcasts
// and issued at most one per lane per cycle, honoring branch masks on
// both correct and mispredicted resolution.
package iq

// Source is one operand's (valid, ready, physical-register) triple, as
// captured by Dispatch (spec.md §4.3).
type Source struct {
	Valid bool
	Ready bool
	Phys  uint64
}

// Entry is one waiting instruction.
type Entry struct {
	Valid      bool
	ALIndex    uint64
	BranchMask uint64
	Lane       int
	A, B, D    Source
	age        uint64
}

func (e *Entry) readyToIssue() bool {
	return (!e.A.Valid || e.A.Ready) && (!e.B.Valid || e.B.Ready) && (!e.D.Valid || e.D.Ready)
}

// Queue holds up to capacity waiting instructions.
type Queue struct {
	entries  []Entry
	occupied uint64
	clock    uint64
}

// New creates an Issue Queue with the given capacity.
func New(capacity uint64) *Queue {
	return &Queue{entries: make([]Entry, capacity)}
}

// Stall reports whether fewer than n slots are free.
func (q *Queue) Stall(n uint64) bool {
	free := uint64(len(q.entries)) - q.occupied
	return free < n
}

// Dispatch enqueues a waiting instruction. Precondition: Stall(1) false.
func (q *Queue) Dispatch(alIndex uint64, branchMask uint64, lane int, a, b, d Source) {
	for i := range q.entries {
		if !q.entries[i].Valid {
			q.clock++
			q.entries[i] = Entry{
				Valid:      true,
				ALIndex:    alIndex,
				BranchMask: branchMask,
				Lane:       lane,
				A:          a,
				B:          b,
				D:          d,
				age:        q.clock,
			}
			q.occupied++
			return
		}
	}
	panic("iq: Dispatch called with a full queue")
}

// Wakeup broadcasts a producing physical register tag, setting readiness
// on every matching, not-yet-ready source operand.
func (q *Queue) Wakeup(phys uint64) {
	for i := range q.entries {
		e := &q.entries[i]
		if !e.Valid {
			continue
		}
		if e.A.Valid && !e.A.Ready && e.A.Phys == phys {
			e.A.Ready = true
		}
		if e.B.Valid && !e.B.Ready && e.B.Phys == phys {
			e.B.Ready = true
		}
		if e.D.Valid && !e.D.Ready && e.D.Phys == phys {
			e.D.Ready = true
		}
	}
}

// ClearBranchBit clears bit b from every entry's branch mask, used on a
// correct branch resolve.
func (q *Queue) ClearBranchBit(b uint64) {
	mask := ^(uint64(1) << b)
	for i := range q.entries {
		if q.entries[i].Valid {
			q.entries[i].BranchMask &= mask
		}
	}
}

// Squash removes every entry whose branch mask has bit b set, used on a
// mispredict resolve.
func (q *Queue) Squash(b uint64) {
	bit := uint64(1) << b
	for i := range q.entries {
		if q.entries[i].Valid && q.entries[i].BranchMask&bit != 0 {
			q.entries[i] = Entry{}
			q.occupied--
		}
	}
}

// Flush removes every entry, used by a full squash.
func (q *Queue) Flush() {
	for i := range q.entries {
		q.entries[i] = Entry{}
	}
	q.occupied = 0
}

// IssueForLane selects the oldest ready entry assigned to lane, removes
// it from the queue, and returns it. Returns ok=false if none is ready.
func (q *Queue) IssueForLane(lane int) (Entry, bool) {
	best := -1
	for i := range q.entries {
		e := &q.entries[i]
		if !e.Valid || e.Lane != lane || !e.readyToIssue() {
			continue
		}
		if best == -1 || q.entries[best].age > e.age {
			best = i
		}
	}
	if best == -1 {
		return Entry{}, false
	}
	issued := q.entries[best]
	q.entries[best] = Entry{}
	q.occupied--
	return issued, true
}
