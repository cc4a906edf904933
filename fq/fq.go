// Package fq implements the Fetch Queue collaborator spec.md §6
// requires (FQ.bundle_ready(n) / FQ.pop() / FQ.flush()): a simple FIFO
// of decoded instructions sitting between Fetch and Rename1.
package fq

import "github.com/brassfork/rvooo/insts"

// Queue is a FIFO of decoded instructions awaiting rename.
type Queue struct {
	buf []*insts.Instruction
}

// New creates an empty fetch queue.
func New() *Queue {
	return &Queue{}
}

// Push appends a freshly fetched, decoded instruction.
func (q *Queue) Push(inst *insts.Instruction) {
	q.buf = append(q.buf, inst)
}

// BundleReady reports whether at least n instructions are available,
// matching Rename1's "no partial bundles" rule (spec.md §4.2).
func (q *Queue) BundleReady(n uint64) bool {
	return uint64(len(q.buf)) >= n
}

// Pop removes and returns the oldest n instructions in program order.
// Precondition: BundleReady(n) is true.
func (q *Queue) Pop(n uint64) []*insts.Instruction {
	if !q.BundleReady(n) {
		panic("fq: Pop called without checking BundleReady")
	}
	bundle := append([]*insts.Instruction(nil), q.buf[:n]...)
	q.buf = q.buf[n:]
	return bundle
}

// Len reports the number of instructions currently queued.
func (q *Queue) Len() int {
	return len(q.buf)
}

// Flush discards every queued instruction, as happens on a full squash.
func (q *Queue) Flush() {
	q.buf = nil
}
