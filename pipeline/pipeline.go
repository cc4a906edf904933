// Package pipeline drives the out-of-order core's stage pipeline: Rename
// (two sub-stages), Dispatch, Issue, Register-Read, Execute, Writeback,
// and Retire, plus the full-squash recovery path. Every stage is invoked
// once per cycle from Tick, in the reverse pipeline order spec.md §5
// mandates (Retire, Writeback, Execute, Register-Read, Schedule, Dispatch,
// Rename2, Rename1, Fetch), so that a consumer stage always observes its
// producer's state from the previous cycle — the same flip-flop discipline
// the teacher's Pipeline.Tick uses for its five classic stages, extended
// here across many more.
//
// Decode is folded into Fetch: the insts.Decoder runs as soon as a word is
// read from memory, so the Fetch Queue already holds decoded
// *insts.Instruction values rather than raw words.
package pipeline

import (
	"github.com/brassfork/rvooo/bp"
	"github.com/brassfork/rvooo/cache"
	"github.com/brassfork/rvooo/config"
	"github.com/brassfork/rvooo/emu"
	"github.com/brassfork/rvooo/fq"
	"github.com/brassfork/rvooo/insts"
	"github.com/brassfork/rvooo/iq"
	"github.com/brassfork/rvooo/lsu"
	"github.com/brassfork/rvooo/pay"
	"github.com/brassfork/rvooo/renamer"
)

// selClass is Dispatch's issue-queue routing classification (spec.md §6).
type selClass uint8

const (
	selIQ selClass = iota
	selIQNone
	selIQNoneException
)

// branchInfo records what Rename2 knew about a checkpointed branch, so
// Writeback can resolve it against the actual outcome.
type branchInfo struct {
	pc   uint64
	pred bp.Prediction
	lq   lsu.Checkpoint
}

// Pipeline is the out-of-order core.
type Pipeline struct {
	cfg     *config.Config
	decoder *insts.Decoder
	mem     *emu.Memory

	renamer *renamer.Renamer
	pay     *pay.Buffer
	iq      *iq.Queue
	lsuUnit *lsu.LSU
	predictor *bp.Predictor
	fetchQ  *fq.Queue

	lanes []*lane

	fl     fetchLatch
	nextFL fetchLatch
	dl     dispatchLatch
	nextDL dispatchLatch

	payByAL    []uint64
	payByLQ    []uint64
	branchInfo []branchInfo
	csr        map[uint16]uint64

	// memDepPC is the memory-dependence predictor (spec.md §4.7/§6): the
	// set of load PCs that have previously raced an older store, each
	// forced to wait for every older store's address to resolve from now
	// on rather than speculate again. Only consulted when
	// config.Config.MemDepPred is set.
	memDepPC map[uint64]struct{}

	pc          uint64
	trapVector  uint64
	halted      bool
	exitCode    int
	laneSteer   int

	stats Stats

	retireHook func(RetireEvent)
	exitHook   func(code int)
}

// Stats accumulates pipeline performance counters, the same shape and
// derived-CPI-method idiom the teacher's own Pipeline.Stats uses.
type Stats struct {
	Cycles         uint64
	Instructions   uint64
	Branches       uint64
	Mispredictions uint64
	Flushes        uint64
}

// CPI returns cycles per retired instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// New creates a Pipeline wired to cfg, reading instructions from mem.
func New(cfg *config.Config, mem *emu.Memory, opts ...Option) *Pipeline {
	lanes := make([]*lane, cfg.IssueWidth)
	for i := range lanes {
		lanes[i] = newLane(cfg.ExDepth[i])
	}

	alCap := cfg.NPhysRegs - cfg.NLogRegs

	p := &Pipeline{
		cfg:        cfg,
		decoder:    insts.NewDecoder(),
		mem:        mem,
		renamer:    renamer.New(cfg.NLogRegs, cfg.NPhysRegs, cfg.NBranches),
		// Rename2 allocates a bundle's Payload Buffer entries before
		// Dispatch checks Active List space, so one renamed bundle can be
		// held in addition to a full Active List.
		pay:        pay.New(alCap + cfg.DispatchWidth),
		iq:         iq.New(alCap),
		lsuUnit:    lsu.New(lsu.WithCache(cache.New(cache.DefaultL1DConfig(), mem))),
		predictor:  bp.New(bp.DefaultConfig()),
		fetchQ:     fq.New(),
		lanes:      lanes,
		payByAL:    make([]uint64, alCap),
		payByLQ:    make([]uint64, 16),
		branchInfo: make([]branchInfo, cfg.NBranches),
		csr:        make(map[uint16]uint64),
		memDepPC:   make(map[uint64]struct{}),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// SetPC sets the fetch program counter (entry point).
func (p *Pipeline) SetPC(pc uint64) { p.pc = pc }

// PC returns the current fetch program counter.
func (p *Pipeline) PC() uint64 { return p.pc }

// Halted reports whether the program has exited.
func (p *Pipeline) Halted() bool { return p.halted }

// ExitCode returns the exit code, valid once Halted is true.
func (p *Pipeline) ExitCode() int { return p.exitCode }

// Stats returns a snapshot of the pipeline's performance counters.
func (p *Pipeline) Stats() Stats { return p.stats }

// Tick advances the pipeline by one cycle.
func (p *Pipeline) Tick() {
	if p.halted {
		return
	}
	p.stats.Cycles++

	p.retire()
	for lane := range p.lanes {
		p.writeback(lane)
	}
	p.loadReplay()
	for lane := range p.lanes {
		p.execute(lane)
	}
	for lane := range p.lanes {
		p.registerRead(lane)
	}
	for lane := range p.lanes {
		p.schedule(lane)
	}
	p.dispatch()
	p.rename2()
	p.rename1()
	p.fetch()

	for _, l := range p.lanes {
		l.latch()
	}
	p.fl = p.nextFL
	p.dl = p.nextDL
	p.nextFL = fetchLatch{}
	p.nextDL = dispatchLatch{}
}

// Run executes the pipeline until it halts, returning the exit code.
func (p *Pipeline) Run(maxCycles uint64) int {
	for i := uint64(0); (maxCycles == 0 || i < maxCycles) && !p.halted; i++ {
		p.Tick()
	}
	return p.exitCode
}
