package pipeline

import (
	"github.com/brassfork/rvooo/insts"
	"github.com/brassfork/rvooo/trap"
)

// RetireEvent describes one instruction's retirement, passed to a
// RetireHook for the checker package to compare against its functional
// reference. Inst is always populated, trapping or not, so a hook can
// independently re-derive the architecturally-correct outcome by handing
// it to emu.Emulator.Step.
type RetireEvent struct {
	PC        uint64
	Inst      *insts.Instruction
	DestValid bool
	LogDst    uint64
	Value     uint64
	Trap      trap.Trap
}

// Option configures a Pipeline at construction, the same functional-options
// shape the teacher uses for its own Pipeline (PipelineOption /
// WithSyscallHandler).
type Option func(*Pipeline)

// WithRetireHook registers a callback invoked once per retired instruction,
// just before the renamer commits it (or, for an instruction retiring with
// an exception, before the full squash), and before PAY is freed.
func WithRetireHook(hook func(RetireEvent)) Option {
	return func(p *Pipeline) { p.retireHook = hook }
}

// WithExitHook registers a callback invoked when an ECALL with the
// sys_exit number retires.
func WithExitHook(hook func(code int)) Option {
	return func(p *Pipeline) { p.exitHook = hook }
}

// WithTrapVector sets the PC fetch resumes at after a non-CSR exception
// retires. spec.md §1 scopes trap-vector decoding and the CSR register
// file out of the core itself, so this is the pipeline's own stand-in for
// a trap base register; it defaults to 0.
func WithTrapVector(pc uint64) Option {
	return func(p *Pipeline) { p.trapVector = pc }
}
