package vm

import (
	"context"
	"errors"
	"time"

	"github.com/colorfulnotion/avm/log"
)

// Result summarises a Run call.
type Result struct {
	Steps       uint64 // instructions executed by this call
	Status      Status
	PC          uint16
	Accumulator uint32
	Flags       uint8
	Fault       *Fault
	Elapsed     time.Duration
}

// Exhausted reports whether Run stopped on its step budget.
func (r *Result) Exhausted() bool {
	return r.Status == Continued && r.Fault == nil
}

// Run advances the machine until it halts, faults, ctx is done or maxSteps
// instructions have executed (0 means no limit). A fault is returned as a
// *Fault error; cancellation as ctx.Err(). Reaching the budget is not an error.
func (vm *VM) Run(ctx context.Context, maxSteps uint64) (*Result, error) {
	start := vm.steps
	began := time.Now()
	res := &Result{Status: Continued}
	finish := func(err error) (*Result, error) {
		res.Steps = vm.steps - start
		res.PC, res.Accumulator, res.Flags = vm.pc, vm.acc, vm.flags
		res.Elapsed = time.Since(began)
		log.Debug(log.VMModule, "run finished", "status", res.Status, "steps", res.Steps, "pc", res.PC, "elapsed", res.Elapsed, "err", err)
		return res, err
	}

	for maxSteps == 0 || vm.steps-start < maxSteps {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		status, err := vm.Advance()
		res.Status = status
		if err != nil {
			errors.As(err, &res.Fault)
			return finish(err)
		}
		if status == Halted {
			return finish(nil)
		}
	}
	return finish(nil)
}
