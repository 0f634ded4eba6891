package vm

import (
	"fmt"

	"github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
)

// effect is the state an instruction would leave behind. It is committed
// only after the instruction has fully validated.
type effect struct {
	pc      uint16
	acc     uint32
	flags   uint8
	halt    bool
	store   bool
	storeAt int
}

// Advance fetches, decodes and executes the instruction at the program
// counter. The image is read afresh on every call, so stores into the code
// region take effect on the next fetch.
func (vm *VM) Advance() (Status, error) {
	if vm.halted {
		return Halted, nil
	}
	pc := vm.pc

	raw, err := vm.image.Slot(int(pc))
	var ts *trace.Step
	if vm.tracer != nil {
		ts = trace.NewStep(vm.steps, pc, raw)
	}
	if err != nil {
		return vm.fault(ts, &Fault{Kind: ProgramCounterOverflow, PC: pc, Detail: fmt.Sprintf("pc %d outside %d code slots", pc, program.CodeSlots)})
	}

	ins, err := program.Decode(raw)
	if err != nil {
		return vm.fault(ts, &Fault{Kind: UnrecognizedInstruction, PC: pc, Raw: raw, Detail: "no mnemonic matches"})
	}
	if ts != nil {
		ts.Opcode = string(ins.Op)
		ts.Instruction = ins.String()
	}
	if vm.legacy && !legacyInstruction(ins.Op) {
		return vm.fault(ts, &Fault{Kind: UnimplementedInstruction, PC: pc, Raw: raw, Detail: fmt.Sprintf("%s is not in the legacy instruction set", ins.Op)})
	}

	eff := effect{pc: pc + 1, acc: vm.acc, flags: vm.flags}
	var f *Fault
	switch ins.Op {
	case program.LR:
		f = vm.handleLoad(ins, &eff)
	case program.SR:
		f = vm.handleStore(ins, &eff)
	case program.AD:
		f = vm.handleAdd(ins, &eff)
	case program.SU:
		f = vm.handleSubtract(ins, &eff, true)
	case program.CR:
		f = vm.handleSubtract(ins, &eff, false)
	case program.JP:
		f = vm.handleJump(ins, &eff, true)
	case program.JB:
		f = vm.handleJump(ins, &eff, vm.flags&FlagCarry != 0)
	case program.HALT:
		eff.pc = pc
		eff.halt = true
	}
	if f != nil {
		f.PC, f.Raw = pc, raw
		return vm.fault(ts, f)
	}

	// commit
	vm.pc, vm.acc, vm.flags = eff.pc, eff.acc, eff.flags
	if eff.store {
		vm.image.SetWordAt(eff.storeAt, vm.acc)
	}
	vm.halted = eff.halt
	vm.steps++

	status := Continued
	if eff.halt {
		status = Halted
	}
	if log.IsModuleEnabled(log.VMModule) {
		vm.logger.Trace(log.VMModule, "step", "n", vm.steps, "pc", pc, "ins", ins.String(), "acc", vm.acc, "flags", FlagString(vm.flags), "next", vm.pc)
		if eff.halt {
			vm.logger.Debug(log.VMModule, "halted", "pc", pc, "steps", vm.steps, "acc", vm.acc)
		}
	}
	if ts != nil {
		if eff.store {
			ts.SetChangedWord(eff.storeAt, vm.acc)
		}
		vm.emit(ts, status)
	}
	return status, nil
}

func legacyInstruction(op program.Mnemonic) bool {
	switch op {
	case program.LR, program.SR, program.AD, program.SU, program.JP:
		return true
	}
	return false
}

// operand resolves the (x, y) pair of ins to a byte offset.
func operand(ins program.Instruction) (int, *Fault) {
	off, err := program.WordOffset(ins.X, ins.Y)
	if err != nil {
		return 0, &Fault{Kind: AddressOutOfRange, Detail: err.Error()}
	}
	return off, nil
}

func (vm *VM) handleLoad(ins program.Instruction, eff *effect) *Fault {
	off, f := operand(ins)
	if f != nil {
		return f
	}
	eff.acc = vm.image.WordAt(off)
	return nil
}

func (vm *VM) handleStore(ins program.Instruction, eff *effect) *Fault {
	off, f := operand(ins)
	if f != nil {
		return f
	}
	eff.store = true
	eff.storeAt = off
	return nil
}

func (vm *VM) handleAdd(ins program.Instruction, eff *effect) *Fault {
	off, f := operand(ins)
	if f != nil {
		return f
	}
	word := vm.image.WordAt(off)
	sum := uint64(vm.acc) + uint64(word)
	eff.acc = uint32(sum)
	eff.flags = arithmeticFlags(eff.acc, sum>>32 != 0)
	return nil
}

// handleSubtract serves SU and CR; CR discards the difference.
func (vm *VM) handleSubtract(ins program.Instruction, eff *effect, keep bool) *Fault {
	off, f := operand(ins)
	if f != nil {
		return f
	}
	word := vm.image.WordAt(off)
	diff := vm.acc - word
	eff.flags = arithmeticFlags(diff, vm.acc < word)
	if keep {
		eff.acc = diff
	}
	return nil
}

// handleJump loads the target slot from the addressed word. The operand is
// always validated; the target only when the jump is taken.
func (vm *VM) handleJump(ins program.Instruction, eff *effect, taken bool) *Fault {
	off, f := operand(ins)
	if f != nil {
		return f
	}
	if !taken {
		return nil
	}
	target := vm.image.WordAt(off)
	if target > 0xFFFF || target >= program.CodeSlots {
		return &Fault{Kind: ProgramCounterOverflow, Detail: fmt.Sprintf("jump target %d outside %d code slots", target, program.CodeSlots)}
	}
	eff.pc = uint16(target)
	return nil
}

func arithmeticFlags(result uint32, carry bool) uint8 {
	var f uint8
	if result == 0 {
		f |= FlagZero
	}
	if result&(1<<31) != 0 {
		f |= FlagSign
	}
	if carry {
		f |= FlagCarry
	}
	return f
}

func (vm *VM) fault(ts *trace.Step, f *Fault) (Status, error) {
	vm.logger.Warn(log.VMModule, "fault", "kind", f.Kind.String(), "pc", f.PC, "raw", program.FormatRaw(f.Raw), "detail", f.Detail)
	if ts != nil {
		ts.SetFault(f.Kind.String())
		vm.emit(ts, Faulted)
	}
	return Faulted, f
}

func (vm *VM) emit(ts *trace.Step, status Status) {
	ts.PostPC = vm.pc
	ts.PostAcc = vm.acc
	ts.PostFlags = vm.flags
	ts.PostStatus = status.String()
	if err := vm.tracer.WriteStep(ts); err != nil {
		vm.logger.Warn(log.VMModule, "trace write failed", "step", ts.Step, "err", err)
	}
}
