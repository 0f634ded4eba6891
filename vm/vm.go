// Package vm executes AVM program images one instruction at a time.
package vm

import (
	"fmt"

	"github.com/colorfulnotion/avm/log"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
)

// Condition flag bits.
const (
	FlagZero  uint8 = 1 << 0 // result is zero
	FlagSign  uint8 = 1 << 1 // bit 31 of the result
	FlagCarry uint8 = 1 << 2 // carry out of AD, borrow (acc < word) for SU and CR
)

// Status is the outcome of one Advance call.
type Status int

const (
	Continued Status = iota
	Halted
	Faulted
)

func (s Status) String() string {
	switch s {
	case Continued:
		return "continued"
	case Halted:
		return "halted"
	case Faulted:
		return "faulted"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

type Option func(*VM)

// WithTracer emits a trace.Step for every Advance that fetches an instruction.
func WithTracer(sink trace.Sink) Option {
	return func(vm *VM) { vm.tracer = sink }
}

func WithLogger(l log.Logger) Option {
	return func(vm *VM) { vm.logger = l }
}

// WithLegacyInstructionSet restricts the machine to LR, SR, AD, SU and JP.
// CR, JB and HALT decode but fault as unimplemented.
func WithLegacyInstructionSet() Option {
	return func(vm *VM) { vm.legacy = true }
}

// VM is a single AVM machine. It is not safe for concurrent use.
type VM struct {
	image *program.Image

	pc    uint16 // code slot index
	acc   uint32
	flags uint8
	sp    uint8 // reserved, never touched by the instruction set

	halted bool
	steps  uint64
	legacy bool

	tracer trace.Sink
	logger log.Logger
}

// New takes ownership of img. All registers start at zero.
func New(img *program.Image, opts ...Option) *VM {
	if img == nil {
		img = program.Empty()
	}
	vm := &VM{image: img}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.logger == nil {
		vm.logger = log.Root()
	}
	return vm
}

// NewFromBytes validates buf as a program image and wraps it in a VM.
func NewFromBytes(buf []byte, opts ...Option) (*VM, error) {
	img, err := program.New(buf)
	if err != nil {
		return nil, err
	}
	return New(img, opts...), nil
}

func (vm *VM) PC() uint16             { return vm.pc }
func (vm *VM) Accumulator() uint32    { return vm.acc }
func (vm *VM) Flags() uint8           { return vm.flags }
func (vm *VM) StackPointer() uint8    { return vm.sp }
func (vm *VM) Halted() bool           { return vm.halted }
func (vm *VM) Steps() uint64          { return vm.steps }
func (vm *VM) Legacy() bool           { return vm.legacy }
func (vm *VM) Tracer() trace.Sink     { return vm.tracer }
func (vm *VM) SetTracer(s trace.Sink) { vm.tracer = s }

// Image returns a copy of the current image.
func (vm *VM) Image() *program.Image {
	return vm.image.Clone()
}

// Word reads the word at (x, y) without copying the image.
func (vm *VM) Word(x, y byte) (uint32, error) {
	return vm.image.Word(x, y)
}

// Flag reports whether every bit of f is set.
func (vm *VM) Flag(f uint8) bool {
	return vm.flags&f == f
}

func (vm *VM) SetAccumulator(v uint32) {
	vm.acc = v
}

// SetPC moves the program counter. Values past the code region are rejected.
func (vm *VM) SetPC(pc uint16) error {
	if int(pc) >= program.CodeSlots {
		return &Fault{Kind: ProgramCounterOverflow, PC: vm.pc, Detail: fmt.Sprintf("pc %d outside %d code slots", pc, program.CodeSlots)}
	}
	vm.pc = pc
	return nil
}

func (vm *VM) SetWord(x, y byte, v uint32) error {
	return vm.image.SetWord(x, y, v)
}

// Reset zeroes the registers and clears the halted state. The image,
// including any self-modification, is kept.
func (vm *VM) Reset() {
	vm.pc, vm.acc, vm.flags, vm.sp = 0, 0, 0, 0
	vm.halted = false
	vm.steps = 0
}

func (vm *VM) String() string {
	return fmt.Sprintf("pc=%d acc=0x%08x flags=%s sp=%d steps=%d halted=%v", vm.pc, vm.acc, FlagString(vm.flags), vm.sp, vm.steps, vm.halted)
}

// FlagString renders flags as "ZNC" with '-' for clear bits.
func FlagString(f uint8) string {
	b := []byte("---")
	if f&FlagZero != 0 {
		b[0] = 'Z'
	}
	if f&FlagSign != 0 {
		b[1] = 'N'
	}
	if f&FlagCarry != 0 {
		b[2] = 'C'
	}
	return string(b)
}
