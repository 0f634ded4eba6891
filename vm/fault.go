package vm

import (
	"fmt"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/program"
)

type FaultKind uint8

const (
	UnrecognizedInstruction FaultKind = iota + 1
	UnimplementedInstruction
	ProgramCounterOverflow
	AddressOutOfRange
)

func (k FaultKind) String() string {
	switch k {
	case UnrecognizedInstruction:
		return "UnrecognizedInstruction"
	case UnimplementedInstruction:
		return "UnimplementedInstruction"
	case ProgramCounterOverflow:
		return "ProgramCounterOverflow"
	case AddressOutOfRange:
		return "AddressOutOfRange"
	}
	return fmt.Sprintf("FaultKind(%d)", uint8(k))
}

// Sentinel maps the kind onto its avmerrors value.
func (k FaultKind) Sentinel() error {
	switch k {
	case UnrecognizedInstruction:
		return avmerrors.ErrUnrecognizedInstruction
	case UnimplementedInstruction:
		return avmerrors.ErrUnimplementedInstruction
	case ProgramCounterOverflow:
		return avmerrors.ErrProgramCounterOverflow
	case AddressOutOfRange:
		return avmerrors.ErrAddressOutOfRange
	}
	return nil
}

// Fault stops execution. The machine state is exactly as it was before the
// faulting Advance call.
type Fault struct {
	Kind   FaultKind
	PC     uint16
	Raw    [program.InstructionSize]byte
	Detail string
}

func (f *Fault) Error() string {
	msg := fmt.Sprintf("%s at pc %d [%s]", f.Kind, f.PC, program.FormatRaw(f.Raw))
	if f.Detail != "" {
		msg += ": " + f.Detail
	}
	return msg
}

func (f *Fault) Unwrap() error {
	return f.Kind.Sentinel()
}
