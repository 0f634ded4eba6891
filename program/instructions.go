package program

import (
	"fmt"

	"github.com/colorfulnotion/avm/avmerrors"
)

// Mnemonic is the ASCII tag at the start of every instruction.
type Mnemonic string

// Two letter mnemonics take a block/word operand pair in bytes 2-3.
const (
	LR Mnemonic = "LR" // load register
	SR Mnemonic = "SR" // store register
	AD Mnemonic = "AD" // add
	SU Mnemonic = "SU" // subtract
	CR Mnemonic = "CR" // compare
	JP Mnemonic = "JP" // jump
	JB Mnemonic = "JB" // jump if below
)

// HALT occupies all four bytes.
const HALT Mnemonic = "HALT"

// Mnemonics lists the instruction set in encoding order.
var Mnemonics = []Mnemonic{LR, SR, AD, SU, CR, JP, JB, HALT}

// OpcodeNames maps mnemonics to their long names.
var OpcodeNames = map[Mnemonic]string{
	LR:   "load_register",
	SR:   "store_register",
	AD:   "add",
	SU:   "subtract",
	CR:   "compare",
	JP:   "jump",
	JB:   "jump_below",
	HALT: "halt",
}

// HasOperands reports whether the mnemonic carries an (x, y) pair.
func (m Mnemonic) HasOperands() bool {
	return m != HALT
}

// Instruction is one decoded code slot.
type Instruction struct {
	Op Mnemonic
	X  byte
	Y  byte
}

// DecodeError carries the raw bytes that matched no mnemonic.
type DecodeError struct {
	Raw [InstructionSize]byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("instruction %s: %v", FormatRaw(e.Raw), avmerrors.ErrUnrecognizedInstruction)
}

func (e *DecodeError) Unwrap() error {
	return avmerrors.ErrUnrecognizedInstruction
}

// Decode matches the raw slot bytes against the instruction set. Operand
// bytes are returned as is; range checks happen at execution.
func Decode(raw [InstructionSize]byte) (Instruction, error) {
	if string(raw[:]) == string(HALT) {
		return Instruction{Op: HALT}, nil
	}
	switch op := Mnemonic(raw[:2]); op {
	case LR, SR, AD, SU, CR, JP, JB:
		return Instruction{Op: op, X: raw[2], Y: raw[3]}, nil
	}
	return Instruction{}, &DecodeError{Raw: raw}
}

// Encode returns the four byte slot encoding of ins.
func (ins Instruction) Encode() [InstructionSize]byte {
	var raw [InstructionSize]byte
	if ins.Op == HALT {
		copy(raw[:], string(HALT))
		return raw
	}
	copy(raw[:2], string(ins.Op))
	raw[2], raw[3] = ins.X, ins.Y
	return raw
}

func (ins Instruction) String() string {
	if !ins.Op.HasOperands() {
		return string(ins.Op)
	}
	return fmt.Sprintf("%s %d %d", ins.Op, ins.X, ins.Y)
}

// Target returns the byte offset of the word the instruction addresses.
func (ins Instruction) Target() (int, error) {
	if !ins.Op.HasOperands() {
		return 0, fmt.Errorf("%s has no operand", ins.Op)
	}
	return WordOffset(ins.X, ins.Y)
}

// FormatRaw renders slot bytes for diagnostics, e.g. `4c 52 00 03 ("LR..")`.
func FormatRaw(raw [InstructionSize]byte) string {
	return fmt.Sprintf("%02x %02x %02x %02x (%q)", raw[0], raw[1], raw[2], raw[3], printable(raw[:]))
}

func printable(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c < 0x7f {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}

// InstructionCategory represents the category of an instruction
type InstructionCategory int

const (
	CategoryUnknown InstructionCategory = iota
	CategoryMemory
	CategoryArithmetic
	CategoryControlFlow
)

// GetInstructionCategory returns the category of an instruction
func GetInstructionCategory(op Mnemonic) InstructionCategory {
	switch op {
	case LR, SR:
		return CategoryMemory
	case AD, SU, CR:
		return CategoryArithmetic
	case JP, JB, HALT:
		return CategoryControlFlow
	default:
		return CategoryUnknown
	}
}

// IsControlFlowInstruction returns true if the instruction may set the
// program counter to something other than the next slot.
func IsControlFlowInstruction(op Mnemonic) bool {
	return GetInstructionCategory(op) == CategoryControlFlow
}

// GetCategoryName returns the string name of an instruction category
func GetCategoryName(category InstructionCategory) string {
	switch category {
	case CategoryArithmetic:
		return "Arithmetic"
	case CategoryMemory:
		return "Memory"
	case CategoryControlFlow:
		return "ControlFlow"
	default:
		return "Unknown"
	}
}
