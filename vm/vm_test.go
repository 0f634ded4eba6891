package vm

import (
	"context"
	"errors"
	"testing"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assemble(t *testing.T, src string) *program.Image {
	t.Helper()
	asm, err := program.Assemble(src)
	require.NoError(t, err)
	return asm.Image
}

func step(t *testing.T, m *VM) {
	t.Helper()
	status, err := m.Advance()
	require.NoError(t, err)
	require.Equal(t, Continued, status)
}

func TestReferenceProgram(t *testing.T) {
	m := New(assemble(t, `
.word 0 0 1
.word 0 1 2
LR 0 0
AD 0 1
SR 0 3
SU 0 3
`))
	assert.Zero(t, m.PC())
	assert.Zero(t, m.Accumulator())
	assert.Zero(t, m.Flags())
	assert.Zero(t, m.StackPointer())

	step(t, m)
	assert.Equal(t, uint32(1), m.Accumulator())
	step(t, m)
	assert.Equal(t, uint32(3), m.Accumulator())
	step(t, m)
	assert.Equal(t, uint32(3), m.Accumulator())
	w, err := m.Word(0, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), w)
	assert.Equal(t, []byte{0, 0, 0, 3}, m.Image().ReadBytes(12, 4))
	step(t, m)
	assert.Equal(t, uint32(0), m.Accumulator())
	assert.Equal(t, FlagZero, m.Flags())
	assert.Equal(t, uint16(4), m.PC())
	assert.Equal(t, uint64(4), m.Steps())

	// slot 4 is all zero bytes
	status, err := m.Advance()
	assert.Equal(t, Faulted, status)
	assert.ErrorIs(t, err, avmerrors.ErrUnrecognizedInstruction)
}

func TestWordRoundTrip(t *testing.T) {
	img := assemble(t, "SR 0 3\nLR 0 3\nSR 7 15\nLR 7 15")
	for _, v := range []uint32{0, 3, 0x7fffffff, 0x80000000, 0xffffffff, 0xdeadbeef} {
		m := New(img.Clone())
		m.SetAccumulator(v)
		step(t, m)
		m.SetAccumulator(0)
		step(t, m)
		assert.Equal(t, v, m.Accumulator())
		step(t, m)
		m.SetAccumulator(1)
		step(t, m)
		assert.Equal(t, v, m.Accumulator())
	}
}

func TestWrapAround(t *testing.T) {
	img := assemble(t, ".word 0 0 1\nAD 0 0\nSU 0 0\nSU 0 0")
	m := New(img)
	m.SetAccumulator(0xffffffff)

	step(t, m)
	assert.Equal(t, uint32(0), m.Accumulator())
	assert.Equal(t, FlagZero|FlagCarry, m.Flags())

	step(t, m)
	assert.Equal(t, uint32(0xffffffff), m.Accumulator())
	assert.Equal(t, FlagSign|FlagCarry, m.Flags())

	step(t, m)
	assert.Equal(t, uint32(0xfffffffe), m.Accumulator())
	assert.Equal(t, FlagSign, m.Flags())
}

func TestSequentialPC(t *testing.T) {
	m := New(assemble(t, `
.word 0 0 9
.word 0 1 0
LR 0 0
SR 0 2
AD 0 0
SU 0 0
CR 0 1
JB 0 1
HALT
`))
	for want := uint16(1); want <= 6; want++ {
		step(t, m)
		assert.Equal(t, want, m.PC())
	}
	assert.False(t, m.Flag(FlagCarry))
}

func TestJumpIsAbsolute(t *testing.T) {
	m := New(assemble(t, `
.word 0 0 5
JP 0 0
LR 0 0
.org 5
HALT
`))
	step(t, m)
	assert.Equal(t, uint16(5), m.PC())
	status, err := m.Advance()
	require.NoError(t, err)
	assert.Equal(t, Halted, status)
	assert.Zero(t, m.Accumulator(), "slot 1 must not run")
}

func TestMalformedImage(t *testing.T) {
	for _, n := range []int{0, 512, 1023, 1025} {
		m, err := NewFromBytes(make([]byte, n))
		assert.Nil(t, m)
		assert.ErrorIs(t, err, avmerrors.ErrMalformedProgramImage)
	}
	m, err := NewFromBytes(make([]byte, program.ImageSize))
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestUnrecognizedInstruction(t *testing.T) {
	m := New(assemble(t, "LR 0 0\n.raw 0x58 0x59 0x5a 0x57"))
	step(t, m)
	m.SetAccumulator(7)
	before := m.Snapshot()

	status, err := m.Advance()
	assert.Equal(t, Faulted, status)
	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, UnrecognizedInstruction, f.Kind)
	assert.Equal(t, uint16(1), f.PC)
	assert.Equal(t, [4]byte{'X', 'Y', 'Z', 'W'}, f.Raw)
	assert.Contains(t, err.Error(), "UnrecognizedInstruction at pc 1")
	assert.Equal(t, before, m.Snapshot())
}

func TestCompare(t *testing.T) {
	m := New(assemble(t, ".word 0 0 7\nCR 0 0\nCR 0 0\nCR 0 0"))
	m.SetAccumulator(5)
	step(t, m)
	assert.Equal(t, uint32(5), m.Accumulator())
	assert.Equal(t, FlagSign|FlagCarry, m.Flags())

	m.SetAccumulator(7)
	step(t, m)
	assert.Equal(t, FlagZero, m.Flags())

	m.SetAccumulator(9)
	step(t, m)
	assert.Equal(t, uint8(0), m.Flags())
	assert.Equal(t, uint32(9), m.Accumulator())
}

const countdown = `
.word 0 0 5      ; counter
.word 0 1 1
.word 0 2 @loop
.word 0 3 @done
loop:   LR 0 0
        SU 0 1
        SR 0 0
        CR 0 1   ; carry once the counter drops below one
        JB 0 3
        JP 0 2
done:   HALT
`

func TestJumpIfBelowLoop(t *testing.T) {
	m := New(assemble(t, countdown))
	res, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, Halted, res.Status)
	assert.Equal(t, uint64(30), res.Steps)
	assert.Equal(t, uint16(6), res.PC)
	assert.Equal(t, FlagSign|FlagCarry, res.Flags)
	w, _ := m.Word(0, 0)
	assert.Zero(t, w)
}

func TestHalt(t *testing.T) {
	m := New(assemble(t, ".word 0 0 4\nLR 0 0\nHALT"))
	step(t, m)
	status, err := m.Advance()
	require.NoError(t, err)
	assert.Equal(t, Halted, status)
	assert.True(t, m.Halted())
	assert.Equal(t, uint16(1), m.PC())
	assert.Equal(t, uint64(2), m.Steps())

	status, err = m.Advance()
	require.NoError(t, err)
	assert.Equal(t, Halted, status)
	assert.Equal(t, uint64(2), m.Steps())

	m.Reset()
	assert.False(t, m.Halted())
	assert.Zero(t, m.PC())
	assert.Zero(t, m.Accumulator())
	step(t, m)
	assert.Equal(t, uint32(4), m.Accumulator())
}

func TestLegacyInstructionSet(t *testing.T) {
	for _, src := range []string{"CR 0 0", "JB 0 0", "HALT"} {
		m := New(assemble(t, src), WithLegacyInstructionSet())
		status, err := m.Advance()
		assert.Equal(t, Faulted, status, src)
		assert.ErrorIs(t, err, avmerrors.ErrUnimplementedInstruction, src)
		assert.False(t, errors.Is(err, avmerrors.ErrUnrecognizedInstruction))
		assert.Zero(t, m.PC())
	}
	m := New(assemble(t, "LR 0 0\nJP 0 1"), WithLegacyInstructionSet())
	step(t, m)
	step(t, m)
	assert.True(t, m.Legacy())
}

func TestFaultsAreAtomic(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind FaultKind
	}{
		{"load x out of range", ".raw 0x4c 0x52 16 0", AddressOutOfRange},
		{"store y out of range", ".raw 0x53 0x52 0 200", AddressOutOfRange},
		{"add", ".raw 0x41 0x44 255 255", AddressOutOfRange},
		{"jump past code", ".word 0 0 96\nJP 0 0", ProgramCounterOverflow},
		{"jump wider than 16 bits", ".word 0 0 0x10000\nJP 0 0", ProgramCounterOverflow},
		{"jb operand checked when not taken", ".raw 0x4a 0x42 0 16", AddressOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := New(assemble(t, tc.src))
			m.SetAccumulator(0x1234)
			before := m.Snapshot()
			status, err := m.Advance()
			assert.Equal(t, Faulted, status)
			var f *Fault
			require.ErrorAs(t, err, &f)
			assert.Equal(t, tc.kind, f.Kind)
			assert.ErrorIs(t, err, tc.kind.Sentinel())
			assert.Equal(t, before, m.Snapshot())

			// a faulted machine faults the same way again
			_, again := m.Advance()
			assert.Equal(t, err.Error(), again.Error())
		})
	}
}

func TestJumpIfBelowTakenChecksTarget(t *testing.T) {
	m := New(assemble(t, ".word 0 0 1\n.word 0 1 500\nCR 0 0\nJB 0 1"))
	step(t, m)
	require.True(t, m.Flag(FlagCarry))
	_, err := m.Advance()
	assert.ErrorIs(t, err, avmerrors.ErrProgramCounterOverflow)
	assert.Equal(t, uint16(1), m.PC())
}

func TestSelfModifyingCode(t *testing.T) {
	// slot 2 starts empty; slot 1 writes HALT into it
	m := New(assemble(t, `
.word 0 5 0x48414c54
LR 0 5
SR 8 2
`))
	res, err := m.Run(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, Halted, res.Status)
	assert.Equal(t, uint64(3), res.Steps)
}

func TestProgramCounterOverflowOnFetch(t *testing.T) {
	img := program.Empty()
	require.NoError(t, img.SetSlot(95, program.Instruction{Op: program.LR}))
	m := New(img)
	require.NoError(t, m.SetPC(95))
	step(t, m)
	assert.Equal(t, uint16(96), m.PC())

	status, err := m.Advance()
	assert.Equal(t, Faulted, status)
	var f *Fault
	require.ErrorAs(t, err, &f)
	assert.Equal(t, ProgramCounterOverflow, f.Kind)
	assert.Equal(t, uint16(96), f.PC)
	assert.Equal(t, [4]byte{}, f.Raw)

	assert.ErrorIs(t, m.SetPC(96), avmerrors.ErrProgramCounterOverflow)
}

func TestTracer(t *testing.T) {
	rec := &trace.Recorder{}
	m := New(assemble(t, ".word 0 0 1\nLR 0 0\nSR 0 3\n.raw 1 2 3 4"), WithTracer(rec))
	_, err := m.Run(context.Background(), 0)
	require.Error(t, err)

	steps := rec.Steps()
	require.Len(t, steps, 3)
	assert.Equal(t, "LR 0 0", steps[0].Instruction)
	assert.Equal(t, uint32(1), steps[0].PostAcc)
	assert.Equal(t, "continued", steps[0].PostStatus)

	require.NotNil(t, steps[1].ChangedWordOffset)
	assert.Equal(t, uint16(12), *steps[1].ChangedWordOffset)
	assert.Equal(t, uint32(1), *steps[1].ChangedWordValue)

	assert.Equal(t, "01020304", steps[2].Raw)
	require.NotNil(t, steps[2].Fault)
	assert.Equal(t, "UnrecognizedInstruction", *steps[2].Fault)
	assert.Equal(t, "faulted", steps[2].PostStatus)
	assert.Equal(t, uint16(2), steps[2].PostPC)
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "---", FlagString(0))
	assert.Equal(t, "Z-C", FlagString(FlagZero|FlagCarry))
	assert.Equal(t, "-N-", FlagString(FlagSign))
	assert.Equal(t, "halted", Halted.String())
}
