package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	asm, err := Assemble(sampleSource)
	require.NoError(t, err)

	lines := Disassemble(asm.Image)
	require.Len(t, lines, 5)
	want := []string{"LR 0 0", "AD 0 1", "SR 0 3", "SU 0 3", "HALT"}
	for i, l := range lines {
		assert.True(t, l.Valid)
		assert.Equal(t, i, l.Slot)
		assert.Equal(t, want[i], l.String())
	}
	assert.Empty(t, Disassemble(Empty()))
}

func TestSourceRoundTrip(t *testing.T) {
	asm, err := Assemble(`
.word 0 0 7
.word 3 4 0xffffffff
.word 15 15 9
LR 0 0
.org 20
.raw 1 2 3 4
SR 8 1
HALT
`)
	require.NoError(t, err)

	src := Source(asm.Image)
	back, err := Assemble(src)
	require.NoError(t, err, src)
	assert.True(t, asm.Image.Equal(back.Image), src)
	assert.Contains(t, src, ".org 20")
	assert.Contains(t, src, ".raw 0x01 0x02 0x03 0x04")
}

func TestSourceRoundTripWideOperand(t *testing.T) {
	img := Empty()
	img.WriteBytes(CodeBase, []byte{'L', 'R', 16, 0})
	img.WriteBytes(CodeBase+InstructionSize, []byte{'J', 'P', 2, 0xff})

	src := Source(img)
	assert.Contains(t, src, ".raw 0x4c 0x52 0x10 0x00")
	assert.Contains(t, src, ".raw 0x4a 0x50 0x02 0xff")
	back, err := Assemble(src)
	require.NoError(t, err, src)
	assert.True(t, img.Equal(back.Image), src)

	l, err := DisassembleSlot(img, 0)
	require.NoError(t, err)
	assert.True(t, l.Valid)
	assert.Equal(t, "LR 16 0", l.Instruction.String())
}

func TestTree(t *testing.T) {
	asm, err := Assemble(sampleSource)
	require.NoError(t, err)
	out := Tree(asm.Image).String()
	assert.Contains(t, out, "params [0, 64)")
	assert.Contains(t, out, "code [512, 896)")
	assert.Contains(t, out, "[0 1]  0x00000002 (2)")
	assert.Contains(t, out, "[0002]  SR 0 3")
}

func TestNonZeroWordsSkipsCode(t *testing.T) {
	img := Empty()
	require.NoError(t, img.SetSlot(0, Instruction{Op: HALT}))
	require.NoError(t, img.SetWord(14, 0, 5))
	words := NonZeroWords(img)
	require.Len(t, words, 1)
	assert.Equal(t, RegionReserved, words[0].Region)
}
