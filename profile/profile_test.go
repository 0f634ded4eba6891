package profile

import (
	"bytes"
	"context"
	"testing"

	"github.com/colorfulnotion/avm/program"
	"github.com/colorfulnotion/avm/trace"
	"github.com/colorfulnotion/avm/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const countdown = `
.word 0 0 3
.word 0 1 1
.word 0 2 @loop
.word 0 3 @done
loop:   LR 0 0
        SU 0 1
        SR 0 0
        CR 0 1
        JB 0 3
        JP 0 2
done:   HALT
`

func runProfiled(t *testing.T, src string) (*Profile, *trace.Recorder) {
	t.Helper()
	asm, err := program.Assemble(src)
	require.NoError(t, err)
	p, rec := New(), &trace.Recorder{}
	m := vm.New(asm.Image, vm.WithTracer(trace.Tee(p, rec)))
	_, _ = m.Run(context.Background(), 1000)
	return p, rec
}

func TestProfileCounts(t *testing.T) {
	p, rec := runProfiled(t, countdown)

	// two full passes of six, then five plus HALT
	assert.Equal(t, uint64(18), p.Steps())
	assert.Zero(t, p.Faults())
	assert.Equal(t, uint64(3), p.Count(program.LR))
	assert.Equal(t, uint64(2), p.Count(program.JP))
	assert.Equal(t, uint64(1), p.Count(program.HALT))
	assert.Equal(t, uint64(2), p.Jumps(5, 0))
	assert.Equal(t, uint64(1), p.Jumps(4, 6))
	assert.Zero(t, p.Jumps(0, 1), "fall-through is not a jump")

	hot := p.Hot(2)
	require.Len(t, hot, 2)
	assert.Equal(t, SlotCount{Slot: 0, Count: 3}, hot[0])
	assert.Equal(t, SlotCount{Slot: 1, Count: 3}, hot[1])

	again := FromSteps(rec.Steps())
	assert.Equal(t, p.Hot(0), again.Hot(0))
}

func TestProfileFaults(t *testing.T) {
	p, _ := runProfiled(t, "LR 0 0\n.raw 1 1 1 1")
	assert.Equal(t, uint64(1), p.Steps())
	assert.Equal(t, uint64(1), p.Faults())
}

func TestRender(t *testing.T) {
	p, _ := runProfiled(t, countdown)
	var out bytes.Buffer
	require.NoError(t, p.Render(&out))
	html := out.String()
	assert.Contains(t, html, "echarts")
	assert.Contains(t, html, "avm profile")
	assert.Contains(t, html, "Control flow")
}
