package vm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	m := New(assemble(t, countdown))
	_, err := m.Run(context.Background(), 8)
	require.NoError(t, err)

	s := m.Snapshot()
	restored, err := Restore(s)
	require.NoError(t, err)
	assert.Equal(t, s, restored.Snapshot())

	a, err := m.Run(context.Background(), 0)
	require.NoError(t, err)
	b, err := restored.Run(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, a.Steps, b.Steps)
	assert.Equal(t, m.Snapshot(), restored.Snapshot())

	// the snapshot does not alias the running image
	assert.NotEqual(t, s.Image, m.Snapshot().Image)
}

func TestSnapshotJSON(t *testing.T) {
	m := New(assemble(t, countdown), WithLegacyInstructionSet())
	m.SetAccumulator(0xabcdef01)
	s := m.Snapshot()

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"image":"0x00000005`)
	assert.Contains(t, string(data), `"imageHash":"`+s.ImageHash().Hex()+`"`)
	assert.Contains(t, string(data), `"legacy":true`)

	var back State
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, *s, back)

	tampered := strings.Replace(string(data), `"image":"0x00000005`, `"image":"0x00000006`, 1)
	assert.Error(t, json.Unmarshal([]byte(tampered), &back))
}

func TestSnapshotCBOR(t *testing.T) {
	m := New(assemble(t, countdown))
	step(t, m)
	s := m.Snapshot()

	data, err := MarshalState(s)
	require.NoError(t, err)
	again, err := MarshalState(m.Snapshot())
	require.NoError(t, err)
	assert.Equal(t, data, again, "canonical encoding is deterministic")

	back, err := UnmarshalState(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)

	_, err = UnmarshalState([]byte{0xff})
	assert.Error(t, err)
}

func TestRestoreRejectsBadImage(t *testing.T) {
	_, err := Restore(&State{Image: make([]byte, 10)})
	assert.ErrorIs(t, err, avmerrors.ErrMalformedProgramImage)
}
