package vm

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/colorfulnotion/avm/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundledPrograms(t *testing.T) {
	cases := []struct {
		file  string
		acc   uint32
		steps uint64
		check func(t *testing.T, m *VM)
	}{
		{"sum.asm", 0, 5, func(t *testing.T, m *VM) {
			w, _ := m.Word(0, 3)
			assert.Equal(t, uint32(3), w)
			assert.True(t, m.Flag(FlagZero))
		}},
		{"countdown.asm", 0, 60, func(t *testing.T, m *VM) {
			w, _ := m.Word(0, 0)
			assert.Zero(t, w)
		}},
		{"multiply.asm", 42, 7*9 + 3 + 2, func(t *testing.T, m *VM) {
			w, _ := m.Word(1, 1)
			assert.Zero(t, w)
		}},
		{"patch.asm", 0x48414c54, 3, nil},
	}
	for _, tc := range cases {
		t.Run(tc.file, func(t *testing.T) {
			src, err := os.ReadFile(filepath.Join("..", "programs", tc.file))
			require.NoError(t, err)
			asm, err := program.Assemble(string(src))
			require.NoError(t, err)

			m := New(asm.Image)
			res, err := m.Run(context.Background(), 10_000)
			require.NoError(t, err)
			assert.Equal(t, Halted, res.Status)
			assert.Equal(t, tc.acc, res.Accumulator)
			assert.Equal(t, tc.steps, res.Steps)
			if tc.check != nil {
				tc.check(t, m)
			}
		})
	}
}
