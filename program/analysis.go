package program

import (
	"golang.org/x/exp/slices"
)

// ProgramStats contains static statistics about a program image
type ProgramStats struct {
	InstructionCount   int              // decodable code slots
	InvalidCount       int              // non-zero slots that do not decode
	OpcodeDistribution map[Mnemonic]int // Distribution of mnemonics
	JumpTableWords     []int            // byte offsets of words read as jump targets
	CodeStores         []int            // slots whose SR writes into the code region
	HaltSlots          []int
}

// Analyze walks the code region of img without executing it.
func Analyze(img *Image) *ProgramStats {
	stats := &ProgramStats{
		OpcodeDistribution: make(map[Mnemonic]int),
	}
	jumps := make(map[int]struct{})
	for _, l := range Disassemble(img) {
		if !l.Valid {
			if !l.isZero() {
				stats.InvalidCount++
			}
			continue
		}
		stats.InstructionCount++
		ins := l.Instruction
		stats.OpcodeDistribution[ins.Op]++

		switch ins.Op {
		case HALT:
			stats.HaltSlots = append(stats.HaltSlots, l.Slot)
		case JP, JB:
			if off, err := ins.Target(); err == nil {
				jumps[off] = struct{}{}
			}
		case SR:
			if off, err := ins.Target(); err == nil && RegionOf(off) == RegionCode {
				stats.CodeStores = append(stats.CodeStores, l.Slot)
			}
		}
	}
	for off := range jumps {
		stats.JumpTableWords = append(stats.JumpTableWords, off)
	}
	slices.Sort(stats.JumpTableWords)
	return stats
}

// SelfModifying reports whether any store targets the code region.
func (s *ProgramStats) SelfModifying() bool {
	return len(s.CodeStores) > 0
}

// Mnemonics returns the mnemonics present, in instruction set order.
func (s *ProgramStats) Mnemonics() []Mnemonic {
	out := make([]Mnemonic, 0, len(s.OpcodeDistribution))
	for _, m := range Mnemonics {
		if s.OpcodeDistribution[m] > 0 {
			out = append(out, m)
		}
	}
	return out
}
