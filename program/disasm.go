// Disassembler - renders program images as assembly listings and region trees

package program

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Line is one disassembled code slot.
type Line struct {
	Slot        int
	Raw         [InstructionSize]byte
	Instruction Instruction
	Valid       bool
}

// String renders the slot as assembler input. Undecodable slots and
// operands outside [0, MaxOperand] become .raw directives so the listing
// reassembles to the same bytes.
func (l Line) String() string {
	if l.Valid && !l.wideOperand() {
		return l.Instruction.String()
	}
	return fmt.Sprintf(".raw 0x%02x 0x%02x 0x%02x 0x%02x", l.Raw[0], l.Raw[1], l.Raw[2], l.Raw[3])
}

func (l Line) wideOperand() bool {
	ins := l.Instruction
	return ins.Op.HasOperands() && (ins.X > MaxOperand || ins.Y > MaxOperand)
}

func (l Line) isZero() bool {
	return l.Raw == [InstructionSize]byte{}
}

// DisassembleSlot decodes a single code slot.
func DisassembleSlot(img *Image, slot int) (Line, error) {
	raw, err := img.Slot(slot)
	if err != nil {
		return Line{}, err
	}
	ins, err := Decode(raw)
	return Line{Slot: slot, Raw: raw, Instruction: ins, Valid: err == nil}, nil
}

// Disassemble decodes every code slot up to the last non-zero one.
func Disassemble(img *Image) []Line {
	lines := make([]Line, 0, CodeSlots)
	last := -1
	for slot := 0; slot < CodeSlots; slot++ {
		l, _ := DisassembleSlot(img, slot)
		lines = append(lines, l)
		if !l.isZero() {
			last = slot
		}
	}
	return lines[:last+1]
}

// DataWord is a non-zero word outside the code region.
type DataWord struct {
	X, Y   byte
	Offset int
	Value  uint32
	Region Region
}

// NonZeroWords lists the non-zero words of the parameter, data and reserved
// regions in address order.
func NonZeroWords(img *Image) []DataWord {
	var out []DataWord
	for off := 0; off < ImageSize; off += WordSize {
		r := RegionOf(off)
		if r == RegionCode {
			continue
		}
		v := img.WordAt(off)
		if v == 0 {
			continue
		}
		x, y, _ := OperandsOf(off)
		out = append(out, DataWord{X: x, Y: y, Offset: off, Value: v, Region: r})
	}
	return out
}

// Source renders img as assembler source. Assemble(Source(img)) reproduces
// img byte for byte.
func Source(img *Image) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; image %s\n", img.Hash().Hex())
	for _, w := range NonZeroWords(img) {
		fmt.Fprintf(&sb, ".word %d %d 0x%08x ; %s\n", w.X, w.Y, w.Value, w.Region)
	}
	next := 0
	for _, l := range Disassemble(img) {
		if l.isZero() {
			continue
		}
		if l.Slot != next {
			fmt.Fprintf(&sb, ".org %d\n", l.Slot)
		}
		fmt.Fprintf(&sb, "%s ; %04d\n", l.String(), l.Slot)
		next = l.Slot + 1
	}
	return sb.String()
}

// Tree renders img region by region.
func Tree(img *Image) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("image %s", img.Hash().Short()))

	branches := make(map[Region]treeprint.Tree, len(Regions))
	for _, r := range Regions {
		branches[r.Region] = tree.AddBranch(fmt.Sprintf("%s [%d, %d)", r.Name, r.Base, r.End()))
	}
	for _, w := range NonZeroWords(img) {
		branches[w.Region].AddMetaNode(fmt.Sprintf("%d %d", w.X, w.Y), fmt.Sprintf("0x%08x (%d)", w.Value, w.Value))
	}
	for _, l := range Disassemble(img) {
		if l.isZero() {
			continue
		}
		branches[RegionCode].AddMetaNode(fmt.Sprintf("%04d", l.Slot), l.String())
	}
	return tree
}
