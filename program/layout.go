package program

// Image layout. The binary format depends on these values; they are not
// configurable.
const (
	WordSize  = 4  // bytes per word
	BlockSize = 16 // words per block
	BlockLen  = BlockSize * WordSize

	ParamBlocks    = 1
	DataBlocks     = 7
	CodeBlocks     = 6
	ReservedBlocks = 2
	TotalBlocks    = ParamBlocks + DataBlocks + CodeBlocks + ReservedBlocks

	ImageSize = TotalBlocks * BlockLen // 1024

	ParamBase    = 0
	DataBase     = ParamBase + ParamBlocks*BlockLen
	CodeBase     = DataBase + DataBlocks*BlockLen
	ReservedBase = CodeBase + CodeBlocks*BlockLen

	InstructionSize = WordSize
	CodeSlots       = CodeBlocks * BlockLen / InstructionSize // 96

	// MaxOperand is the largest block or word index an operand may carry.
	MaxOperand = BlockSize - 1
)

// Region identifies one of the four contiguous groups of blocks.
type Region int

const (
	RegionParams Region = iota
	RegionData
	RegionCode
	RegionReserved
	RegionNone
)

// RegionInfo describes where a region lives in the image.
type RegionInfo struct {
	Region Region
	Name   string
	Base   int
	Blocks int
}

// Len is the region size in bytes.
func (r RegionInfo) Len() int {
	return r.Blocks * BlockLen
}

// End is the first byte offset past the region.
func (r RegionInfo) End() int {
	return r.Base + r.Len()
}

// Words is the number of words in the region.
func (r RegionInfo) Words() int {
	return r.Len() / WordSize
}

// Contains reports whether a byte offset lies inside the region.
func (r RegionInfo) Contains(offset int) bool {
	return offset >= r.Base && offset < r.End()
}

var Regions = [...]RegionInfo{
	{RegionParams, "params", ParamBase, ParamBlocks},
	{RegionData, "data", DataBase, DataBlocks},
	{RegionCode, "code", CodeBase, CodeBlocks},
	{RegionReserved, "reserved", ReservedBase, ReservedBlocks},
}

func (r Region) String() string {
	if r < RegionParams || r >= RegionNone {
		return "none"
	}
	return Regions[r].Name
}

// Info returns the layout of r.
func (r Region) Info() RegionInfo {
	if r < RegionParams || r >= RegionNone {
		return RegionInfo{Region: RegionNone, Name: "none"}
	}
	return Regions[r]
}

// RegionOf returns the region holding a byte offset, or RegionNone when the
// offset is outside the image.
func RegionOf(offset int) Region {
	for _, r := range Regions {
		if r.Contains(offset) {
			return r.Region
		}
	}
	return RegionNone
}

// WordOffset maps an operand pair to the byte offset of the addressed word.
// x is the block index and y the word index within the block, both counted
// from byte 0 of the image with no region offset.
func WordOffset(x, y byte) (int, error) {
	if x > MaxOperand || y > MaxOperand {
		return 0, &AddressError{X: x, Y: y}
	}
	return (int(x)*BlockSize + int(y)) * WordSize, nil
}

// OperandsOf is the inverse of WordOffset for word aligned offsets.
func OperandsOf(offset int) (x, y byte, ok bool) {
	if offset < 0 || offset >= ImageSize || offset%WordSize != 0 {
		return 0, 0, false
	}
	word := offset / WordSize
	return byte(word / BlockSize), byte(word % BlockSize), true
}

// SlotOffset is the byte offset of a code slot.
func SlotOffset(slot int) int {
	return CodeBase + slot*InstructionSize
}
