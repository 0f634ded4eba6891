package program

import (
	"fmt"
	"os"

	"github.com/colorfulnotion/avm/avmerrors"
	"github.com/colorfulnotion/avm/common"
)

// Image is a program image: parameters, data, code and reserved regions in
// one fixed size buffer. Every region is plain addressable memory.
type Image struct {
	buf [ImageSize]byte
}

// AddressError reports an operand pair that does not name a word.
type AddressError struct {
	X, Y byte
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address (%d, %d): %v", e.X, e.Y, avmerrors.ErrAddressOutOfRange)
}

func (e *AddressError) Unwrap() error {
	return avmerrors.ErrAddressOutOfRange
}

// New copies buf into a fresh image. buf must be exactly ImageSize bytes.
func New(buf []byte) (*Image, error) {
	if len(buf) != ImageSize {
		return nil, fmt.Errorf("got %d bytes, want %d: %w", len(buf), ImageSize, avmerrors.ErrMalformedProgramImage)
	}
	img := &Image{}
	copy(img.buf[:], buf)
	return img, nil
}

// Empty returns a zeroed image.
func Empty() *Image {
	return &Image{}
}

// Load reads an image file. Files of any other size than ImageSize are
// rejected rather than truncated or padded.
func Load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	img, err := New(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return img, nil
}

// Save writes the raw image bytes to path.
func (img *Image) Save(path string) error {
	if err := os.WriteFile(path, img.buf[:], 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// Bytes returns a copy of the image contents.
func (img *Image) Bytes() []byte {
	out := make([]byte, ImageSize)
	copy(out, img.buf[:])
	return out
}

func (img *Image) Clone() *Image {
	c := *img
	return &c
}

// Hash is the BLAKE2b-256 content hash of the image.
func (img *Image) Hash() common.Hash {
	return common.Blake2Hash(img.buf[:])
}

// Equal reports whether two images hold the same bytes.
func (img *Image) Equal(other *Image) bool {
	return other != nil && img.buf == other.buf
}

// ReadBytes returns a copy of n bytes at offset. Access outside the image is
// a programming error and panics.
func (img *Image) ReadBytes(offset, n int) []byte {
	if offset < 0 || n < 0 || offset+n > ImageSize {
		panic(fmt.Sprintf("program: read [%d, %d) outside image", offset, offset+n))
	}
	out := make([]byte, n)
	copy(out, img.buf[offset:offset+n])
	return out
}

// WriteBytes copies data into the image at offset. Access outside the image
// is a programming error and panics.
func (img *Image) WriteBytes(offset int, data []byte) {
	if offset < 0 || offset+len(data) > ImageSize {
		panic(fmt.Sprintf("program: write [%d, %d) outside image", offset, offset+len(data)))
	}
	copy(img.buf[offset:], data)
}

// WordAt reads the big-endian word at a word aligned byte offset.
func (img *Image) WordAt(offset int) uint32 {
	return common.BytesToUint32(img.ReadBytes(offset, WordSize))
}

// SetWordAt writes v big-endian at a byte offset.
func (img *Image) SetWordAt(offset int, v uint32) {
	img.WriteBytes(offset, common.Uint32ToBytes(v))
}

// Word reads the word addressed by the operand pair (x, y).
func (img *Image) Word(x, y byte) (uint32, error) {
	off, err := WordOffset(x, y)
	if err != nil {
		return 0, err
	}
	return img.WordAt(off), nil
}

// SetWord writes the word addressed by the operand pair (x, y).
func (img *Image) SetWord(x, y byte, v uint32) error {
	off, err := WordOffset(x, y)
	if err != nil {
		return err
	}
	img.SetWordAt(off, v)
	return nil
}

// Slot returns the raw instruction bytes held in a code slot.
func (img *Image) Slot(slot int) ([InstructionSize]byte, error) {
	var raw [InstructionSize]byte
	if slot < 0 || slot >= CodeSlots {
		return raw, fmt.Errorf("slot %d of %d: %w", slot, CodeSlots, avmerrors.ErrProgramCounterOverflow)
	}
	copy(raw[:], img.buf[SlotOffset(slot):])
	return raw, nil
}

// SetSlot encodes ins into a code slot.
func (img *Image) SetSlot(slot int, ins Instruction) error {
	if slot < 0 || slot >= CodeSlots {
		return fmt.Errorf("slot %d of %d: %w", slot, CodeSlots, avmerrors.ErrProgramCounterOverflow)
	}
	raw := ins.Encode()
	copy(img.buf[SlotOffset(slot):], raw[:])
	return nil
}

// Region returns a copy of the bytes of one region.
func (img *Image) Region(r Region) []byte {
	info := r.Info()
	return img.ReadBytes(info.Base, info.Len())
}
