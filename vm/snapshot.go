package vm

import (
	"encoding/json"
	"fmt"

	"github.com/colorfulnotion/avm/common"
	"github.com/colorfulnotion/avm/program"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fxamacker/cbor/v2"
)

// State is a complete, serialisable copy of a machine.
type State struct {
	PC           uint16 `json:"pc" cbor:"1,keyasint"`
	Accumulator  uint32 `json:"accumulator" cbor:"2,keyasint"`
	Flags        uint8  `json:"flags" cbor:"3,keyasint"`
	StackPointer uint8  `json:"stackPointer" cbor:"4,keyasint"`
	Halted       bool   `json:"halted" cbor:"5,keyasint"`
	Steps        uint64 `json:"steps" cbor:"6,keyasint"`
	Legacy       bool   `json:"legacy,omitempty" cbor:"7,keyasint,omitempty"`
	Image        []byte `json:"image" cbor:"8,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot copies the registers, counters and image.
func (vm *VM) Snapshot() *State {
	return &State{
		PC:           vm.pc,
		Accumulator:  vm.acc,
		Flags:        vm.flags,
		StackPointer: vm.sp,
		Halted:       vm.halted,
		Steps:        vm.steps,
		Legacy:       vm.legacy,
		Image:        vm.image.Bytes(),
	}
}

// Restore builds a machine that continues exactly where s left off.
// Tracer and logger come from opts; the instruction set from s.
func Restore(s *State, opts ...Option) (*VM, error) {
	img, err := program.New(s.Image)
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	vm := New(img, opts...)
	vm.pc = s.PC
	vm.acc = s.Accumulator
	vm.flags = s.Flags
	vm.sp = s.StackPointer
	vm.halted = s.Halted
	vm.steps = s.Steps
	vm.legacy = s.Legacy
	return vm, nil
}

// ImageHash is the content hash of the snapshot's image.
func (s *State) ImageHash() common.Hash {
	return common.Blake2Hash(s.Image)
}

type stateJSON struct {
	PC           uint16        `json:"pc"`
	Accumulator  uint32        `json:"accumulator"`
	Flags        uint8         `json:"flags"`
	StackPointer uint8         `json:"stackPointer"`
	Halted       bool          `json:"halted"`
	Steps        uint64        `json:"steps"`
	Legacy       bool          `json:"legacy,omitempty"`
	ImageHash    common.Hash   `json:"imageHash"`
	Image        hexutil.Bytes `json:"image"`
}

// MarshalJSON writes the image as 0x-prefixed hex next to its hash.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		PC:           s.PC,
		Accumulator:  s.Accumulator,
		Flags:        s.Flags,
		StackPointer: s.StackPointer,
		Halted:       s.Halted,
		Steps:        s.Steps,
		Legacy:       s.Legacy,
		ImageHash:    s.ImageHash(),
		Image:        s.Image,
	})
}

// UnmarshalJSON rejects snapshots whose image does not match the recorded hash.
func (s *State) UnmarshalJSON(data []byte) error {
	var aux stateJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = State{
		PC:           aux.PC,
		Accumulator:  aux.Accumulator,
		Flags:        aux.Flags,
		StackPointer: aux.StackPointer,
		Halted:       aux.Halted,
		Steps:        aux.Steps,
		Legacy:       aux.Legacy,
		Image:        []byte(aux.Image),
	}
	if !common.IsNilHash(aux.ImageHash) && aux.ImageHash != s.ImageHash() {
		return fmt.Errorf("snapshot image hash %s does not match content %s", aux.ImageHash, s.ImageHash())
	}
	return nil
}

// MarshalState encodes s as canonical CBOR.
func MarshalState(s *State) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

func UnmarshalState(data []byte) (*State, error) {
	var s State
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal state: %w", err)
	}
	return &s, nil
}
