package common

import (
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/blake2b"
)

// HashLength is the size of an image content address.
const HashLength = ethereumCommon.HashLength

// Hash content-addresses program images and snapshots.
type Hash ethereumCommon.Hash

func Blake2Hash(data []byte) Hash {
	return Hash(blake2b.Sum256(data))
}

func BytesToHash(b []byte) Hash { return Hash(ethereumCommon.BytesToHash(b)) }

func HexToHash(s string) Hash { return Hash(ethereumCommon.HexToHash(s)) }

// IsHexHash reports whether s is a 0x prefixed 32 byte hex string.
func IsHexHash(s string) bool {
	if len(s) != 2+2*HashLength {
		return false
	}
	_, err := hexutil.Decode(s)
	return err == nil
}

func IsNilHash(h Hash) bool { return h == Hash{} }

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) Hex() string    { return ethereumCommon.Hash(h).Hex() }
func (h Hash) String() string { return h.Hex() }

// Short renders the first and last two bytes, e.g. "1a2b..9f00".
func (h Hash) Short() string {
	s := h.Hex()
	return fmt.Sprintf("%s..%s", s[2:6], s[len(s)-4:])
}

func (h Hash) MarshalText() ([]byte, error) {
	return hexutil.Bytes(h[:]).MarshalText()
}

func (h *Hash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("Hash", input, h[:])
}
