package common

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashRoundTrip(t *testing.T) {
	h := Blake2Hash([]byte("avm"))
	require.False(t, IsNilHash(h))
	require.Equal(t, h, HexToHash(h.Hex()))
	require.True(t, IsHexHash(h.Hex()))
	require.False(t, IsHexHash("sample"))
	require.False(t, IsHexHash("0x"+h.Hex()[4:]+"zz"))
	require.Len(t, h.Short(), 10)

	b, err := json.Marshal(h)
	require.NoError(t, err)
	require.Equal(t, `"`+h.Hex()+`"`, string(b))
	var back Hash
	require.NoError(t, json.Unmarshal(b, &back))
	require.Equal(t, h, back)
	require.Error(t, json.Unmarshal([]byte(`"0x01"`), &back))
}

func TestWordBytesBigEndian(t *testing.T) {
	require.Equal(t, []byte{0, 0, 0, 3}, Uint32ToBytes(3))
	require.Equal(t, uint32(0x01020304), BytesToUint32([]byte{1, 2, 3, 4}))
	require.Panics(t, func() { BytesToUint32([]byte{1}) })
}
