package common

import "encoding/binary"

// Words are stored big-endian in program images.

func Uint32ToBytes(val uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, val)
	return b
}

func BytesToUint32(data []byte) uint32 {
	if len(data) < 4 {
		panic("BytesToUint32: byte slice too short")
	}
	return binary.BigEndian.Uint32(data)
}
