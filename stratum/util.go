package stratum

import "encoding/binary"

// uint32ToLeBytes converts a uint32 to its little-endian byte encoding.
func uint32ToLeBytes(i uint32) []byte {
	bytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(bytes, i)
	return bytes
}
