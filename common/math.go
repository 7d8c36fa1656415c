package common

import (
	"encoding/binary"
	"math"
)

// Float32sToBytes appends the little-endian encoding of values to dst.
//
// Parameters:
//   - dst: the slice to append to (may be nil)
//   - values: the floats to encode
//
// Returns:
//   - []byte: dst extended by 4*len(values) bytes
func Float32sToBytes(dst []byte, values []float32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// Uint16sToBytes appends the little-endian encoding of values to dst.
func Uint16sToBytes(dst []byte, values []uint16) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint16(dst, v)
	}
	return dst
}

// Uint32sToBytes appends the little-endian encoding of values to dst.
func Uint32sToBytes(dst []byte, values []uint32) []byte {
	for _, v := range values {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return dst
}

// AlignUp rounds n up to the next multiple of align. align must be a power of two.
//
// Parameters:
//   - n: the value to round
//   - align: the power-of-two alignment
//
// Returns:
//   - uint64: the smallest multiple of align that is >= n
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}
