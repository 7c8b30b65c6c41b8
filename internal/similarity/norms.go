package similarity

import "math/bits"

// Document lengths are stored as one byte per document: the first 24 values
// are exact and larger lengths keep four significant bits.
const numFreeValues = 255 - 231

func longToInt4(i uint64) int {
	numBits := 64 - bits.LeadingZeros64(i)
	if numBits < 4 {
		return int(i)
	}
	shift := numBits - 4
	encoded := int(i>>uint(shift)) & 0x07
	encoded |= (shift + 1) << 3
	return encoded
}

func int4ToLong(i int) uint64 {
	b := uint64(i & 0x07)
	shift := (i >> 3) - 1
	if shift == -1 {
		return b
	}
	return (b | 0x08) << uint(shift)
}

// EncodeLength packs a document length into its one-byte norm.
func EncodeLength(length int) byte {
	if length < 0 {
		length = 0
	}
	if length < numFreeValues {
		return byte(length)
	}
	return byte(numFreeValues + longToInt4(uint64(length-numFreeValues)))
}

// DecodeLength expands a one-byte norm back to an approximate length.
func DecodeLength(b byte) int {
	i := int(b)
	if i < numFreeValues {
		return i
	}
	return numFreeValues + int(int4ToLong(i-numFreeValues))
}

// QuantizeLength is the length a scorer observes after the norm round trip.
func QuantizeLength(length int) int {
	return DecodeLength(EncodeLength(length))
}
