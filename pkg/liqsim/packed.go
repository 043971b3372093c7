package liqsim

import "math/big"

// The exchange packs markPNS, oraclePNS and their timestamps into one
// 256-bit storage word. Fields are observed to sit on 32-bit windows;
// the probe stride below matches that observation.

const (
	wordBits       = 256
	fieldWidthBits = 32
	probeStride    = 32
)

var fieldMask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), fieldWidthBits), big.NewInt(1))

// ExtractField reads the 32-bit window at bitOffset from a 256-bit word.
func ExtractField(word *big.Int, bitOffset uint) uint64 {
	v := new(big.Int).Rsh(word, bitOffset)
	v.And(v, fieldMask)
	return v.Uint64()
}

// WriteField returns a copy of word with the 32-bit window at bitOffset
// replaced by value; every other bit is preserved.
func WriteField(word *big.Int, bitOffset uint, value uint64) *big.Int {
	mask := new(big.Int).Lsh(fieldMask, bitOffset)
	out := new(big.Int).AndNot(word, mask)
	v := new(big.Int).SetUint64(value)
	v.And(v, fieldMask)
	v.Lsh(v, bitOffset)
	return out.Or(out, v)
}

// fieldOffsets records where each packed field was discovered in the
// price word. Offsets are bit positions; -1 means not found.
type fieldOffsets struct {
	mark     int
	oracle   int
	markTs   int
	oracleTs int
}
