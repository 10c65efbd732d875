package flate

import "math/bits"

const (
	numLitLens = 286 // literal/length alphabet, including the end-of-block symbol
	numDists   = 30  // distance alphabet

	endOfBlock = 256

	minMatchLength = 3
	maxMatchLength = 258
	windowSize     = 1 << 15
)

// lengthBase is the smallest length coded by each length symbol
// (symbol 257 + index).
var lengthBase = [29]uint16{
	3, 4, 5, 6, 7, 8, 9, 10, 11, 13,
	15, 17, 19, 23, 27, 31, 35, 43, 51, 59,
	67, 83, 99, 115, 131, 163, 195, 227, 258,
}

var lengthExtra = [29]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 1, 1,
	1, 1, 2, 2, 2, 2, 3, 3, 3, 3,
	4, 4, 4, 4, 5, 5, 5, 5, 0,
}

// lengthCode maps a match length to its index in lengthBase.
var lengthCode [maxMatchLength + 1]uint8

func init() {
	code := 0
	for l := minMatchLength; l <= maxMatchLength; l++ {
		for code+1 < len(lengthBase) && int(lengthBase[code+1]) <= l {
			code++
		}
		lengthCode[l] = uint8(code)
	}
}

// lengthSymbol returns the literal/length symbol for a match of length l.
func lengthSymbol(l int) int {
	return 257 + int(lengthCode[l])
}

func lengthExtraBits(l int) int {
	return int(lengthExtra[lengthCode[l]])
}

// lengthExtraValue returns the value stored in the extra bits for length l.
func lengthExtraValue(l int) int {
	return l - int(lengthBase[lengthCode[l]])
}

// distSymbol returns the distance symbol for distance d (1..32768).
func distSymbol(d int) int {
	if d < 5 {
		return d - 1
	}
	l := bits.Len32(uint32(d-1)) - 1
	r := ((d - 1) >> (l - 1)) & 1
	return l*2 + r
}

func distExtraBits(d int) int {
	if d < 5 {
		return 0
	}
	return bits.Len32(uint32(d-1)) - 2
}

// distExtraValue returns the value stored in the extra bits for distance d.
func distExtraValue(d int) int {
	if d < 5 {
		return 0
	}
	return (d - 1) & (1<<uint(distExtraBits(d)) - 1)
}
