package pack

import (
	"encoding/binary"
	"math/bits"
	"runtime"
)

// HashChain is an implementation of the MatchFinder and Searcher interfaces
// that uses hash chaining to find candidate matches, and a Parser to choose
// among them.
type HashChain struct {
	// SearchLen is how many entries to examine on the hash chain.
	// The default is 1.
	SearchLen int

	// MaxDistance is the maximum distance (in bytes) to look back for
	// a match. The default is 65535.
	MaxDistance int

	// MaxLength is the length of the longest match to return.
	// The default (0) means no limit.
	MaxLength int

	// Parser chooses which matches to use. The default is a GreedyParser.
	Parser Parser

	table [maxTableSize]uint32

	history []byte
	chain   []uint16
}

const (
	minHistory = 1 << 16
	maxHistory = 1 << 18

	maxTableSize = 1 << 14
	shift        = 32 - 14
	// tableMask is redundant, but helps the compiler eliminate bounds
	// checks.
	tableMask = maxTableSize - 1
)

func (q *HashChain) Reset() {
	q.table = [maxTableSize]uint32{}
	q.history = q.history[:0]
	q.chain = q.chain[:0]
}

// FindMatches looks for matches in src, appends them to dst, and returns dst.
func (q *HashChain) FindMatches(dst []Match, src []byte) []Match {
	if q.MaxDistance == 0 {
		q.MaxDistance = 65535
	}
	if q.SearchLen == 0 {
		q.SearchLen = 1
	}
	if q.Parser == nil {
		q.Parser = &GreedyParser{}
	}

	if len(q.history) > maxHistory {
		q.trimHistory(len(q.history) - minHistory)
	}

	// Append src to the history buffer.
	nextEmit := len(q.history)
	q.history = append(q.history, src...)
	q.insertHashes()

	return q.Parser.Parse(dst, q, q.history, nextEmit, len(q.history))
}

// trimHistory drops the first delta bytes of the history buffer, and
// adjusts the hash table to match.
func (q *HashChain) trimHistory(delta int) {
	copy(q.history, q.history[delta:])
	q.history = q.history[:len(q.history)-delta]
	copy(q.chain, q.chain[delta:])
	q.chain = q.chain[:len(q.chain)-delta]

	shiftTable(q.table[:], delta)
}

// shiftTable subtracts delta from each position in table, clamping at 0.
func shiftTable(table []uint32, delta int) {
	for i, v := range table {
		newV := int(v) - delta
		if newV < 0 {
			newV = 0
		}
		table[i] = uint32(newV)
	}
}

// insertHashes extends the hash chains to cover every position in the
// history buffer that has 4 bytes available.
func (q *HashChain) insertHashes() {
	src := q.history
	chain := q.chain
	for i := len(chain); i+3 < len(src); i++ {
		h := hash4(binary.LittleEndian.Uint32(src[i:]))
		candidate := int(q.table[h&tableMask])
		q.table[h&tableMask] = uint32(i)
		if candidate == 0 || i-candidate > 65535 {
			chain = append(chain, 0)
		} else {
			chain = append(chain, uint16(i-candidate))
		}
	}
	q.chain = chain
}

const hashMul32 = 0x1e35a7bd

func hash4(u uint32) uint32 {
	return (u * hashMul32) >> shift
}

// extendMatch returns the largest k such that k <= len(src) and that
// src[i:i+k-j] and src[j:k] have the same contents.
//
// It assumes that:
//
//	0 <= i && i < j && j <= len(src)
func extendMatch(src []byte, i, j int) int {
	switch runtime.GOARCH {
	case "amd64":
		// As long as we are 8 or more bytes before the end of src, we can load and
		// compare 8 bytes at a time. If those 8 bytes are equal, repeat.
		for j+8 < len(src) {
			iBytes := binary.LittleEndian.Uint64(src[i:])
			jBytes := binary.LittleEndian.Uint64(src[j:])
			if iBytes != jBytes {
				// If those 8 bytes were not equal, XOR the two 8 byte values, and return
				// the index of the first byte that differs. The BSF instruction finds the
				// least significant 1 bit, the amd64 architecture is little-endian, and
				// the shift by 3 converts a bit index to a byte index.
				return j + bits.TrailingZeros64(iBytes^jBytes)>>3
			}
			i, j = i+8, j+8
		}
	case "386":
		// On a 32-bit CPU, we do it 4 bytes at a time.
		for j+4 < len(src) {
			iBytes := binary.LittleEndian.Uint32(src[i:])
			jBytes := binary.LittleEndian.Uint32(src[j:])
			if iBytes != jBytes {
				return j + bits.TrailingZeros32(iBytes^jBytes)>>3
			}
			i, j = i+4, j+4
		}
	}
	for ; j < len(src) && src[i] == src[j]; i, j = i+1, j+1 {
	}
	return j
}

// Search looks for matches at pos by walking its hash chain. Each match
// appended is longer than the one before it, so the last one is the longest.
func (q *HashChain) Search(dst []AbsoluteMatch, pos, min, max int) []AbsoluteMatch {
	if pos >= len(q.chain) || pos+4 > len(q.history) || pos+4 > max {
		return dst
	}
	src := q.history
	searchSeq := binary.LittleEndian.Uint32(src[pos:])

	var length int

	candidate := pos
	for i := 0; i < q.SearchLen; i++ {
		d := q.chain[candidate]
		if d == 0 {
			break
		}
		candidate -= int(d)
		if candidate < 0 || pos-candidate > q.MaxDistance {
			break
		}
		if binary.LittleEndian.Uint32(src[candidate:]) != searchSeq {
			continue
		}

		newEnd := extendMatch(src[:max], candidate+4, pos+4)

		// Extend the match backward as far as possible.
		newStart := pos
		newMatch := candidate
		for newStart > min && newMatch > 0 && src[newStart-1] == src[newMatch-1] {
			newStart--
			newMatch--
		}

		if q.MaxLength > 0 && newEnd-newStart > q.MaxLength {
			newEnd = newStart + q.MaxLength
		}

		if newEnd-newStart > length {
			dst = append(dst, AbsoluteMatch{
				Start: newStart,
				End:   newEnd,
				Match: newMatch,
			})
			length = newEnd - newStart
			if length == q.MaxLength {
				break
			}
		}
	}

	return dst
}
