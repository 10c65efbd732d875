package pack

import "encoding/binary"

const (
	table8Bits  = 17
	table8Size  = 1 << table8Bits
	table8Mask  = table8Size - 1
	table8Shift = 64 - table8Bits
)

// DualHash is an implementation of the MatchFinder and Searcher interfaces
// that uses two hash tables (4-byte and 8-byte), remembering one position
// per hash. It is faster than HashChain, but finds fewer matches.
//
// Search adds pos to the tables, so positions that are never searched
// can't be matched later.
type DualHash struct {
	// MaxDistance is the maximum distance (in bytes) to look back for
	// a match. The default is 65535.
	MaxDistance int

	// MaxLength is the length of the longest match to return.
	// The default (0) means no limit.
	MaxLength int

	// Parser chooses which matches to use. The default is a GreedyParser.
	Parser Parser

	table4 [maxTableSize]uint32
	table8 [table8Size]uint32

	history []byte
}

func (q *DualHash) Reset() {
	q.table4 = [maxTableSize]uint32{}
	q.table8 = [table8Size]uint32{}
	q.history = q.history[:0]
}

// FindMatches looks for matches in src, appends them to dst, and returns dst.
func (q *DualHash) FindMatches(dst []Match, src []byte) []Match {
	if q.MaxDistance == 0 {
		q.MaxDistance = 65535
	}
	if q.Parser == nil {
		q.Parser = &GreedyParser{}
	}

	if len(q.history) > maxHistory {
		delta := len(q.history) - minHistory
		copy(q.history, q.history[delta:])
		q.history = q.history[:minHistory]
		shiftTable(q.table4[:], delta)
		shiftTable(q.table8[:], delta)
	}

	nextEmit := len(q.history)
	q.history = append(q.history, src...)

	return q.Parser.Parse(dst, q, q.history, nextEmit, len(q.history))
}

func (q *DualHash) Search(dst []AbsoluteMatch, pos, min, max int) []AbsoluteMatch {
	if pos+4 > max {
		return dst
	}
	src := q.history

	var length int
	h4 := hash4(binary.LittleEndian.Uint32(src[pos:]))
	candidate4 := int(q.table4[h4&tableMask])
	q.table4[h4&tableMask] = uint32(pos)

	if candidate4 != 0 && candidate4 < pos && pos-candidate4 <= q.MaxDistance && binary.LittleEndian.Uint32(src[pos:]) == binary.LittleEndian.Uint32(src[candidate4:]) {
		m := q.extend(candidate4, pos, 4, min, max)
		dst = append(dst, m)
		length = m.Length()
	}

	if pos+8 > max {
		return dst
	}

	h8 := hash8(binary.LittleEndian.Uint64(src[pos:]))
	candidate8 := int(q.table8[h8&table8Mask])
	q.table8[h8&table8Mask] = uint32(pos)

	if candidate8 != 0 && candidate8 != candidate4 && candidate8 < pos && pos-candidate8 <= q.MaxDistance && binary.LittleEndian.Uint64(src[pos:]) == binary.LittleEndian.Uint64(src[candidate8:]) {
		if m := q.extend(candidate8, pos, 8, min, max); m.Length() > length {
			dst = append(dst, m)
		}
	}

	return dst
}

// extend builds the match between pos and candidate, which are known to
// share n bytes.
func (q *DualHash) extend(candidate, pos, n, min, max int) AbsoluteMatch {
	src := q.history
	start := pos
	match := candidate
	end := extendMatch(src[:max], match+n, start+n)
	for start > min && match > 0 && src[start-1] == src[match-1] {
		start--
		match--
	}
	if q.MaxLength > 0 && end-start > q.MaxLength {
		end = start + q.MaxLength
	}
	return AbsoluteMatch{
		Start: start,
		End:   end,
		Match: match,
	}
}

func hash8(u uint64) uint32 {
	return uint32((u * 0x1FE35A7BD3579BD3) >> table8Shift)
}
