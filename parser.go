package pack

// An AbsoluteMatch is like a Match, but it stores indexes into the byte
// stream instead of lengths.
type AbsoluteMatch struct {
	// Start is the index of the first byte.
	Start int

	// End is the index of the byte after the last byte
	// (so that End - Start = Length).
	End int

	// Match is the index of the previous data that matches
	// (Start - Match = Distance).
	Match int
}

// Length returns the number of bytes covered by m.
func (m AbsoluteMatch) Length() int {
	return m.End - m.Start
}

// Distance returns how far back m copies from.
func (m AbsoluteMatch) Distance() int {
	return m.Start - m.Match
}

// A Searcher is the source of matches for a Parser. It is a lower-level
// interface than MatchFinder, only looking for matches at one position at a
// time. A type that uses a Parser to implement MatchFinder can implement
// Searcher as well, and pass itself to the Parser.
type Searcher interface {
	// Search looks for matches at pos and appends them to dst.
	// In each match, Start and End must fall within the interval [min,max),
	// and Match < Start < End. Matches are appended in order of increasing
	// length.
	Search(dst []AbsoluteMatch, pos, min, max int) []AbsoluteMatch
}

// A Parser chooses which matches to use to compress the data.
type Parser interface {
	// Parse gets matches from s, chooses which ones to use, and appends
	// them to dst. The matches cover the range of bytes src[start:end].
	// src is the buffer that s searches; positions are indexes into it.
	Parse(dst []Match, s Searcher, src []byte, start, end int) []Match
}

// A GreedyParser implements the greedy matching strategy: It goes from start
// to end, choosing the longest match at each position.
type GreedyParser struct {
	// MinLength is the length of the shortest match to use.
	// The default is 4.
	MinLength int

	matchCache []AbsoluteMatch
}

func (p *GreedyParser) Parse(dst []Match, s Searcher, src []byte, start, end int) []Match {
	if p.MinLength == 0 {
		p.MinLength = 4
	}
	matches := p.matchCache[:0]
	i := start
	nextEmit := start
	var m AbsoluteMatch

mainLoop:
	for {
		nextI := i
		for {
			i = nextI
			nextI = i + 1
			if nextI >= end {
				break mainLoop
			}

			matches = s.Search(matches[:0], i, nextEmit, end)
			m = longestMatch(matches)
			if m.Length() >= p.MinLength {
				break
			}
		}

		dst = append(dst, Match{
			Unmatched: m.Start - nextEmit,
			Length:    m.Length(),
			Distance:  m.Distance(),
		})
		i = m.End
		nextEmit = i
	}

	if nextEmit < end {
		dst = append(dst, Match{
			Unmatched: end - nextEmit,
		})
	}
	p.matchCache = matches[:0]
	return dst
}

func longestMatch(matches []AbsoluteMatch) AbsoluteMatch {
	var longest AbsoluteMatch

	for _, m := range matches {
		if m.Length() > longest.Length() {
			longest = m
		}
	}

	return longest
}
