package pack

// A LazyParser implements lazy matching: before using the longest match at
// a position, it checks whether the next position has a longer one, and if
// so, it emits a literal and uses that match instead.
type LazyParser struct {
	// MinLength is the length of the shortest match to use.
	// The default is 4.
	MinLength int

	matchCache []AbsoluteMatch
}

func (p *LazyParser) Parse(dst []Match, s Searcher, src []byte, start, end int) []Match {
	if p.MinLength == 0 {
		p.MinLength = 4
	}
	matches := p.matchCache[:0]
	nextEmit := start

	for i := start; i+1 < end; {
		matches = s.Search(matches[:0], i, nextEmit, end)
		m := longestMatch(matches)
		if m.Length() < p.MinLength {
			i++
			continue
		}

		// Now try lazy matching.
		matches = s.Search(matches[:0], i+1, nextEmit, end)
		if next := longestMatch(matches); next.Length() > m.Length() {
			m = next
		}

		dst = append(dst, Match{
			Unmatched: m.Start - nextEmit,
			Length:    m.Length(),
			Distance:  m.Distance(),
		})
		nextEmit = m.End
		i = m.End
	}

	if nextEmit < end {
		dst = append(dst, Match{
			Unmatched: end - nextEmit,
		})
	}
	p.matchCache = matches[:0]
	return dst
}
