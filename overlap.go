package pack

// An OverlapParser builds chains of overlapping matches, each scoring higher
// than the one before it, and then cuts the overlaps out of the chain. The
// approach is described at
// https://fastcompression.blogspot.com/2011/12/advanced-parsing-strategies.html
type OverlapParser struct {
	// MinLength is the shortest match that will be emitted.
	// The default is 4.
	MinLength int

	// Score rates a match against the source it was found in. A match that
	// scores 0 or less is treated as no match. If Score is nil, the length
	// of the match is its score.
	Score func(src []byte, m AbsoluteMatch) int

	found []AbsoluteMatch
	chain []overlapLink
}

// An overlapLink is one match in a chain, along with the other matches
// that were found at the same position. If the match has to be shortened,
// a replacement is chosen from options.
type overlapLink struct {
	AbsoluteMatch
	options []AbsoluteMatch
}

func lengthScore(_ []byte, m AbsoluteMatch) int {
	return m.Length()
}

// rate returns the score of m, or 0 if m is empty.
func (p *OverlapParser) rate(src []byte, m AbsoluteMatch) int {
	if m.End <= m.Start {
		return 0
	}
	return p.Score(src, m)
}

// best clips each of options to lo..hi and returns the one with the highest
// score. If none scores above 0, it returns an empty match.
func (p *OverlapParser) best(src []byte, options []AbsoluteMatch, lo, hi int) AbsoluteMatch {
	var chosen AbsoluteMatch
	top := 0
	for _, m := range options {
		if m.Start < lo {
			m.Match += lo - m.Start
			m.Start = lo
		}
		if m.End > hi {
			m.End = hi
		}
		if s := p.rate(src, m); s > top {
			chosen, top = m, s
		}
	}
	return chosen
}

func (p *OverlapParser) Parse(dst []Match, searcher Searcher, src []byte, start, end int) []Match {
	if p.Score == nil {
		p.Score = lengthScore
	}
	if p.MinLength == 0 {
		p.MinLength = 4
	}

	emitted := start
	chain := p.chain[:0]
	for pos := start; pos < end; {
		p.found = searcher.Search(p.found[:0], pos, emitted, end)
		head := overlapLink{options: p.found}
		head.AbsoluteMatch = p.best(src, head.options, emitted, end)
		if head.Length() < p.MinLength {
			pos++
			continue
		}

		// Extend the chain with a match that starts just before the end of
		// the last one, for as long as that scores better.
		chain = append(chain[:0], head)
		for last := head; ; {
			n := len(p.found)
			p.found = searcher.Search(p.found, last.End-2, last.Start, end)
			next := overlapLink{options: p.found[n:]}
			next.AbsoluteMatch = p.best(src, next.options, last.Start, end)
			if p.rate(src, next.AbsoluteMatch) <= p.rate(src, last.AbsoluteMatch) {
				break
			}
			chain = append(chain, next)
			last = next
		}

		chain = p.resolve(src, chain, emitted, end)
		for _, l := range chain {
			dst = append(dst, Match{
				Unmatched: l.Start - emitted,
				Length:    l.Length(),
				Distance:  l.Distance(),
			})
			emitted = l.End
		}
		if emitted > pos {
			pos = emitted
		} else {
			pos++
		}
	}

	if emitted < end {
		dst = append(dst, Match{
			Unmatched: end - emitted,
		})
	}
	p.chain = chain[:0]
	return dst
}

// resolve removes the overlaps from chain, working backward from its end.
// Of two overlapping neighbors, the shorter one is cut back to the longer
// one's boundary and chosen again from its options; if that leaves it
// shorter than MinLength, it is dropped. No match is moved outside lo..hi.
func (p *OverlapParser) resolve(src []byte, chain []overlapLink, lo, hi int) []overlapLink {
	for i := len(chain) - 2; i >= 0; i-- {
		cur, next := &chain[i], &chain[i+1]
		if cur.Length() > next.Length() {
			// next has usually been cut already.
			if cur.End > next.Start {
				limit := hi
				if i+2 < len(chain) {
					limit = chain[i+2].Start
				}
				next.AbsoluteMatch = p.best(src, next.options, cur.End, limit)
			}
			if next.Length() < p.MinLength {
				chain = append(chain[:i+1], chain[i+2:]...)
				if i < len(chain)-1 {
					// Check cur against its new neighbor.
					i++
				}
			}
			continue
		}

		if cur.End > next.Start {
			cur.AbsoluteMatch = p.best(src, cur.options, lo, next.Start)
		}
		if cur.Length() < p.MinLength {
			chain = append(chain[:i], chain[i+1:]...)
		}
	}
	return chain
}
