package flate

import (
	"math"

	"github.com/packflate/pack"
	"go.uber.org/zap"
)

const (
	defaultIterations     = 15
	defaultMaxStall       = 10
	defaultRandomizeEvery = 5
)

// A SqueezeParser is a pack.Parser that looks for the parse with the
// smallest estimated compressed size, instead of choosing matches greedily.
//
// The first round finds the shortest path through the candidate matches
// using the costs of the fixed Huffman tree. Each later round derives symbol
// statistics from the previous round's parse, whether or not it was the
// cheapest so far, and finds the shortest path again using costs estimated
// from those statistics. Every few rounds the
// statistics are randomly perturbed, to escape from local minima. The
// cheapest parse seen in any round is used.
//
// A SqueezeParser must not be used by more than one goroutine at a time.
type SqueezeParser struct {
	// Iterations is the maximum number of rounds after the first one.
	// The default is 15; a negative value means only the fixed-tree round
	// is run.
	Iterations int

	// MaxStall is the number of consecutive rounds without an improvement
	// after which the search stops early. The default is 10; a negative
	// value disables the limit.
	MaxStall int

	// RandomizeEvery is the interval, in rounds, at which the statistics are
	// perturbed before the search. The default is 5; a negative value
	// disables periodic perturbation. The statistics are also perturbed
	// whenever a round reproduces the previous round's cost exactly.
	RandomizeEvery int

	// Logger receives a debug entry for each round. The default discards
	// everything.
	Logger *zap.Logger

	matchBuf   []pack.AbsoluteMatch
	candidates []candidate
	candStart  []int32

	costs   []float64
	lengths []uint16
	dists   []uint16
	tokens  [2][]Token

	stats     SymbolStats
	bestStats SymbolStats
	rand      RandomState
}

// A candidate is a match available at some position. The candidates for a
// position are in order of increasing length.
type candidate struct {
	length uint16
	dist   uint16
}

// A Round summarizes one round of the squeeze.
type Round struct {
	Cost       float64 // estimated cost of the parse found in this round
	Best       float64 // lowest cost found so far
	Randomized bool    // whether the statistics were perturbed before the search
}

// Result is the outcome of SqueezeParser.Optimize.
type Result struct {
	// Tokens is the cheapest parse found. It covers the input range exactly.
	Tokens []Token

	// Cost is the estimated size of Tokens in bits.
	Cost float64

	// StaticCost is the estimated size in bits of the parse found with the
	// fixed-tree costs, before any statistics were available.
	StaticCost float64

	// Rounds has an entry for each round, starting with the fixed-tree round.
	Rounds []Round

	// Stats holds the symbol statistics of Tokens.
	Stats SymbolStats
}

func (p *SqueezeParser) setDefaults() {
	if p.Iterations == 0 {
		p.Iterations = defaultIterations
	}
	if p.MaxStall == 0 {
		p.MaxStall = defaultMaxStall
	}
	if p.RandomizeEvery == 0 {
		p.RandomizeEvery = defaultRandomizeEvery
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
}

// Parse implements pack.Parser.
func (p *SqueezeParser) Parse(dst []pack.Match, s pack.Searcher, src []byte, start, end int) []pack.Match {
	res := p.Optimize(s, src, start, end)
	return appendMatches(dst, res.Tokens)
}

// Optimize finds a low-cost parse of src[start:end], using the matches
// that s finds.
//
// Parses are compared by their cost under the statistics derived from the
// parse itself, so the fixed-tree round and the statistics rounds are
// measured the same way.
func (p *SqueezeParser) Optimize(s pack.Searcher, src []byte, start, end int) Result {
	if s == nil {
		panic("flate: Optimize called with a nil Searcher")
	}
	p.setDefaults()

	var res Result
	if end <= start {
		p.stats.Derive(nil)
		res.Stats = p.stats
		return res
	}

	p.findCandidates(s, start, end)
	p.rand.Reset()

	bufs := p.tokens
	bufs[0] = p.shortestPath(bufs[0][:0], src, start, end, FixedCost{})
	p.stats.Derive(bufs[0])
	cost := p.stats.Cost(bufs[0])
	p.bestStats = p.stats
	best, bestIdx := cost, 0
	res.StaticCost = cost
	res.Rounds = append(res.Rounds, Round{Cost: cost, Best: best})
	p.Logger.Debug("squeeze round",
		zap.Int("round", 0),
		zap.Float64("cost", cost),
		zap.Float64("best", best),
	)

	lastCost, prevCost := cost, math.Inf(1)
	stall := 0
	for round := 1; round <= p.Iterations; round++ {
		randomize := (p.RandomizeEvery > 0 && round%p.RandomizeEvery == 0) || lastCost == prevCost
		if randomize {
			p.stats = p.bestStats
			p.stats.Randomize(&p.rand)
			p.stats.Calculate()
		}

		next := 1 - bestIdx
		bufs[next] = p.shortestPath(bufs[next][:0], src, start, end, StatCost{Stats: &p.stats})
		p.stats.Derive(bufs[next])
		cost = p.stats.Cost(bufs[next])

		if cost < best {
			best, bestIdx = cost, next
			p.bestStats = p.stats
			stall = 0
		} else {
			stall++
		}
		res.Rounds = append(res.Rounds, Round{Cost: cost, Best: best, Randomized: randomize})
		p.Logger.Debug("squeeze round",
			zap.Int("round", round),
			zap.Float64("cost", cost),
			zap.Float64("best", best),
			zap.Bool("randomized", randomize),
		)

		if p.MaxStall > 0 && stall >= p.MaxStall {
			break
		}
		prevCost, lastCost = lastCost, cost
	}
	p.tokens = bufs

	res.Tokens = append([]Token(nil), bufs[bestIdx]...)
	res.Cost = best
	res.Stats = p.bestStats
	p.Logger.Debug("squeeze finished",
		zap.Int("bytes", end-start),
		zap.Int("rounds", len(res.Rounds)),
		zap.Int("tokens", len(res.Tokens)),
		zap.Float64("static_cost", res.StaticCost),
		zap.Float64("cost", res.Cost),
	)
	return res
}

// findCandidates fills the match cache for src[start:end]. The searcher is
// consulted once per position; every round reuses the result.
func (p *SqueezeParser) findCandidates(s pack.Searcher, start, end int) {
	p.candidates = p.candidates[:0]
	p.candStart = append(p.candStart[:0], 0)
	for pos := start; pos < end; pos++ {
		p.matchBuf = s.Search(p.matchBuf[:0], pos, pos, end)
		for _, m := range p.matchBuf {
			length, dist := m.Length(), m.Distance()
			if m.Start != pos || length < minMatchLength || dist < 1 || dist > windowSize {
				continue
			}
			if length > maxMatchLength {
				length = maxMatchLength
			}
			p.candidates = append(p.candidates, candidate{
				length: uint16(length),
				dist:   uint16(dist),
			})
		}
		p.candStart = append(p.candStart, int32(len(p.candidates)))
	}
}

// shortestPath finds the cheapest way to cover src[start:end] with literals
// and cached candidate matches, under model, and appends it to dst.
// Of two edges with the same cost, the one tried first wins.
func (p *SqueezeParser) shortestPath(dst []Token, src []byte, start, end int, model CostModel) []Token {
	n := end - start
	p.costs = resizeFloats(p.costs, n+1)
	p.lengths = resizeUint16s(p.lengths, n+1)
	p.dists = resizeUint16s(p.dists, n+1)
	costs, lengths, dists := p.costs, p.lengths, p.dists

	costs[0] = 0
	for i := 1; i <= n; i++ {
		costs[i] = math.Inf(1)
	}

	for i := 0; i < n; i++ {
		c := costs[i]

		if newCost := c + model.Cost(int(src[start+i]), 0); newCost < costs[i+1] {
			costs[i+1] = newCost
			lengths[i+1] = 1
			dists[i+1] = 0
		}

		l := minMatchLength
		for _, m := range p.candidates[p.candStart[i]:p.candStart[i+1]] {
			for ; l <= int(m.length); l++ {
				newCost := c + model.Cost(l, int(m.dist))
				if newCost < costs[i+l] {
					costs[i+l] = newCost
					lengths[i+l] = uint16(l)
					dists[i+l] = m.dist
				}
			}
		}
	}

	// Follow the path back from the end, then reverse it.
	first := len(dst)
	for j := n; j > 0; {
		l := int(lengths[j])
		if dists[j] == 0 {
			dst = append(dst, Token{LitLen: uint16(src[start+j-1])})
		} else {
			dst = append(dst, Token{LitLen: uint16(l), Dist: dists[j]})
		}
		j -= l
	}
	for i, j := first, len(dst)-1; i < j; i, j = i+1, j-1 {
		dst[i], dst[j] = dst[j], dst[i]
	}
	return dst
}

// appendMatches converts tokens to pack.Match form.
func appendMatches(dst []pack.Match, tokens []Token) []pack.Match {
	unmatched := 0
	for _, t := range tokens {
		if t.Dist == 0 {
			unmatched++
			continue
		}
		dst = append(dst, pack.Match{
			Unmatched: unmatched,
			Length:    int(t.LitLen),
			Distance:  int(t.Dist),
		})
		unmatched = 0
	}
	if unmatched > 0 {
		dst = append(dst, pack.Match{
			Unmatched: unmatched,
		})
	}
	return dst
}

func resizeFloats(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	return s[:n]
}

func resizeUint16s(s []uint16, n int) []uint16 {
	if cap(s) < n {
		return make([]uint16, n)
	}
	return s[:n]
}
