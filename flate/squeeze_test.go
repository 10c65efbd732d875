package flate

import (
	"bytes"
	stdflate "compress/flate"
	"io"
	"testing"

	kflate "github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/packflate/pack"
)

func checkRounds(t *testing.T, res Result) {
	t.Helper()
	require.NotEmpty(t, res.Rounds)
	assert.Equal(t, res.StaticCost, res.Rounds[0].Cost)
	assert.False(t, res.Rounds[0].Randomized)

	prev := res.Rounds[0].Best
	for i, r := range res.Rounds {
		assert.LessOrEqual(t, r.Best, prev, "round %d: best went up", i)
		assert.LessOrEqual(t, r.Best, r.Cost, "round %d", i)
		prev = r.Best
	}
	assert.Equal(t, prev, res.Cost)
	assert.LessOrEqual(t, res.Cost, res.StaticCost)
	assert.InDelta(t, res.Cost, res.Stats.Cost(res.Tokens), 1e-6)
}

func TestOptimizeRepeatedBytes(t *testing.T) {
	src := bytes.Repeat([]byte{'a'}, 1000)
	p := &SqueezeParser{}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))

	checkRounds(t, res)
	require.NotEmpty(t, res.Tokens)
	assert.Equal(t, Token{LitLen: 'a'}, res.Tokens[0])
	for _, tok := range res.Tokens[1:] {
		if tok.IsLiteral() {
			assert.Equal(t, uint16('a'), tok.LitLen)
		} else {
			assert.Equal(t, uint16(1), tok.Dist)
		}
	}
	assert.Less(t, len(res.Tokens), 20)
	assert.Equal(t, src, decodeTokens(nil, res.Tokens))
}

func TestOptimizeText(t *testing.T) {
	src := testText(3000)
	p := &SqueezeParser{Iterations: 8}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))

	checkRounds(t, res)
	assert.Equal(t, src, decodeTokens(nil, res.Tokens))
	for i, tok := range res.Tokens {
		if !tok.IsLiteral() {
			assert.GreaterOrEqual(t, int(tok.LitLen), minMatchLength, "token %d", i)
			assert.LessOrEqual(t, int(tok.LitLen), maxMatchLength, "token %d", i)
		}
	}
	// The text is redundant enough that matches must win.
	assert.Less(t, len(res.Tokens), len(src)/2)
}

func TestOptimizeSubrange(t *testing.T) {
	src := testText(1200)
	p := &SqueezeParser{Iterations: 3}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 400, 1000)

	checkRounds(t, res)
	assert.Equal(t, src[:1000], decodeTokens(append([]byte(nil), src[:400]...), res.Tokens))
}

func TestOptimizeEmptyRange(t *testing.T) {
	src := testText(100)
	p := &SqueezeParser{}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 50, 50)
	assert.Empty(t, res.Tokens)
	assert.Empty(t, res.Rounds)
	assert.Equal(t, 0.0, res.Cost)
}

func TestOptimizeNilSearcher(t *testing.T) {
	p := &SqueezeParser{}
	assert.Panics(t, func() { p.Optimize(nil, []byte("abc"), 0, 3) })
}

func TestOptimizeIterations(t *testing.T) {
	src := testText(2000)
	p := &SqueezeParser{Iterations: 4, MaxStall: -1}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))
	assert.Len(t, res.Rounds, 5)
}

func TestOptimizeFixedTreeOnly(t *testing.T) {
	src := testText(2000)
	s := bruteSearcher{src, windowSize}

	res := (&SqueezeParser{Iterations: -1}).Optimize(s, src, 0, len(src))
	require.Len(t, res.Rounds, 1)
	assert.Equal(t, res.StaticCost, res.Cost)

	// Zero selects the default.
	res = (&SqueezeParser{MaxStall: -1}).Optimize(s, src, 0, len(src))
	assert.Len(t, res.Rounds, defaultIterations+1)
}

func TestOptimizeUsesPreviousRoundStats(t *testing.T) {
	src := testText(4000)
	s := bruteSearcher{src, windowSize}
	res := (&SqueezeParser{Iterations: 30, MaxStall: -1}).Optimize(s, src, 0, len(src))
	require.Len(t, res.Rounds, 31)

	// Replay the rounds. A round that is not randomized is priced with
	// the statistics of the round before it, even when that round was
	// worse than the best one.
	p := &SqueezeParser{}
	p.findCandidates(s, 0, len(src))
	r := NewRandomState()

	var stats SymbolStats
	tokens := p.shortestPath(nil, src, 0, len(src), FixedCost{})
	stats.Derive(tokens)
	best, bestCost := stats, stats.Cost(tokens)
	afterWorse := 0
	for i := 1; i < len(res.Rounds); i++ {
		if res.Rounds[i].Randomized {
			stats = best
			stats.Randomize(r)
			stats.Calculate()
		} else if res.Rounds[i-1].Cost > res.Rounds[i-1].Best {
			afterWorse++
		}
		tokens = p.shortestPath(nil, src, 0, len(src), StatCost{Stats: &stats})
		stats.Derive(tokens)
		cost := stats.Cost(tokens)
		require.Equal(t, res.Rounds[i].Cost, cost, "round %d", i)
		if cost < bestCost {
			best, bestCost = stats, cost
		}
	}
	assert.Greater(t, afterWorse, 0, "no round followed a worse one")
	assert.Equal(t, bestCost, res.Cost)
}

func TestOptimizeRandomizeEvery(t *testing.T) {
	src := testText(2000)
	p := &SqueezeParser{Iterations: 6, MaxStall: -1, RandomizeEvery: 2}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))

	require.Len(t, res.Rounds, 7)
	for _, i := range []int{2, 4, 6} {
		assert.True(t, res.Rounds[i].Randomized, "round %d", i)
	}
	checkRounds(t, res)
}

func TestOptimizeMaxStall(t *testing.T) {
	src := testText(2000)
	p := &SqueezeParser{Iterations: 60, MaxStall: 3}
	res := p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))
	checkRounds(t, res)

	stall := 0
	for i := 1; i < len(res.Rounds); i++ {
		if res.Rounds[i].Best < res.Rounds[i-1].Best {
			stall = 0
			continue
		}
		stall++
		assert.LessOrEqual(t, stall, 3, "round %d", i)
	}
	if len(res.Rounds) < 61 {
		assert.Equal(t, 3, stall, "stopped early without stalling")
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	src := testText(2500)
	s := bruteSearcher{src, windowSize}

	a := (&SqueezeParser{}).Optimize(s, src, 0, len(src))
	b := (&SqueezeParser{}).Optimize(s, src, 0, len(src))
	assert.Equal(t, a.Tokens, b.Tokens)
	assert.Equal(t, a.Cost, b.Cost)

	// A parser that has already been used gives the same answer.
	p := &SqueezeParser{}
	rb := randomBytes(500)
	p.Optimize(bruteSearcher{rb, windowSize}, rb, 0, len(rb))
	c := p.Optimize(s, src, 0, len(src))
	assert.Equal(t, a.Tokens, c.Tokens)
}

func TestOptimizeLogsRounds(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	src := testText(1000)
	p := &SqueezeParser{Iterations: 3, MaxStall: -1, Logger: zap.New(core)}
	p.Optimize(bruteSearcher{src, windowSize}, src, 0, len(src))

	assert.Equal(t, 4, logs.FilterMessage("squeeze round").Len())
	assert.Equal(t, 1, logs.FilterMessage("squeeze finished").Len())
}

func TestShortestPathFixedCost(t *testing.T) {
	src := []byte("abcabcabcabc")
	p := &SqueezeParser{}
	p.findCandidates(bruteSearcher{src, windowSize}, 0, len(src))
	tokens := p.shortestPath(nil, src, 0, len(src), FixedCost{})

	want := []Token{
		{LitLen: 'a'}, {LitLen: 'b'}, {LitLen: 'c'},
		{LitLen: 9, Dist: 3},
	}
	assert.Equal(t, want, tokens)
}

func TestAppendMatches(t *testing.T) {
	tokens := []Token{
		{LitLen: 'x'}, {LitLen: 'y'},
		{LitLen: 5, Dist: 2},
		{LitLen: 4, Dist: 7},
		{LitLen: 'z'},
	}
	want := []pack.Match{
		{Unmatched: 2, Length: 5, Distance: 2},
		{Unmatched: 0, Length: 4, Distance: 7},
		{Unmatched: 1},
	}
	assert.Equal(t, want, appendMatches(nil, tokens))
}

func decompress(t *testing.T, compressed []byte) []byte {
	t.Helper()
	want, err := io.ReadAll(kflate.NewReader(bytes.NewReader(compressed)))
	require.NoError(t, err)
	got, err := io.ReadAll(stdflate.NewReader(bytes.NewReader(compressed)))
	require.NoError(t, err)
	require.Equal(t, want, got, "decoders disagree")
	return got
}

func TestSqueezeRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"text":     testText(20000),
		"repeated": bytes.Repeat([]byte("ab"), 5000),
		"random":   randomBytes(3000),
		"empty":    nil,
		"one byte": {'q'},
	}
	for name, src := range inputs {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewSqueezeWriter(&buf, Raw, &SqueezeParser{Iterations: 5})
			_, err := w.Write(src)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			assert.Equal(t, len(src), len(decompress(t, buf.Bytes())))
			assert.True(t, bytes.Equal(src, decompress(t, buf.Bytes())))
		})
	}
}

func TestSqueezeSmallerThanStatic(t *testing.T) {
	src := testText(8000)
	p := &SqueezeParser{}
	var buf bytes.Buffer
	w := &pack.Writer{
		Dest:        &buf,
		MatchFinder: NewSqueezeMatchFinder(p, 0),
		Encoder:     NewEncoder(),
	}
	_, err := w.Write(src)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, src, decompress(t, buf.Bytes()))
	assert.Less(t, buf.Len(), len(src)/2)
}

func benchmarkWriter(b *testing.B, src []byte, newWriter func(io.Writer) *pack.Writer) {
	b.ReportAllocs()
	b.SetBytes(int64(len(src)))
	var buf bytes.Buffer
	for i := 0; i < b.N; i++ {
		buf.Reset()
		w := newWriter(&buf)
		w.Write(src)
		w.Close()
	}
	b.ReportMetric(float64(len(src))/float64(buf.Len()), "ratio")
}

func BenchmarkSqueeze(b *testing.B) {
	benchmarkWriter(b, testText(1<<17), func(w io.Writer) *pack.Writer {
		return NewSqueezeWriter(w, Raw, nil)
	})
}

func BenchmarkGreedy9(b *testing.B) {
	benchmarkWriter(b, testText(1<<17), func(w io.Writer) *pack.Writer {
		return NewWriter(w, 9)
	})
}
