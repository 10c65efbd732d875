package pack

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textOf(t *testing.T, mf MatchFinder, blocks ...string) string {
	t.Helper()
	var buf bytes.Buffer
	w := &Writer{
		Dest:        &buf,
		MatchFinder: mf,
		Encoder:     TextEncoder{},
	}
	for _, b := range blocks {
		_, err := w.Write([]byte(b))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.String()
}

func TestHashChainGreedy(t *testing.T) {
	tests := []struct {
		name   string
		mf     MatchFinder
		blocks []string
		want   string
	}{
		{"one block", &HashChain{}, []string{"_abcdefgh_abcdefgh"}, "_abcdefgh<9,9>"},
		{"two blocks", &HashChain{}, []string{"_abcdefgh", "_abcdefgh"}, "_abcdefgh<9,9>"},
		{"max length", &HashChain{MaxLength: 5}, []string{"_abcdefgh_abcdefgh"}, "_abcdefgh<5,9><4,9>"},
		{"min length", &HashChain{Parser: &GreedyParser{MinLength: 10}}, []string{"_abcdefgh_abcdefgh"}, "_abcdefgh_abcdefgh"},
		{"no repeats", &HashChain{}, []string{"abcdefghijklmnop"}, "abcdefghijklmnop"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textOf(t, tt.mf, tt.blocks...))
		})
	}
}

func TestHashChainSearchOrder(t *testing.T) {
	src := []byte("_abcdefX_abcdeY_abcdZ_abcdefg")
	q := &HashChain{SearchLen: 16}
	q.FindMatches(nil, src)

	pos := bytes.LastIndex(src, []byte("abcdefg"))
	matches := q.Search(nil, pos, pos, len(src))
	require.Len(t, matches, 3)
	for i, m := range matches {
		assert.Equal(t, pos, m.Start)
		assert.Equal(t, src[m.Match:m.Match+m.Length()], src[m.Start:m.End])
		if i > 0 {
			assert.Greater(t, m.Length(), matches[i-1].Length())
		}
	}
	assert.Equal(t, 6, matches[len(matches)-1].Length())
}

// replay rebuilds the data from matches, appending to history.
func replay(t *testing.T, history, src []byte, matches []Match) []byte {
	t.Helper()
	pos := 0
	for _, m := range matches {
		history = append(history, src[pos:pos+m.Unmatched]...)
		pos += m.Unmatched
		if m.Length == 0 {
			continue
		}
		require.LessOrEqual(t, m.Distance, len(history), "match reaches before the start")
		for i := 0; i < m.Length; i++ {
			history = append(history, history[len(history)-m.Distance])
		}
		pos += m.Length
	}
	return append(history, src[pos:]...)
}

func TestMatchFindersLongStream(t *testing.T) {
	words := []string{"alpha ", "beta ", "gamma ", "delta ", "epsilon ", "zeta ", "eta\n"}
	r := rand.New(rand.NewSource(3))
	var data []byte
	for len(data) < 600000 {
		data = append(data, words[r.Intn(len(words))]...)
	}

	finders := map[string]MatchFinder{
		"greedy":    &HashChain{SearchLen: 8, MaxDistance: 32768, MaxLength: 258},
		"lazy":      &HashChain{SearchLen: 8, MaxDistance: 32768, MaxLength: 258, Parser: &LazyParser{}},
		"overlap":   &HashChain{SearchLen: 8, MaxDistance: 32768, MaxLength: 258, Parser: &OverlapParser{}},
		"dual":      &DualHash{MaxDistance: 32768, MaxLength: 258},
		"dual lazy": &DualHash{MaxDistance: 32768, MaxLength: 258, Parser: &LazyParser{}},
	}
	for name, mf := range finders {
		t.Run(name, func(t *testing.T) {
			var out []byte
			var matched int
			for start := 0; start < len(data); start += 40000 {
				end := start + 40000
				if end > len(data) {
					end = len(data)
				}
				block := data[start:end]
				matches := mf.FindMatches(nil, block)
				for _, m := range matches {
					require.GreaterOrEqual(t, m.Unmatched, 0)
					require.LessOrEqual(t, m.Distance, 32768)
					require.LessOrEqual(t, m.Length, 258)
					if m.Length > 0 {
						require.GreaterOrEqual(t, m.Length, 4)
						require.Greater(t, m.Distance, 0)
					}
					matched += m.Length
				}
				out = replay(t, out, block, matches)
			}
			assert.True(t, bytes.Equal(data, out))
			assert.Greater(t, matched, len(data)/2)
		})
	}
}

func TestLazyParserPrefersLongerMatch(t *testing.T) {
	// The match found at the second "abcd" is 5 bytes long, but one byte
	// later "bcdXYZW" has 7.
	src := "_abcdQ_bcdXYZW_abcdXYZW"
	greedy := textOf(t, &HashChain{SearchLen: 16}, src)
	lazy := textOf(t, &HashChain{SearchLen: 16, Parser: &LazyParser{}}, src)
	assert.Equal(t, "_abcdQ_bcdXYZW<5,14><4,9>", greedy)
	assert.Equal(t, "_abcdQ_bcdXYZW_a<7,9>", lazy)
}

func TestOverlapParserScore(t *testing.T) {
	src := "_abcdefgh_abcdefgh"
	never := func([]byte, AbsoluteMatch) int { return 0 }
	tests := []struct {
		name string
		p    *OverlapParser
		want string
	}{
		{"length", &OverlapParser{}, "_abcdefgh<9,9>"},
		{"min length", &OverlapParser{MinLength: 10}, src},
		{"zero score", &OverlapParser{Score: never}, src},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textOf(t, &HashChain{SearchLen: 16, Parser: tt.p}, src))
		})
	}
}

func TestHashChainReset(t *testing.T) {
	q := &HashChain{}
	assert.Equal(t, "_abcdefgh", textOf(t, q, "_abcdefgh"))
	q.Reset()
	// After a reset, earlier data can no longer be matched.
	assert.Equal(t, "_abcdefgh", textOf(t, q, "_abcdefgh"))
}

type errWriter struct{ n int }

func (w *errWriter) Write(p []byte) (int, error) {
	w.n++
	return 0, errors.New("disk full")
}

func TestWriterError(t *testing.T) {
	dest := &errWriter{}
	w := &Writer{
		Dest:        dest,
		MatchFinder: &HashChain{},
		Encoder:     TextEncoder{},
	}
	_, err := w.Write([]byte("some data"))
	assert.Error(t, err)
	_, err = w.Write([]byte("more data"))
	assert.Error(t, err)
	assert.Error(t, w.Close())
	assert.Equal(t, 1, dest.n)

	var buf bytes.Buffer
	w.Reset(&buf)
	_, err = w.Write([]byte("fresh start"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.Equal(t, "fresh start", buf.String())
}

func TestWriterBlockSize(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{
		Dest:        &buf,
		MatchFinder: &HashChain{},
		Encoder:     TextEncoder{},
		BlockSize:   4,
	}
	for _, s := range []string{"ab", "cdefg", "hij"} {
		n, err := w.Write([]byte(s))
		require.NoError(t, err)
		assert.Equal(t, len(s), n)
	}
	assert.Equal(t, "abcdefgh", buf.String(), "only whole blocks are written before Close")
	require.NoError(t, w.Close())
	assert.Equal(t, "abcdefghij", buf.String())
}
