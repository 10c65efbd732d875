package flate

import (
	"math/rand"

	"github.com/packflate/pack"
)

var testWords = []string{
	"the", "of", "and", "light", "colours", "rays", "which", "is", "refracted",
	"prism", "experiment", "glass", "reflected", "same", "manner", "in", "a",
	"sun", "image", "red", "violet", "were", "by", "that", "more", "than",
}

// testText returns n bytes of word salad, the same every time.
func testText(n int) []byte {
	r := rand.New(rand.NewSource(1))
	b := make([]byte, 0, n+16)
	for len(b) < n {
		b = append(b, testWords[r.Intn(len(testWords))]...)
		if r.Intn(12) == 0 {
			b = append(b, ".\n"...)
		} else {
			b = append(b, ' ')
		}
	}
	return b[:n]
}

// randomBytes returns n incompressible bytes.
func randomBytes(n int) []byte {
	r := rand.New(rand.NewSource(2))
	b := make([]byte, n)
	r.Read(b)
	return b
}

// bruteSearcher finds matches by trying every distance.
type bruteSearcher struct {
	src     []byte
	maxDist int
}

func (s bruteSearcher) Search(dst []pack.AbsoluteMatch, pos, min, max int) []pack.AbsoluteMatch {
	best := 0
	for d := 1; d <= pos && d <= s.maxDist; d++ {
		l := 0
		for pos+l < max && l < maxMatchLength && s.src[pos+l] == s.src[pos+l-d] {
			l++
		}
		if l >= minMatchLength && l > best {
			dst = append(dst, pack.AbsoluteMatch{Start: pos, End: pos + l, Match: pos - d})
			best = l
		}
	}
	return dst
}

// decodeTokens expands tokens, appending to prefix.
func decodeTokens(prefix []byte, tokens []Token) []byte {
	out := prefix
	for _, t := range tokens {
		if t.IsLiteral() {
			out = append(out, byte(t.LitLen))
			continue
		}
		for i := 0; i < int(t.LitLen); i++ {
			out = append(out, out[len(out)-int(t.Dist)])
		}
	}
	return out
}
