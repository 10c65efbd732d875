package flate

import (
	"fmt"
	"io"
	"strings"

	"github.com/packflate/pack"
)

// A Format selects the framing around the DEFLATE data.
type Format int

const (
	Raw  Format = iota // bare DEFLATE (RFC 1951)
	GZIP               // gzip (RFC 1952)
	Zlib               // zlib (RFC 1950)
)

func (f Format) String() string {
	switch f {
	case Raw:
		return "deflate"
	case GZIP:
		return "gzip"
	case Zlib:
		return "zlib"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Extension returns the usual file name extension for f.
func (f Format) Extension() string {
	switch f {
	case GZIP:
		return ".gz"
	case Zlib:
		return ".zlib"
	}
	return ".deflate"
}

// ParseFormat returns the Format named by s ("deflate", "gzip", or "zlib").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "deflate", "raw":
		return Raw, nil
	case "gzip", "gz":
		return GZIP, nil
	case "zlib":
		return Zlib, nil
	}
	return Raw, fmt.Errorf("flate: unknown format %q", s)
}

// NewFormatEncoder returns an Encoder for f.
func NewFormatEncoder(f Format) pack.Encoder {
	switch f {
	case GZIP:
		return NewGZIPEncoder()
	case Zlib:
		return NewZlibEncoder()
	}
	return NewEncoder()
}

// NewWriter returns a new pack.Writer that compresses data at the given level,
// in flate encoding. Levels 1–9 are available; levels outside this range will
// be replaced with the closest level available.
func NewWriter(w io.Writer, level int) *pack.Writer {
	return newWriter(w, NewMatchFinder(level), NewEncoder())
}

// NewGZIPWriter returns a new pack.Writer that compresses data at the given
// level, in gzip encoding. Levels 1–9 are available; levels outside this range
// will be replaced by the closest level available.
func NewGZIPWriter(w io.Writer, level int) *pack.Writer {
	return newWriter(w, NewMatchFinder(level), NewGZIPEncoder())
}

// NewZlibWriter is like NewGZIPWriter, but in zlib encoding.
func NewZlibWriter(w io.Writer, level int) *pack.Writer {
	return newWriter(w, NewMatchFinder(level), NewZlibEncoder())
}

// NewSqueezeWriter returns a new pack.Writer that compresses data with p
// choosing the matches, in format f. If p is nil, a SqueezeParser with the
// default settings is used.
func NewSqueezeWriter(w io.Writer, f Format, p *SqueezeParser) *pack.Writer {
	return newWriter(w, NewSqueezeMatchFinder(p, 0), NewFormatEncoder(f))
}

func newWriter(w io.Writer, m pack.MatchFinder, e pack.Encoder) *pack.Writer {
	return &pack.Writer{
		Dest:        w,
		MatchFinder: m,
		Encoder:     e,
		BlockSize:   1 << 16,
	}
}

// NewMatchFinder returns a MatchFinder for DEFLATE at the given level.
// Levels 1-3 use DualHash with greedy parsing; higher levels search hash
// chains, with lazy matching from level 5 and overlap parsing at 8 and 9.
func NewMatchFinder(level int) pack.MatchFinder {
	if level < 1 {
		level = 1
	}
	if level > 9 {
		level = 9
	}
	if level <= 3 {
		return &pack.DualHash{
			MaxDistance: windowSize,
			MaxLength:   maxMatchLength,
			Parser:      &pack.GreedyParser{MinLength: 7 - level},
		}
	}

	var p pack.Parser
	switch {
	case level == 4:
		p = &pack.GreedyParser{}
	case level <= 7:
		p = &pack.LazyParser{}
	default:
		p = &pack.OverlapParser{Score: fixedSavings}
	}
	return &pack.HashChain{
		SearchLen:   1 << (level - 3),
		MaxDistance: windowSize,
		MaxLength:   maxMatchLength,
		Parser:      p,
	}
}

// fixedSavings scores m by the number of bits it saves over coding the same
// bytes as literals, with the fixed-tree code lengths. Matches DEFLATE cannot
// represent score 0.
func fixedSavings(src []byte, m pack.AbsoluteMatch) int {
	n, dist := m.Length(), m.Distance()
	if n < minMatchLength || n > maxMatchLength || dist < 1 || dist > windowSize {
		return 0
	}
	var fc FixedCost
	literals := 0.0
	for _, c := range src[m.Start:m.End] {
		literals += fc.Cost(int(c), 0)
	}
	if saved := int(literals - fc.Cost(n, dist)); saved > 0 {
		return saved
	}
	return 0
}

const defaultSqueezeSearchLen = 128

// NewSqueezeMatchFinder returns a MatchFinder that searches searchLen
// entries of each hash chain and lets p choose the matches. A searchLen of
// 0 means 128.
func NewSqueezeMatchFinder(p *SqueezeParser, searchLen int) pack.MatchFinder {
	if p == nil {
		p = &SqueezeParser{}
	}
	if searchLen <= 0 {
		searchLen = defaultSqueezeSearchLen
	}
	return &pack.HashChain{
		SearchLen:   searchLen,
		MaxDistance: windowSize,
		MaxLength:   maxMatchLength,
		Parser:      p,
	}
}
