// Package pack is a modular system for LZ77 data compression.
//
// Compression is split into two steps that can be mixed and matched:
//   - a MatchFinder looks for repeated sequences of bytes,
//   - an Encoder writes the matches in its final format.
//
// The Match slice passed between them is the intermediate representation.
// A MatchFinder that separates searching from choosing (such as HashChain)
// delegates the choice to a Parser, so the same match source can drive a
// greedy parse or an iterative optimal parse (see the flate package).
package pack

// A Match is the basic unit of LZ77 compression.
type Match struct {
	Unmatched int // the number of unmatched bytes since the previous match
	Length    int // the number of bytes in the matched string; it may be 0 at the end of the input
	Distance  int // how far back in the stream to copy from
}

// A MatchFinder performs the LZ77 stage of compression, looking for matches.
type MatchFinder interface {
	// FindMatches looks for matches in src, appends them to dst, and returns dst.
	FindMatches(dst []Match, src []byte) []Match

	// Reset clears any internal state, preparing the MatchFinder to be used with
	// a new stream.
	Reset()
}

// An Encoder encodes the data in its final format.
type Encoder interface {
	// Encode appends the encoded format of src to dst, using the match
	// information from matches. The first call after Reset also writes
	// the stream header, and the call with lastBlock set writes the trailer.
	Encode(dst []byte, src []byte, matches []Match, lastBlock bool) []byte

	// Reset clears any internal state, preparing the Encoder to be used with
	// a new stream.
	Reset()
}
