package flate

import "math"

// A Token is one element of a parse: a literal byte if Dist is 0, and
// otherwise a back-reference of LitLen bytes copied from Dist bytes back.
type Token struct {
	LitLen uint16
	Dist   uint16
}

// IsLiteral reports whether t is a literal byte.
func (t Token) IsLiteral() bool {
	return t.Dist == 0
}

// Len returns the number of input bytes covered by t.
func (t Token) Len() int {
	if t.Dist == 0 {
		return 1
	}
	return int(t.LitLen)
}

// SymbolStats holds symbol counts for a parse, and the estimated bit length
// of each symbol derived from them.
type SymbolStats struct {
	// LitLens holds the literal and length symbol counts.
	LitLens [numLitLens]uint
	// Dists holds the distance symbol counts (the 30 symbols, not the 32768
	// possible distances).
	Dists [numDists]uint

	// LLSymbols is the estimated length of each literal/length symbol in bits.
	LLSymbols [numLitLens]float64
	// DSymbols is the estimated length of each distance symbol in bits.
	DSymbols [numDists]float64
}

// Clear zeroes the counts and the estimated lengths.
func (s *SymbolStats) Clear() {
	*s = SymbolStats{}
}

// CopyFrom copies the counts and estimated lengths from other.
func (s *SymbolStats) CopyFrom(other *SymbolStats) {
	*s = *other
}

// Accumulate replaces the counts with the symbol counts of tokens.
// The end-of-block symbol is always counted once.
func (s *SymbolStats) Accumulate(tokens []Token) {
	s.LitLens = [numLitLens]uint{}
	s.Dists = [numDists]uint{}
	for _, t := range tokens {
		if t.Dist == 0 {
			s.LitLens[t.LitLen]++
		} else {
			s.LitLens[lengthSymbol(int(t.LitLen))]++
			s.Dists[distSymbol(int(t.Dist))]++
		}
	}
	s.LitLens[endOfBlock] = 1
}

// Calculate derives LLSymbols and DSymbols from the counts.
func (s *SymbolStats) Calculate() {
	calculateEntropy(s.LitLens[:], s.LLSymbols[:])
	calculateEntropy(s.Dists[:], s.DSymbols[:])
}

// Derive recomputes the counts from tokens and the estimated lengths from
// the counts.
func (s *SymbolStats) Derive(tokens []Token) {
	s.Accumulate(tokens)
	s.Calculate()
}

// Cost returns the total estimated size of tokens in bits, using the
// current estimated lengths.
func (s *SymbolStats) Cost(tokens []Token) float64 {
	c := StatCost{Stats: s}
	var total float64
	for _, t := range tokens {
		total += c.Cost(int(t.LitLen), int(t.Dist))
	}
	return total
}

// calculateEntropy sets bitLengths[i] to the Shannon information content
// of symbol i, given the symbol counts. A symbol that does not occur is
// treated as if it occurred once in the total.
func calculateEntropy(count []uint, bitLengths []float64) {
	var sum uint
	for _, c := range count {
		sum += c
	}

	var log2sum float64
	if sum == 0 {
		log2sum = math.Log2(float64(len(count)))
	} else {
		log2sum = math.Log2(float64(sum))
	}

	for i, c := range count {
		if c == 0 {
			bitLengths[i] = log2sum
		} else {
			bitLengths[i] = log2sum - math.Log2(float64(c))
		}
		// Round-off can leave a tiny negative value when one symbol has
		// all the counts.
		if bitLengths[i] < 0 && bitLengths[i] > -1e-5 {
			bitLengths[i] = 0
		}
	}
}
