package flate

// A CostModel estimates how many bits it will take to encode a token.
// dist is 0 for a literal (litLen is the byte value); otherwise litLen is
// the match length.
type CostModel interface {
	Cost(litLen, dist int) float64
}

// FixedCost is a CostModel that matches the fixed Huffman tree of DEFLATE.
type FixedCost struct{}

func (FixedCost) Cost(litLen, dist int) float64 {
	if dist == 0 {
		if litLen <= 143 {
			return 8
		}
		return 9
	}

	cost := 0
	if lengthSymbol(litLen) <= 279 {
		cost += 7
	} else {
		cost += 8
	}
	cost += 5 // Every distance symbol has length 5.
	return float64(cost + lengthExtraBits(litLen) + distExtraBits(dist))
}

// StatCost is a CostModel based on symbol statistics. Stats is borrowed for
// the duration of one search and must have had Calculate called on it.
type StatCost struct {
	Stats *SymbolStats
}

func (c StatCost) Cost(litLen, dist int) float64 {
	s := c.Stats
	if s == nil {
		panic("flate: StatCost used without statistics")
	}
	if dist == 0 {
		return s.LLSymbols[litLen]
	}
	lsym := lengthSymbol(litLen)
	dsym := distSymbol(dist)
	return s.LLSymbols[lsym] + float64(lengthExtraBits(litLen)) + s.DSymbols[dsym] + float64(distExtraBits(dist))
}
