package flate

// RandomState is the state of a "multiply-with-carry" pseudo-random number
// generator (by G. Marsaglia). It is used to perturb symbol statistics
// between squeeze rounds, so its output sequence must stay the same across
// implementations: the compressed output depends on it.
//
// The zero value is not a usable state; call Reset (or use NewRandomState)
// first.
type RandomState struct {
	w, z uint32
}

// NewRandomState returns a generator in its initial state.
func NewRandomState() *RandomState {
	r := new(RandomState)
	r.Reset()
	return r
}

// Reset returns r to the fixed initial state.
func (r *RandomState) Reset() {
	r.w = 1
	r.z = 2
}

// Next advances the generator and returns the next 32-bit value.
func (r *RandomState) Next() uint32 {
	r.z = 36969*(r.z&65535) + (r.z >> 16)
	r.w = 18000*(r.w&65535) + (r.w >> 16)
	return (r.z << 16) + r.w
}

// randomizeFreqs replaces about a third of the entries in freqs with the
// value of another, randomly chosen, entry.
func randomizeFreqs(r *RandomState, freqs []uint) {
	n := uint32(len(freqs))
	for i := range freqs {
		if (r.Next()>>4)%3 == 0 {
			freqs[i] = freqs[r.Next()%n]
		}
	}
}

// Randomize perturbs the symbol counts, to help the squeeze escape from a
// local minimum. Calculate must be called afterwards to update the
// estimated lengths.
func (s *SymbolStats) Randomize(r *RandomState) {
	if r == nil {
		panic("flate: Randomize called with a nil RandomState")
	}
	randomizeFreqs(r, s.LitLens[:])
	randomizeFreqs(r, s.Dists[:])
	s.LitLens[endOfBlock] = 1
}
