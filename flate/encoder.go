package flate

import (
	"fmt"

	"github.com/packflate/pack"
)

const (
	numCodegens        = 19
	maxStoredBlockSize = 65535

	// badCode marks the end of the codegen sequence.
	badCode = 255
)

// The order in which the code-length code lengths are written.
var codegenOrder = [numCodegens]uint8{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

var (
	fixedLitDepth  [numLitLens]uint8
	fixedLitCodes  [numLitLens]uint16
	fixedDistDepth [numDists]uint8
	fixedDistCodes [numDists]uint16
)

func init() {
	// The fixed literal/length code has 288 symbols; the last two are never
	// used, but they take part in assigning the codes.
	var depth [288]uint8
	var codes [288]uint16
	for i := range depth {
		switch {
		case i < 144:
			depth[i] = 8
		case i < 256:
			depth[i] = 9
		case i < 280:
			depth[i] = 7
		default:
			depth[i] = 8
		}
	}
	convertBitDepthsToSymbols(depth[:], codes[:])
	copy(fixedLitDepth[:], depth[:])
	copy(fixedLitCodes[:], codes[:])

	for i := range fixedDistDepth {
		fixedDistDepth[i] = 5
	}
	convertBitDepthsToSymbols(fixedDistDepth[:], fixedDistCodes[:])
}

// An Encoder implements the pack.Encoder interface, writing raw DEFLATE
// data (RFC 1951). Each call to Encode writes one block, using whichever of
// stored, fixed-Huffman, or dynamic-Huffman encoding is smallest.
type Encoder struct {
	bw     bitWriter
	tokens []Token
	stats  SymbolStats

	litDepth  [numLitLens]uint8
	litCodes  [numLitLens]uint16
	distDepth [numDists]uint8
	distCodes [numDists]uint16

	codegen      []uint8
	codegenHist  [numCodegens]uint
	codegenDepth [numCodegens]uint8
	codegenCodes [numCodegens]uint16
	tree         []huffmanNode
}

// NewEncoder returns an Encoder for raw DEFLATE data.
func NewEncoder() pack.Encoder {
	return &Encoder{}
}

func (e *Encoder) Reset() {
	e.bw = bitWriter{}
}

func (e *Encoder) Encode(dst []byte, src []byte, matches []pack.Match, lastBlock bool) []byte {
	e.bw.dst = dst
	if len(src) == 0 && !lastBlock {
		return e.bw.dst
	}

	e.tokens = appendTokens(e.tokens[:0], src, matches)
	e.stats.Accumulate(e.tokens)

	extra := e.extraBits()
	fixedSize := 3 + e.dataBits(fixedLitDepth[:], fixedDistDepth[:]) + extra
	numLit, numDist, numCodegen, header := e.buildDynamic()
	dynamicSize := header + e.dataBits(e.litDepth[:], e.distDepth[:]) + extra
	storedSize := storedSize(len(src), e.bw.nbits)

	switch {
	case storedSize < fixedSize && storedSize < dynamicSize:
		e.writeStored(src, lastBlock)
	case fixedSize <= dynamicSize:
		e.bw.writeBits(3, finalBit(lastBlock)|1<<1)
		e.writeTokens(fixedLitDepth[:], fixedLitCodes[:], fixedDistDepth[:], fixedDistCodes[:])
	default:
		e.writeDynamicHeader(numLit, numDist, numCodegen, lastBlock)
		e.writeTokens(e.litDepth[:], e.litCodes[:], e.distDepth[:], e.distCodes[:])
	}

	if lastBlock {
		e.bw.jumpToByteBoundary()
	}
	return e.bw.dst
}

func finalBit(lastBlock bool) uint64 {
	if lastBlock {
		return 1
	}
	return 0
}

// appendTokens converts matches to tokens and appends them to dst. Matches
// longer than 258 bytes are split.
func appendTokens(dst []Token, src []byte, matches []pack.Match) []Token {
	pos := 0
	for _, m := range matches {
		for _, b := range src[pos : pos+m.Unmatched] {
			dst = append(dst, Token{LitLen: uint16(b)})
		}
		pos += m.Unmatched
		if m.Length == 0 {
			continue
		}
		if m.Length < minMatchLength || m.Distance < 1 || m.Distance > windowSize {
			panic(fmt.Sprintf("flate: invalid match (length %d, distance %d)", m.Length, m.Distance))
		}
		for l := m.Length; l > 0; {
			n := l
			if n > maxMatchLength {
				n = maxMatchLength
				if l-n < minMatchLength {
					n = l - minMatchLength
				}
			}
			dst = append(dst, Token{LitLen: uint16(n), Dist: uint16(m.Distance)})
			l -= n
		}
		pos += m.Length
	}
	for _, b := range src[pos:] {
		dst = append(dst, Token{LitLen: uint16(b)})
	}
	return dst
}

// extraBits returns the number of extra bits the current block's matches
// need.
func (e *Encoder) extraBits() int {
	total := 0
	for i, n := range e.stats.LitLens[257:] {
		total += int(n) * int(lengthExtra[i])
	}
	for sym, n := range e.stats.Dists {
		if sym >= 4 {
			total += int(n) * (sym/2 - 1)
		}
	}
	return total
}

// dataBits returns the size of the current block's symbols under the given
// code lengths, not counting extra bits.
func (e *Encoder) dataBits(litDepth, distDepth []uint8) int {
	total := 0
	for i, n := range e.stats.LitLens {
		total += int(n) * int(litDepth[i])
	}
	for i, n := range e.stats.Dists {
		total += int(n) * int(distDepth[i])
	}
	return total
}

// buildDynamic builds the Huffman codes for a dynamic block, and returns
// the alphabet sizes to transmit and the size of the block header in bits.
func (e *Encoder) buildDynamic() (numLit, numDist, numCodegen, headerBits int) {
	e.tree = buildDepths(e.stats.LitLens[:], 15, e.litDepth[:], e.tree)
	e.tree = buildDepths(e.stats.Dists[:], 15, e.distDepth[:], e.tree)
	convertBitDepthsToSymbols(e.litDepth[:], e.litCodes[:])
	convertBitDepthsToSymbols(e.distDepth[:], e.distCodes[:])

	numLit = numLitLens
	for numLit > 257 && e.litDepth[numLit-1] == 0 {
		numLit--
	}
	numDist = numDists
	for numDist > 1 && e.distDepth[numDist-1] == 0 {
		numDist--
	}

	e.generateCodegen(numLit, numDist)
	e.tree = buildDepths(e.codegenHist[:], 7, e.codegenDepth[:], e.tree)
	convertBitDepthsToSymbols(e.codegenDepth[:], e.codegenCodes[:])

	numCodegen = numCodegens
	for numCodegen > 4 && e.codegenDepth[codegenOrder[numCodegen-1]] == 0 {
		numCodegen--
	}

	headerBits = 3 + 5 + 5 + 4 + 3*numCodegen +
		int(e.codegenHist[16])*2 +
		int(e.codegenHist[17])*3 +
		int(e.codegenHist[18])*7
	for i, n := range e.codegenHist {
		headerBits += int(n) * int(e.codegenDepth[i])
	}
	return numLit, numDist, numCodegen, headerBits
}

// generateCodegen run-length encodes the code lengths of the literal/length
// and distance codes into e.codegen, and counts the codegen symbols.
// Each repeat code (16, 17, 18) is followed by its repeat count.
func (e *Encoder) generateCodegen(numLit, numDist int) {
	for i := range e.codegenHist {
		e.codegenHist[i] = 0
	}

	// codegen holds the concatenated code lengths first, and is then
	// overwritten with the output, which is never longer than the input
	// consumed so far.
	n := numLit + numDist
	if cap(e.codegen) < n+1 {
		e.codegen = make([]uint8, n+1)
	}
	codegen := e.codegen[:n+1]
	copy(codegen, e.litDepth[:numLit])
	copy(codegen[numLit:], e.distDepth[:numDist])
	codegen[n] = badCode

	size := codegen[0]
	count := 1
	outIndex := 0
	for inIndex := 1; size != badCode; inIndex++ {
		// We have seen count copies of size that have not been output yet.
		nextSize := codegen[inIndex]
		if nextSize == size {
			count++
			continue
		}
		if size != 0 {
			codegen[outIndex] = size
			outIndex++
			e.codegenHist[size]++
			count--
			for count >= 3 {
				n := 6
				if n > count {
					n = count
				}
				codegen[outIndex] = 16
				codegen[outIndex+1] = uint8(n - 3)
				outIndex += 2
				e.codegenHist[16]++
				count -= n
			}
		} else {
			for count >= 11 {
				n := 138
				if n > count {
					n = count
				}
				codegen[outIndex] = 18
				codegen[outIndex+1] = uint8(n - 11)
				outIndex += 2
				e.codegenHist[18]++
				count -= n
			}
			if count >= 3 {
				codegen[outIndex] = 17
				codegen[outIndex+1] = uint8(count - 3)
				outIndex += 2
				e.codegenHist[17]++
				count = 0
			}
		}
		for ; count > 0; count-- {
			codegen[outIndex] = size
			outIndex++
			e.codegenHist[size]++
		}
		size = nextSize
		count = 1
	}
	codegen[outIndex] = badCode
	e.codegen = codegen
}

func (e *Encoder) writeDynamicHeader(numLit, numDist, numCodegen int, lastBlock bool) {
	w := &e.bw
	w.writeBits(3, finalBit(lastBlock)|2<<1)
	w.writeBits(5, uint64(numLit-257))
	w.writeBits(5, uint64(numDist-1))
	w.writeBits(4, uint64(numCodegen-4))

	for _, sym := range codegenOrder[:numCodegen] {
		w.writeBits(3, uint64(e.codegenDepth[sym]))
	}

	for i := 0; e.codegen[i] != badCode; i++ {
		c := e.codegen[i]
		w.writeCode(e.codegenDepth[c], e.codegenCodes[c])
		switch c {
		case 16:
			i++
			w.writeBits(2, uint64(e.codegen[i]))
		case 17:
			i++
			w.writeBits(3, uint64(e.codegen[i]))
		case 18:
			i++
			w.writeBits(7, uint64(e.codegen[i]))
		}
	}
}

// writeTokens writes the current block's tokens and the end-of-block
// symbol.
func (e *Encoder) writeTokens(litDepth []uint8, litCodes []uint16, distDepth []uint8, distCodes []uint16) {
	w := &e.bw
	for _, t := range e.tokens {
		if t.Dist == 0 {
			w.writeCode(litDepth[t.LitLen], litCodes[t.LitLen])
			continue
		}

		l := int(t.LitLen)
		sym := lengthSymbol(l)
		w.writeCode(litDepth[sym], litCodes[sym])
		if nb := lengthExtraBits(l); nb > 0 {
			w.writeBits(uint(nb), uint64(lengthExtraValue(l)))
		}

		d := int(t.Dist)
		dsym := distSymbol(d)
		w.writeCode(distDepth[dsym], distCodes[dsym])
		if nb := distExtraBits(d); nb > 0 {
			w.writeBits(uint(nb), uint64(distExtraValue(d)))
		}
	}
	w.writeCode(litDepth[endOfBlock], litCodes[endOfBlock])
}

// storedSize returns the size in bits of n bytes written as stored blocks,
// starting nbits into the current byte.
func storedSize(n int, nbits uint) int {
	pos := int(nbits)
	for {
		chunk := n
		if chunk > maxStoredBlockSize {
			chunk = maxStoredBlockSize
		}
		n -= chunk
		pos += 3
		pos += (8 - pos%8) % 8
		pos += 32 + 8*chunk
		if n == 0 {
			break
		}
	}
	return pos - int(nbits)
}

func (e *Encoder) writeStored(src []byte, lastBlock bool) {
	w := &e.bw
	for {
		chunk := src
		if len(chunk) > maxStoredBlockSize {
			chunk = chunk[:maxStoredBlockSize]
		}
		src = src[len(chunk):]

		w.writeBits(3, finalBit(lastBlock && len(src) == 0))
		w.jumpToByteBoundary()
		w.writeBits(16, uint64(len(chunk)))
		w.writeBits(16, uint64(^uint16(len(chunk))))
		w.writeBytes(chunk)

		if len(src) == 0 {
			break
		}
	}
}
