package flate

// A bitWriter packs bits least-significant bit first, as DEFLATE requires,
// and appends the completed bytes to dst. Bits that do not fill a byte stay
// in the writer between blocks.
type bitWriter struct {
	dst   []byte
	bits  uint64
	nbits uint
}

// writeBits writes the low nb bits of b. nb must not exceed 32.
func (w *bitWriter) writeBits(nb uint, b uint64) {
	w.bits |= b << w.nbits
	w.nbits += nb
	if w.nbits >= 32 {
		bits := w.bits
		w.bits >>= 32
		w.nbits -= 32
		w.dst = append(w.dst, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
}

// writeCode writes a bit-reversed Huffman code of the given length.
func (w *bitWriter) writeCode(depth uint8, code uint16) {
	w.writeBits(uint(depth), uint64(code))
}

// jumpToByteBoundary flushes the pending bits, padding the last byte with
// zeros.
func (w *bitWriter) jumpToByteBoundary() {
	for w.nbits != 0 {
		w.dst = append(w.dst, byte(w.bits))
		w.bits >>= 8
		if w.nbits > 8 {
			w.nbits -= 8
		} else {
			w.nbits = 0
		}
	}
	w.bits = 0
}

// writeBytes copies b to the output, starting at the next byte boundary.
func (w *bitWriter) writeBytes(b []byte) {
	w.jumpToByteBoundary()
	w.dst = append(w.dst, b...)
}
