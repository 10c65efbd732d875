package pack

import "io"

// A Writer uses MatchFinder and Encoder to write compressed data to Dest.
type Writer struct {
	Dest        io.Writer
	MatchFinder MatchFinder
	Encoder     Encoder

	// BlockSize is the number of bytes to compress at a time. If it is zero,
	// each Write operation will be treated as one block.
	BlockSize int

	err     error
	inBuf   []byte
	outBuf  []byte
	matches []Match
}

func (w *Writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}

	if w.BlockSize == 0 {
		return w.writeBlock(p, false)
	}

	w.inBuf = append(w.inBuf, p...)
	var pos int
	for pos = 0; pos+w.BlockSize <= len(w.inBuf) && w.err == nil; pos += w.BlockSize {
		w.writeBlock(w.inBuf[pos:pos+w.BlockSize], false)
	}
	if pos > 0 {
		n := copy(w.inBuf, w.inBuf[pos:])
		w.inBuf = w.inBuf[:n]
	}

	return len(p), w.err
}

func (w *Writer) writeBlock(p []byte, lastBlock bool) (n int, err error) {
	w.outBuf = w.outBuf[:0]
	w.matches = w.MatchFinder.FindMatches(w.matches[:0], p)
	w.outBuf = w.Encoder.Encode(w.outBuf, p, w.matches, lastBlock)
	if len(w.outBuf) > 0 {
		_, w.err = w.Dest.Write(w.outBuf)
	}
	return len(p), w.err
}

// Close compresses any buffered data as the final block. It does not close
// Dest.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	w.writeBlock(w.inBuf, true)
	w.inBuf = w.inBuf[:0]
	return w.err
}

// Reset discards the Writer's state and makes it equivalent to the result
// of its original state, but writing to newDest instead.
func (w *Writer) Reset(newDest io.Writer) {
	w.MatchFinder.Reset()
	w.Encoder.Reset()
	w.err = nil
	w.inBuf = w.inBuf[:0]
	w.outBuf = w.outBuf[:0]
	w.matches = w.matches[:0]
	w.Dest = newDest
}
