package flate

import (
	"hash"
	"hash/adler32"

	"github.com/packflate/pack"
)

// NewZlibEncoder returns a pack.Encoder that writes DEFLATE data in zlib
// format (RFC 1950).
func NewZlibEncoder() pack.Encoder {
	return &zlibEncoder{
		f: NewEncoder(),
	}
}

type zlibEncoder struct {
	f      pack.Encoder
	hasher hash.Hash32
}

func (z *zlibEncoder) Reset() {
	z.f.Reset()
	z.hasher = nil
}

func (z *zlibEncoder) Encode(dst []byte, src []byte, matches []pack.Match, lastBlock bool) []byte {
	if z.hasher == nil {
		z.hasher = adler32.New()
		// CM = 8 with a 32K window, FLEVEL = 3 (maximum compression).
		dst = append(dst, 0x78, 0xda)
	}
	dst = z.f.Encode(dst, src, matches, lastBlock)
	z.hasher.Write(src)

	if lastBlock {
		sum := z.hasher.Sum32()
		dst = append(dst,
			byte(sum>>24),
			byte(sum>>16),
			byte(sum>>8),
			byte(sum),
		)
	}
	return dst
}
