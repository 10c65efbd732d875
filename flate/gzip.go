package flate

import (
	"encoding/binary"
	"hash"
	"hash/crc32"
	"strings"
	"time"

	"github.com/packflate/pack"
)

// GZIPHeader holds the optional fields of a gzip member header.
type GZIPHeader struct {
	// Name is the original file name, stored in the FNAME field.
	// It is cut at the first NUL byte. An empty Name is not stored.
	Name string

	// ModTime is stored in the MTIME field, with one-second resolution.
	// The zero Time is stored as 0, meaning no time is recorded.
	ModTime time.Time
}

const gzipFlagName = 1 << 3

func (h GZIPHeader) appendTo(dst []byte) []byte {
	name := h.Name
	if i := strings.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	var flags byte
	if name != "" {
		flags |= gzipFlagName
	}
	var mtime uint32
	if !h.ModTime.IsZero() && h.ModTime.Unix() > 0 {
		mtime = uint32(h.ModTime.Unix())
	}

	dst = append(dst, 0x1f, 0x8b, 8, flags)
	dst = binary.LittleEndian.AppendUint32(dst, mtime)
	// XFL = 2 (maximum compression), OS = 255 (unknown).
	dst = append(dst, 2, 255)
	if name != "" {
		dst = append(dst, name...)
		dst = append(dst, 0)
	}
	return dst
}

// NewGZIPEncoder returns a pack.Encoder that writes DEFLATE data in gzip
// format (RFC 1952). The header records no name or time, so equal input
// always gives equal output.
func NewGZIPEncoder() pack.Encoder {
	return NewGZIPEncoderWithHeader(GZIPHeader{})
}

// NewGZIPEncoderWithHeader is like NewGZIPEncoder, but fills in the header
// fields from h.
func NewGZIPEncoderWithHeader(h GZIPHeader) pack.Encoder {
	return &gzipEncoder{
		f:      NewEncoder(),
		header: h,
	}
}

type gzipEncoder struct {
	f      pack.Encoder
	header GZIPHeader
	hasher hash.Hash32
	size   uint32
}

func (g *gzipEncoder) Reset() {
	g.f.Reset()
	g.hasher = nil
	g.size = 0
}

func (g *gzipEncoder) Encode(dst []byte, src []byte, matches []pack.Match, lastBlock bool) []byte {
	if g.hasher == nil {
		g.hasher = crc32.NewIEEE()
		dst = g.header.appendTo(dst)
	}
	dst = g.f.Encode(dst, src, matches, lastBlock)
	g.hasher.Write(src)
	g.size += uint32(len(src))

	if lastBlock {
		dst = binary.LittleEndian.AppendUint32(dst, g.hasher.Sum32())
		dst = binary.LittleEndian.AppendUint32(dst, g.size)
	}
	return dst
}
