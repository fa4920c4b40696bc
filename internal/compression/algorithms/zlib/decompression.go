package zlib

import (
	"bufio"
	"encoding/binary"
	"hash"
	"hash/adler32"
	"io"

	"github.com/pkg/errors"

	"github.com/adilg123/inflate-service/internal/compression/algorithms/flate"
)

var (
	ErrHeader     = errors.New("zlib: invalid header")
	ErrDictionary = errors.New("zlib: preset dictionaries are not supported")
	ErrChecksum   = errors.New("zlib: invalid checksum")
)

const (
	zlibDeflate   = 8
	zlibMaxWindow = 7
	flagDict      = 0x20
)

// byteReader is what the container and the DEFLATE payload share. The
// payload decoder pulls single bytes, so nothing past the trailer is read.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Reader strips the two-byte ZLIB header and verifies the Adler-32 trailer
// around a DEFLATE payload.
type Reader struct {
	r          byteReader
	fr         *flate.Reader
	currentSum hash.Hash32
	trailer    [4]byte
	err        error
}

func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderOptions(r, flate.Options{})
}

func NewReaderOptions(r io.Reader, opts flate.Options) (*Reader, error) {
	z := &Reader{currentSum: adler32.New()}
	if br, ok := r.(byteReader); ok {
		z.r = br
	} else {
		z.r = bufio.NewReader(r)
	}

	var hdr [2]byte
	if _, err := io.ReadFull(z.r, hdr[:]); err != nil {
		return nil, errors.Wrap(ErrHeader, err.Error())
	}
	cmf, flg := hdr[0], hdr[1]
	if cmf&0x0f != zlibDeflate || cmf>>4 > zlibMaxWindow || binary.BigEndian.Uint16(hdr[:])%31 != 0 {
		return nil, ErrHeader
	}
	if flg&flagDict != 0 {
		return nil, ErrDictionary
	}

	z.fr = flate.NewReaderOptions(z.r, opts)
	return z, nil
}

func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}

	n, err := z.fr.Read(p)
	z.currentSum.Write(p[:n])
	if err != io.EOF {
		z.err = err
		return n, err
	}

	if _, err := io.ReadFull(z.r, z.trailer[:]); err != nil {
		z.err = errors.Wrap(flate.ErrUnexpectedEndOfInput, "zlib trailer")
		return n, z.err
	}
	if given := binary.BigEndian.Uint32(z.trailer[:]); given != z.currentSum.Sum32() {
		z.err = errors.Wrapf(ErrChecksum, "trailer %#08x, computed %#08x", given, z.currentSum.Sum32())
		return n, z.err
	}
	z.err = io.EOF
	return n, io.EOF
}

func (z *Reader) Stats() flate.Stats {
	return z.fr.Stats()
}

func (z *Reader) Close() error {
	return nil
}
