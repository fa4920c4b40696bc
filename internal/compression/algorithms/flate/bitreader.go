package flate

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// BitReader extracts bits LSB-first from a byte source. Bytes are pulled one
// at a time and only when a caller needs them, so the source is never read
// past the byte holding the last consumed bit.
type BitReader struct {
	r      io.ByteReader
	hold   uint64
	nbits  uint
	offset int64 // bits consumed
}

// NewBitReader wraps r. Sources that are not io.ByteReaders get a
// bufio.Reader, in which case bytes after the stream may be buffered away.
func NewBitReader(r io.Reader) *BitReader {
	br := &BitReader{}
	br.Reset(r)
	return br
}

func (br *BitReader) Reset(r io.Reader) {
	if rr, ok := r.(io.ByteReader); ok {
		br.r = rr
	} else {
		br.r = bufio.NewReader(r)
	}
	br.hold, br.nbits, br.offset = 0, 0, 0
}

func (br *BitReader) pullByte() error {
	b, err := br.r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return ErrUnexpectedEndOfInput
		}
		return errors.Wrap(err, "reading compressed input")
	}
	br.hold |= uint64(b) << br.nbits
	br.nbits += 8
	return nil
}

// NeedBits fills the accumulator until at least n bits are buffered.
func (br *BitReader) NeedBits(n uint) error {
	for br.nbits < n {
		if err := br.pullByte(); err != nil {
			return err
		}
	}
	return nil
}

// PeekBits returns the low n buffered bits without consuming them. Bits
// beyond BitsAvailable read as zero.
func (br *BitReader) PeekBits(n uint) uint32 {
	return uint32(br.hold & (1<<n - 1))
}

func (br *BitReader) DropBits(n uint) {
	br.hold >>= n
	br.nbits -= n
	br.offset += int64(n)
}

// ReadBits consumes and returns the next n bits, n <= 32.
func (br *BitReader) ReadBits(n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if err := br.NeedBits(n); err != nil {
		return 0, err
	}
	v := br.PeekBits(n)
	br.DropBits(n)
	return v, nil
}

// AlignToByte discards the rest of a partially consumed byte.
func (br *BitReader) AlignToByte() {
	br.DropBits(br.nbits & 7)
}

func (br *BitReader) BitsAvailable() uint {
	return br.nbits
}

// Offset is the number of bits consumed so far.
func (br *BitReader) Offset() int64 {
	return br.offset
}
