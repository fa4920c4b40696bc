package gzip

import (
	"bufio"
	"encoding/binary"
	"hash"
	"hash/crc32"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/adilg123/inflate-service/internal/compression/algorithms/flate"
)

var (
	ErrHeader   = errors.New("gzip: invalid header")
	ErrChecksum = errors.New("gzip: invalid checksum")
	ErrSize     = errors.New("gzip: uncompressed size does not match trailer")
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagText    = 1 << 0
	flagHdrCrc  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// byteReader is what the container and the DEFLATE payload share. The
// payload decoder pulls single bytes, so nothing past the trailer is read.
type byteReader interface {
	io.Reader
	io.ByteReader
}

// Header is the metadata of the most recently read member.
type Header struct {
	Name    string
	Comment string
	Extra   []byte
	ModTime time.Time
	OS      byte
}

// Reader strips GZIP member framing around the DEFLATE payload and checks
// each member's CRC-32 and size trailer. Concatenated members are read as
// one stream.
type Reader struct {
	Header
	Members int

	r           byteReader
	fr          *flate.Reader
	opts        flate.Options
	hdrCrc      uint32
	currentCrc  hash.Hash32
	currentSize uint32
	trailer     [8]byte
	stats       flate.Stats
	err         error
}

// NewReader reads the first member header from r.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderOptions(r, flate.Options{})
}

func NewReaderOptions(r io.Reader, opts flate.Options) (*Reader, error) {
	z := &Reader{opts: opts, currentCrc: crc32.NewIEEE()}
	if br, ok := r.(byteReader); ok {
		z.r = br
	} else {
		z.r = bufio.NewReader(r)
	}
	if err := z.readHeader(); err != nil {
		if err == io.EOF {
			err = ErrHeader
		}
		return nil, err
	}
	return z, nil
}

func (z *Reader) read(p []byte) error {
	if _, err := io.ReadFull(z.r, p); err != nil {
		return err
	}
	z.hdrCrc = crc32.Update(z.hdrCrc, crc32.IEEETable, p)
	return nil
}

func (z *Reader) readString() (string, error) {
	var runes []rune
	b := []byte{0}
	for {
		if err := z.read(b); err != nil {
			return "", err
		}
		if b[0] == 0 {
			// ISO 8859-1
			return string(runes), nil
		}
		runes = append(runes, rune(b[0]))
	}
}

// readHeader returns io.EOF when the input ends cleanly before a member.
func (z *Reader) readHeader() error {
	z.hdrCrc = 0
	var buf [10]byte
	if _, err := io.ReadFull(z.r, buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return ErrHeader
		}
		return err
	}
	z.hdrCrc = crc32.Update(0, crc32.IEEETable, buf[:])
	if buf[0] != gzipID1 || buf[1] != gzipID2 || buf[2] != gzipDeflate {
		return ErrHeader
	}
	flg := buf[3]
	z.Header = Header{OS: buf[9]}
	if t := int64(binary.LittleEndian.Uint32(buf[4:8])); t > 0 {
		z.ModTime = time.Unix(t, 0)
	}

	if flg&flagExtra != 0 {
		var n [2]byte
		if err := z.read(n[:]); err != nil {
			return errors.Wrap(ErrHeader, "extra field length")
		}
		z.Extra = make([]byte, binary.LittleEndian.Uint16(n[:]))
		if err := z.read(z.Extra); err != nil {
			return errors.Wrap(ErrHeader, "extra field")
		}
	}
	var err error
	if flg&flagName != 0 {
		if z.Name, err = z.readString(); err != nil {
			return errors.Wrap(ErrHeader, "file name")
		}
	}
	if flg&flagComment != 0 {
		if z.Comment, err = z.readString(); err != nil {
			return errors.Wrap(ErrHeader, "comment")
		}
	}
	if flg&flagHdrCrc != 0 {
		want := uint16(z.hdrCrc)
		var n [2]byte
		if _, err := io.ReadFull(z.r, n[:]); err != nil {
			return errors.Wrap(ErrHeader, "header crc")
		}
		if binary.LittleEndian.Uint16(n[:]) != want {
			return errors.Wrap(ErrHeader, "header crc mismatch")
		}
	}

	z.currentCrc.Reset()
	z.currentSize = 0
	if z.fr == nil {
		z.fr = flate.NewReaderOptions(z.r, z.opts)
	} else {
		z.fr.Reset(z.r)
	}
	z.Members++
	return nil
}

func (z *Reader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}

	n, err := z.fr.Read(p)
	z.currentCrc.Write(p[:n])
	z.currentSize += uint32(n)
	if err != io.EOF {
		z.err = err
		return n, err
	}

	// member done: verify the trailer, then look for another member
	z.stats.Add(z.fr.Stats())
	if _, err := io.ReadFull(z.r, z.trailer[:]); err != nil {
		z.err = errors.Wrap(flate.ErrUnexpectedEndOfInput, "gzip trailer")
		return n, z.err
	}
	givenCrc := binary.LittleEndian.Uint32(z.trailer[0:4])
	givenSize := binary.LittleEndian.Uint32(z.trailer[4:])
	if givenCrc != z.currentCrc.Sum32() {
		z.err = errors.Wrapf(ErrChecksum, "member %d: trailer %#08x, computed %#08x", z.Members, givenCrc, z.currentCrc.Sum32())
		return n, z.err
	}
	if givenSize != z.currentSize {
		z.err = errors.Wrapf(ErrSize, "member %d: trailer %d, decompressed %d", z.Members, givenSize, z.currentSize)
		return n, z.err
	}

	if err := z.readHeader(); err != nil {
		z.err = err
		return n, err
	}
	return n, nil
}

// Stats covers every member finished so far.
func (z *Reader) Stats() flate.Stats {
	return z.stats
}

func (z *Reader) Close() error {
	return nil
}
