package flate

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adilg123/inflate-service/internal/compression/algorithms/huffman"
)

type state uint8

const (
	stateBlockHeader state = iota
	stateStored
	stateDecoding
	stateDone
	stateError
)

const (
	btypeStored  = 0
	btypeFixed   = 1
	btypeDynamic = 2
)

var blockTypeNames = [...]string{"stored", "fixed", "dynamic", "reserved"}

// Options tunes a Decoder. Zero values select the defaults.
type Options struct {
	LiteralRootBits  uint8 // root width of dynamic literal/length tables, 1..15
	DistanceRootBits uint8 // root width of dynamic distance tables, 1..15
	Log              *logrus.Entry
}

func (o Options) Validate() error {
	if o.LiteralRootBits > huffman.MaxBits {
		return errors.Errorf("literal/length root bits must be between 1 and %d", huffman.MaxBits)
	}
	if o.DistanceRootBits > huffman.MaxBits {
		return errors.Errorf("distance root bits must be between 1 and %d", huffman.MaxBits)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.LiteralRootBits == 0 {
		o.LiteralRootBits = huffman.LiteralLengthRootBits
	}
	if o.DistanceRootBits == 0 {
		o.DistanceRootBits = huffman.DistanceRootBits
	}
	if o.Log == nil {
		o.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return o
}

// Stats counts what a Decoder has seen so far.
type Stats struct {
	Blocks        int   `json:"blocks"`
	StoredBlocks  int   `json:"stored_blocks"`
	FixedBlocks   int   `json:"fixed_blocks"`
	DynamicBlocks int   `json:"dynamic_blocks"`
	Literals      int64 `json:"literals"`
	Matches       int64 `json:"matches"`
}

func (s *Stats) Add(o Stats) {
	s.Blocks += o.Blocks
	s.StoredBlocks += o.StoredBlocks
	s.FixedBlocks += o.FixedBlocks
	s.DynamicBlocks += o.DynamicBlocks
	s.Literals += o.Literals
	s.Matches += o.Matches
}

// Decoder walks the blocks of a raw DEFLATE stream and yields tokens. It is
// not safe for concurrent use; run one Decoder per stream.
type Decoder struct {
	br    *BitReader
	opts  Options
	log   *logrus.Entry
	state state
	err   error

	final  bool
	block  int
	stored int // bytes left in the current stored block

	litLen *huffman.Table
	dist   *huffman.Table

	lengths [maxNumLit + maxNumDist]uint8
	stats   Stats
}

func NewDecoder(r io.Reader, opts Options) *Decoder {
	d := &Decoder{}
	if err := opts.Validate(); err != nil {
		d.state, d.err = stateError, err
		return d
	}
	d.opts = opts.withDefaults()
	d.log = d.opts.Log.WithField("component", "flate")
	d.br = NewBitReader(r)
	return d
}

// Reset makes the decoder read a new stream from r with the same options.
func (d *Decoder) Reset(r io.Reader) {
	if d.br == nil {
		return
	}
	d.br.Reset(r)
	d.state, d.err = stateBlockHeader, nil
	d.final, d.block, d.stored = false, 0, 0
	d.litLen, d.dist = nil, nil
	d.stats = Stats{}
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Next returns the next token. It returns io.EOF after the final block has
// ended. Any other error is terminal.
func (d *Decoder) Next() (Token, error) {
	for {
		switch d.state {
		case stateBlockHeader:
			if err := d.readBlockHeader(); err != nil {
				return Token{}, d.fail(err)
			}
		case stateStored:
			if d.stored == 0 {
				d.endBlock()
				continue
			}
			b, err := d.br.ReadBits(8)
			if err != nil {
				return Token{}, d.fail(err)
			}
			d.stored--
			d.stats.Literals++
			return Literal(byte(b)), nil
		case stateDecoding:
			t, eob, err := d.decodeToken()
			if err != nil {
				return Token{}, d.fail(err)
			}
			if eob {
				d.endBlock()
				continue
			}
			return t, nil
		case stateDone:
			return Token{}, io.EOF
		default:
			return Token{}, d.err
		}
	}
}

func (d *Decoder) readBlockHeader() error {
	hdr, err := d.br.ReadBits(3)
	if err != nil {
		return err
	}
	d.final = hdr&1 == 1
	btype := hdr >> 1

	d.log.WithFields(logrus.Fields{
		"block": d.block,
		"type":  blockTypeNames[btype],
		"final": d.final,
	}).Debug("block header")

	switch btype {
	case btypeStored:
		if err := d.readStoredHeader(); err != nil {
			return err
		}
		d.stats.StoredBlocks++
		d.state = stateStored
	case btypeFixed:
		d.litLen, d.dist = huffman.FixedTables()
		d.stats.FixedBlocks++
		d.state = stateDecoding
	case btypeDynamic:
		if err := d.readDynamicHeader(); err != nil {
			return err
		}
		d.stats.DynamicBlocks++
		d.state = stateDecoding
	default:
		return ErrInvalidBlockType
	}
	d.stats.Blocks++
	return nil
}

func (d *Decoder) readStoredHeader() error {
	d.br.AlignToByte()
	v, err := d.br.ReadBits(32)
	if err != nil {
		return err
	}
	n, nn := v&0xffff, v>>16
	if n != ^nn&0xffff {
		return errors.Wrapf(ErrInvalidStoredBlock, "LEN %#04x NLEN %#04x", n, nn)
	}
	d.stored = int(n)
	return nil
}

func (d *Decoder) endBlock() {
	d.block++
	if d.final {
		d.state = stateDone
		d.log.WithField("blocks", d.block).Debug("final block done")
		return
	}
	d.state = stateBlockHeader
}

// decodeToken reads one literal/length symbol and, for lengths, the
// distance that follows it. eob reports the end-of-block symbol.
func (d *Decoder) decodeToken() (t Token, eob bool, err error) {
	here, err := d.decodeSymbol(d.litLen)
	if err != nil {
		return t, false, err
	}
	switch {
	case here.IsLiteral():
		d.stats.Literals++
		return Literal(byte(here.Value)), false, nil
	case here.IsEndOfBlock():
		return t, true, nil
	case !here.IsBase():
		return t, false, errors.Wrap(ErrInvalidCode, "literal/length")
	}

	length := uint32(here.Value)
	extra, err := d.br.ReadBits(here.Extra())
	if err != nil {
		return t, false, err
	}
	length += extra

	here, err = d.decodeSymbol(d.dist)
	if err != nil {
		return t, false, err
	}
	if !here.IsBase() {
		return t, false, errors.Wrap(ErrInvalidCode, "distance")
	}
	dist := uint32(here.Value)
	if extra, err = d.br.ReadBits(here.Extra()); err != nil {
		return t, false, err
	}
	dist += extra

	d.stats.Matches++
	return Match(uint16(length), uint16(dist)), false, nil
}

// decodeSymbol looks up the next code in t, pulling input bytes only while
// the matched entry is longer than the buffered bits.
func (d *Decoder) decodeSymbol(t *huffman.Table) (huffman.Entry, error) {
	br := d.br
	var here huffman.Entry
	for {
		here = t.Entries[br.PeekBits(uint(t.RootBits))]
		if uint(here.Bits) <= br.BitsAvailable() {
			break
		}
		if err := br.pullByte(); err != nil {
			return here, err
		}
	}
	if here.IsSubtable() {
		last := here
		for {
			idx := uint(last.Value) + uint(br.PeekBits(uint(last.Bits)+uint(last.Op))>>last.Bits)
			here = t.Entries[idx]
			if uint(last.Bits)+uint(here.Bits) <= br.BitsAvailable() {
				break
			}
			if err := br.pullByte(); err != nil {
				return here, err
			}
		}
		br.DropBits(uint(last.Bits))
	}
	br.DropBits(uint(here.Bits))
	return here, nil
}

var corruptions = []error{
	ErrUnexpectedEndOfInput,
	ErrInvalidBlockType,
	ErrInvalidStoredBlock,
	ErrTooManySymbols,
	ErrInvalidLengthRepeat,
	ErrMissingEndOfBlockCode,
	ErrInvalidCode,
	ErrDistanceTooFar,
	ErrInvalidMatch,
	huffman.ErrMalformedCode,
	huffman.ErrIncompleteCode,
	huffman.ErrOversizedTable,
}

func isCorruption(err error) bool {
	for _, c := range corruptions {
		if errors.Is(err, c) {
			return true
		}
	}
	return false
}

// fail moves the decoder into its terminal error state.
func (d *Decoder) fail(err error) error {
	d.state = stateError
	if isCorruption(err) {
		d.err = &CorruptInputError{Err: err, Block: d.block, BitOffset: d.br.Offset()}
	} else {
		d.err = err
	}
	d.log.WithError(d.err).Debug("decode failed")
	return d.err
}
