package flate

import (
	"github.com/pkg/errors"

	"github.com/adilg123/inflate-service/internal/compression/algorithms/huffman"
)

const (
	maxNumLit  = 286
	maxNumDist = 30
	numCodes   = 19
)

// order in which code-length code lengths appear in a dynamic header
var codeLengthOrder = [numCodes]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// readDynamicHeader parses HLIT/HDIST/HCLEN, the code-length code, and the
// run-length coded literal/length and distance lengths, then builds both
// tables for the block.
func (d *Decoder) readDynamicHeader() error {
	v, err := d.br.ReadBits(14)
	if err != nil {
		return err
	}
	nlit := int(v&0x1f) + 257
	ndist := int(v>>5&0x1f) + 1
	nclen := int(v>>10) + 4
	if nlit > maxNumLit || ndist > maxNumDist {
		return errors.Wrapf(ErrTooManySymbols, "HLIT %d HDIST %d", nlit, ndist)
	}

	var clens [numCodes]uint8
	for i := 0; i < nclen; i++ {
		l, err := d.br.ReadBits(3)
		if err != nil {
			return err
		}
		clens[codeLengthOrder[i]] = uint8(l)
	}
	clTable, err := huffman.Build(clens[:], huffman.CodeLengths, huffman.CodeLengthRootBits)
	if err != nil {
		return err
	}

	lengths := d.lengths[:nlit+ndist]
	for n := 0; n < len(lengths); {
		here, err := d.decodeSymbol(clTable)
		if err != nil {
			return err
		}
		if !here.IsLiteral() {
			return errors.Wrap(ErrInvalidCode, "code length")
		}
		sym := here.Value
		if sym < 16 {
			lengths[n] = uint8(sym)
			n++
			continue
		}

		var (
			prev uint8
			rep  int
		)
		switch sym {
		case 16:
			if n == 0 {
				return errors.Wrap(ErrInvalidLengthRepeat, "repeat with no previous length")
			}
			prev = lengths[n-1]
			x, err := d.br.ReadBits(2)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		case 17:
			x, err := d.br.ReadBits(3)
			if err != nil {
				return err
			}
			rep = 3 + int(x)
		default:
			x, err := d.br.ReadBits(7)
			if err != nil {
				return err
			}
			rep = 11 + int(x)
		}
		if n+rep > len(lengths) {
			return errors.Wrapf(ErrInvalidLengthRepeat, "repeat of %d overruns %d lengths", rep, len(lengths))
		}
		for ; rep > 0; rep-- {
			lengths[n] = prev
			n++
		}
	}

	if lengths[256] == 0 {
		return ErrMissingEndOfBlockCode
	}

	if d.litLen, err = huffman.Build(lengths[:nlit], huffman.LiteralLengths, d.opts.LiteralRootBits); err != nil {
		return err
	}
	if d.dist, err = huffman.Build(lengths[nlit:], huffman.Distances, d.opts.DistanceRootBits); err != nil {
		return err
	}
	return nil
}
