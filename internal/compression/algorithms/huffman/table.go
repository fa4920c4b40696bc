package huffman

import (
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrMalformedCode  = errors.New("over-subscribed or malformed code lengths")
	ErrIncompleteCode = errors.New("incomplete code lengths")
	ErrOversizedTable = errors.New("decode table exceeds its capacity")
)

// Entry operations. Any Op in 1..15 is a sub-table pointer: Op is the width
// of the sub-table and Value its offset in Table.Entries.
const (
	OpLiteral    = 0
	OpBase       = 16
	OpEndOfBlock = 32 | 64
	OpInvalid    = 64
)

// Entry is one slot of a decode table. Bits is the number of input bits the
// slot consumes.
type Entry struct {
	Bits  uint8
	Op    uint8
	Value uint16
}

func (e Entry) IsLiteral() bool    { return e.Op == OpLiteral }
func (e Entry) IsBase() bool       { return e.Op&OpBase != 0 }
func (e Entry) IsSubtable() bool   { return e.Op != 0 && e.Op&0xf0 == 0 }
func (e Entry) IsEndOfBlock() bool { return e.Op&32 != 0 }
func (e Entry) IsInvalid() bool    { return e.Op&OpInvalid != 0 && e.Op&32 == 0 }

// Extra is the number of extra bits following a base entry.
func (e Entry) Extra() uint { return uint(e.Op & 15) }

// Table is a flat decode table. The first 1<<RootBits entries are indexed by
// the low RootBits of the bit accumulator; longer codes continue in
// sub-tables appended after the root region.
type Table struct {
	Entries  []Entry
	RootBits uint8
}

// Lookup resolves the code at the bottom of the LSB-first accumulator bits,
// following at most one sub-table pointer. The returned entry's Bits is the
// full code length.
func (t *Table) Lookup(bits uint32) Entry {
	e := t.Entries[bits&(1<<t.RootBits-1)]
	if !e.IsSubtable() {
		return e
	}
	bits >>= e.Bits
	sub := t.Entries[int(e.Value)+int(bits&(1<<e.Op-1))]
	sub.Bits += e.Bits
	return sub
}

var maxSymbols = [...]int{
	CodeLengths:    19,
	LiteralLengths: 288,
	Distances:      32,
}

// Build constructs the decode table for a canonical code given by
// per-symbol code lengths. rootBits is clamped into [shortest, longest]
// code length the same way zlib's inflate_table does.
func Build(lengths []uint8, class Class, rootBits uint8) (*Table, error) {
	if rootBits < 1 || rootBits > MaxBits {
		return nil, errors.Errorf("%s table: root width %d out of range", class, rootBits)
	}
	if len(lengths) > maxSymbols[class] {
		return nil, errors.Errorf("%s table: %d symbols exceeds the alphabet", class, len(lengths))
	}

	var count [MaxBits + 1]int
	for _, l := range lengths {
		if l > MaxBits {
			return nil, errors.Wrapf(ErrMalformedCode, "%s table: code length %d", class, l)
		}
		count[l]++
	}

	max := MaxBits
	for max >= 1 && count[max] == 0 {
		max--
	}
	if max == 0 {
		// no codes at all: every lookup lands on an invalid entry
		invalid := Entry{Bits: 1, Op: OpInvalid}
		return &Table{Entries: []Entry{invalid, invalid}, RootBits: 1}, nil
	}
	root := int(rootBits)
	if root > max {
		root = max
	}
	min := 1
	for min < max && count[min] == 0 {
		min++
	}
	if root < min {
		root = min
	}

	left := 1
	for l := 1; l <= MaxBits; l++ {
		left <<= 1
		left -= count[l]
		if left < 0 {
			return nil, errors.Wrapf(ErrMalformedCode, "%s table", class)
		}
	}
	if left > 0 && (class == CodeLengths || max != 1) {
		return nil, errors.Wrapf(ErrIncompleteCode, "%s table", class)
	}

	// symbols sorted by length, then by symbol
	var offs [MaxBits + 1]int
	for l := 1; l < MaxBits; l++ {
		offs[l+1] = offs[l] + count[l]
	}
	work := make([]uint16, len(lengths))
	for sym, l := range lengths {
		if l != 0 {
			work[offs[l]] = uint16(sym)
			offs[l]++
		}
	}

	var (
		base  []uint16
		ops   []uint8
		match int
	)
	switch class {
	case LiteralLengths:
		base, ops, match = lengthBase[:], lengthOp[:], 257
	case Distances:
		base, ops, match = distanceBase[:], distanceOp[:], 0
	default:
		match = 20
	}

	limit := class.capacity(rootBits)
	used := 1 << root
	if used > limit {
		return nil, errors.Wrapf(ErrOversizedTable, "%s table: %d entries", class, used)
	}
	entries := make([]Entry, used)

	var (
		huff = 0
		sym  = 0
		l    = min
		next = 0 // offset of the table being filled
		curr = root
		drop = 0
		low  = -1
		mask = used - 1
	)
	for {
		here := Entry{Bits: uint8(l - drop)}
		s := int(work[sym])
		switch {
		case s+1 < match:
			here.Value = uint16(s)
		case s >= match:
			here.Op = ops[s-match]
			here.Value = base[s-match]
		default:
			here.Op = OpEndOfBlock
		}

		// replicate across every index whose low bits equal the code
		incr := 1 << (l - drop)
		fill := 1 << curr
		size := fill
		for {
			fill -= incr
			entries[next+(huff>>drop)+fill] = here
			if fill == 0 {
				break
			}
		}

		// increment the bit-reversed code
		incr = 1 << (l - 1)
		for huff&incr != 0 {
			incr >>= 1
		}
		if incr != 0 {
			huff &= incr - 1
			huff += incr
		} else {
			huff = 0
		}

		sym++
		count[l]--
		if count[l] == 0 {
			if l == max {
				break
			}
			l = int(lengths[work[sym]])
		}

		// new sub-table when the root prefix changes
		if l > root && huff&mask != low {
			if drop == 0 {
				drop = root
			}
			next += size

			curr = l - drop
			left = 1 << curr
			for curr+drop < max {
				left -= count[curr+drop]
				if left <= 0 {
					break
				}
				curr++
				left <<= 1
			}

			used += 1 << curr
			if used > limit {
				return nil, errors.Wrapf(ErrOversizedTable, "%s table: %d entries", class, used)
			}
			entries = append(entries, make([]Entry, 1<<curr)...)

			low = huff & mask
			entries[low] = Entry{Bits: uint8(root), Op: uint8(curr), Value: uint16(next)}
		}
	}

	// an incomplete code has exactly one slot left, and only when max == 1
	if huff != 0 {
		entries[next+(huff>>drop)] = Entry{Bits: uint8(l - drop), Op: OpInvalid}
	}

	return &Table{Entries: entries, RootBits: uint8(root)}, nil
}

// Kraft returns the code-space used by lengths in units of 2^-MaxBits. A
// complete code sums to exactly 1<<MaxBits.
func Kraft(lengths []uint8) int {
	sum := 0
	for _, l := range lengths {
		if l != 0 {
			sum += 1 << (MaxBits - int(l))
		}
	}
	return sum
}

var (
	fixedOnce                sync.Once
	fixedLitLen, fixedDistTb *Table
)

// FixedTables returns the shared tables for fixed-Huffman blocks. They are
// read-only.
func FixedTables() (litLen, dist *Table) {
	fixedOnce.Do(func() {
		var lengths [288]uint8
		for i := range lengths {
			switch {
			case i < 144:
				lengths[i] = 8
			case i < 256:
				lengths[i] = 9
			case i < 280:
				lengths[i] = 7
			default:
				lengths[i] = 8
			}
		}
		var err error
		if fixedLitLen, err = Build(lengths[:], LiteralLengths, LiteralLengthRootBits); err != nil {
			panic(err)
		}

		var dists [32]uint8
		for i := range dists {
			dists[i] = 5
		}
		if fixedDistTb, err = Build(dists[:], Distances, 5); err != nil {
			panic(err)
		}
	})
	return fixedLitLen, fixedDistTb
}
