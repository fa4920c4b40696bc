package huffman

// MaxBits is the longest code length DEFLATE allows.
const MaxBits = 15

// Class selects the alphabet a table is built for. It decides how terminal
// entries are filled: code-length symbols are plain literals, literal/length
// symbols above 256 and all distance symbols carry a base value and a number
// of extra bits.
type Class uint8

const (
	CodeLengths Class = iota
	LiteralLengths
	Distances
)

// Tuned root widths for each class.
const (
	CodeLengthRootBits    = 7
	LiteralLengthRootBits = 9
	DistanceRootBits      = 6
)

// Worst-case entry counts for the tuned root widths (zlib's ENOUGH_LENS and
// ENOUGH_DISTS, for 286 and 30 symbols).
const (
	enoughLens  = 852
	enoughDists = 592
)

func (c Class) String() string {
	switch c {
	case CodeLengths:
		return "code-length"
	case LiteralLengths:
		return "literal/length"
	case Distances:
		return "distance"
	}
	return "unknown"
}

// capacity returns the most entries a table of this class may hold.
func (c Class) capacity(root uint8) int {
	switch {
	case c == LiteralLengths && root == LiteralLengthRootBits:
		return enoughLens
	case c == Distances && root == DistanceRootBits:
		return enoughDists
	}
	// sub-tables cover disjoint code space, so they never hold more than
	// 2^MaxBits entries in total
	return 1<<root + 1<<MaxBits
}

// Length symbols 257..287. Op carries 16|extra; 286 and 287 are invalid.
var (
	lengthBase = [32]uint16{
		3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31,
		35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258, 0, 0, 0,
	}
	lengthOp = [32]uint8{
		16, 16, 16, 16, 16, 16, 16, 16, 17, 17, 17, 17, 18, 18, 18, 18,
		19, 19, 19, 19, 20, 20, 20, 20, 21, 21, 21, 21, 16, OpInvalid, OpInvalid, OpInvalid,
	}
)

// Distance symbols 0..31. Op carries 16|extra; 30 and 31 are invalid.
var (
	distanceBase = [32]uint16{
		1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193,
		257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577, 0, 0,
	}
	distanceOp = [32]uint8{
		16, 16, 16, 16, 17, 17, 18, 18, 19, 19, 20, 20, 21, 21, 22, 22,
		23, 23, 24, 24, 25, 25, 26, 26, 27, 27, 28, 28, 29, 29, OpInvalid, OpInvalid,
	}
)
