package flate

import (
	"bytes"
	"io"
	"math/rand"
	"strings"
	"testing"
	"testing/iotest"

	kflate "github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitWriter packs fields LSB-first the way DEFLATE does.
type bitWriter struct {
	out   []byte
	acc   uint64
	nbits uint
}

func (w *bitWriter) bits(v uint32, n uint) {
	w.acc |= uint64(v) << w.nbits
	w.nbits += n
	for w.nbits >= 8 {
		w.out = append(w.out, byte(w.acc))
		w.acc >>= 8
		w.nbits -= 8
	}
}

// code writes a Huffman code, which goes out MSB-first.
func (w *bitWriter) code(c uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		w.bits(c>>uint(i)&1, 1)
	}
}

func (w *bitWriter) align() {
	if w.nbits > 0 {
		w.bits(0, 8-w.nbits)
	}
}

func (w *bitWriter) bytes() []byte {
	w.align()
	return w.out
}

// fixedLiteral writes a literal byte with the fixed literal/length code.
func (w *bitWriter) fixedLiteral(b byte) {
	if b < 144 {
		w.code(0x30+uint32(b), 8)
	} else {
		w.code(0x190+uint32(b)-144, 9)
	}
}

// fixedSymbol writes literal/length symbols 256..279 with their 7-bit code.
func (w *bitWriter) fixedSymbol(sym uint32) {
	w.code(sym-256, 7)
}

func compress(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := kflate.NewWriter(&buf, level)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func sampleText() []byte {
	var sb strings.Builder
	for i := 0; i < 2000; i++ {
		sb.WriteString("the quick brown fox jumps over the lazy dog ")
		sb.WriteString(strings.Repeat("z", i%17))
		sb.WriteByte(byte('a' + i%26))
	}
	return []byte(sb.String())
}

func randomData(n int) []byte {
	rng := rand.New(rand.NewSource(1))
	data := make([]byte, n)
	rng.Read(data)
	return data
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":  {},
		"byte":   {'x'},
		"text":   sampleText(),
		"random": randomData(100 * 1024),
		"zeros":  make([]byte, 300*1024),
	}
	levels := []int{
		kflate.NoCompression,
		kflate.BestSpeed,
		kflate.DefaultCompression,
		kflate.BestCompression,
		kflate.HuffmanOnly,
	}
	for name, data := range inputs {
		for _, level := range levels {
			compressed := compress(t, data, level)

			var out bytes.Buffer
			n, stats, err := Decompress(&out, bytes.NewReader(compressed), Options{})
			require.NoError(t, err, "%s level %d", name, level)
			require.EqualValues(t, len(data), n, "%s level %d", name, level)
			require.True(t, bytes.Equal(data, out.Bytes()), "%s level %d", name, level)
			require.Equal(t, stats.StoredBlocks+stats.FixedBlocks+stats.DynamicBlocks, stats.Blocks)
			require.Positive(t, stats.Blocks)
		}
	}
}

func TestRoundTripRootWidths(t *testing.T) {
	data := sampleText()
	compressed := compress(t, data, kflate.BestCompression)

	for _, opts := range []Options{
		{LiteralRootBits: 1, DistanceRootBits: 1},
		{LiteralRootBits: 15, DistanceRootBits: 15},
		{LiteralRootBits: 10, DistanceRootBits: 8},
	} {
		var out bytes.Buffer
		_, _, err := Decompress(&out, bytes.NewReader(compressed), opts)
		require.NoError(t, err, "%+v", opts)
		require.True(t, bytes.Equal(data, out.Bytes()), "%+v", opts)
	}
}

func TestInvalidOptions(t *testing.T) {
	_, _, err := Decompress(io.Discard, bytes.NewReader(nil), Options{LiteralRootBits: 16})
	require.Error(t, err)

	var cie *CorruptInputError
	assert.False(t, errors.As(err, &cie))

	d := NewDecoder(bytes.NewReader(nil), Options{DistanceRootBits: 20})
	_, err = d.Next()
	assert.Error(t, err)
}

func TestStoredBlock(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeStored, 2)
	w.align()
	w.bits(5, 16)
	w.bits(^uint32(5)&0xffff, 16)
	stream := append(w.bytes(), "hello"...)

	var out bytes.Buffer
	_, stats, err := Decompress(&out, bytes.NewReader(stream), Options{})
	require.NoError(t, err)
	assert.Equal(t, "hello", out.String())
	assert.Equal(t, 1, stats.StoredBlocks)
	assert.EqualValues(t, 5, stats.Literals)
}

func TestEmptyStoredBlock(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeStored, 2)
	w.align()
	w.bits(0, 16)
	w.bits(0xffff, 16)

	n, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoredBlockBadLength(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeStored, 2)
	w.align()
	w.bits(5, 16)
	w.bits(0, 16)
	stream := append(w.bytes(), "hello"...)

	_, _, err := Decompress(io.Discard, bytes.NewReader(stream), Options{})
	assert.True(t, errors.Is(err, ErrInvalidStoredBlock), "got %v", err)
}

func TestReservedBlockType(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(3, 2)

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	require.True(t, errors.Is(err, ErrInvalidBlockType), "got %v", err)

	var cie *CorruptInputError
	require.True(t, errors.As(err, &cie))
	assert.Equal(t, 0, cie.Block)
	assert.EqualValues(t, 3, cie.BitOffset)
}

func TestFixedBlock(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeFixed, 2)
	w.fixedLiteral('A')
	w.fixedSymbol(259) // length 5
	w.bits(0, 5)       // distance 1
	w.fixedSymbol(256)

	var out bytes.Buffer
	_, stats, err := Decompress(&out, bytes.NewReader(w.bytes()), Options{})
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", out.String())
	assert.Equal(t, Stats{Blocks: 1, FixedBlocks: 1, Literals: 1, Matches: 1}, stats)
}

func TestDecoderTokens(t *testing.T) {
	var w bitWriter
	w.bits(0, 1)
	w.bits(btypeFixed, 2)
	w.fixedLiteral(200)
	w.fixedSymbol(256)
	w.bits(1, 1)
	w.bits(btypeFixed, 2)
	w.fixedLiteral('b')
	w.fixedSymbol(265) // lengths 11..12, one extra bit
	w.bits(1, 1)
	w.code(4, 5) // distances 5..6, one extra bit
	w.bits(0, 1)
	w.fixedSymbol(256)

	d := NewDecoder(bytes.NewReader(w.bytes()), Options{})
	var got []Token
	for {
		tok, err := d.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, tok)
	}
	assert.Equal(t, []Token{Literal(200), Literal('b'), Match(12, 5)}, got)
	assert.Equal(t, 2, d.Stats().Blocks)

	// done is sticky
	_, err := d.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDistanceTooFar(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeFixed, 2)
	w.fixedLiteral('A')
	w.fixedSymbol(257) // length 3
	w.bits(1, 5)       // distance 2
	w.fixedSymbol(256)

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	require.True(t, errors.Is(err, ErrDistanceTooFar), "got %v", err)

	var cie *CorruptInputError
	require.True(t, errors.As(err, &cie))
	assert.Equal(t, 0, cie.Block)
}

func TestInvalidFixedSymbols(t *testing.T) {
	// literal/length 286 sits in the fixed code but is not a valid symbol
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeFixed, 2)
	w.code(0xc0+286-280, 8)
	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrInvalidCode), "got %v", err)

	// so is distance 30
	w = bitWriter{}
	w.bits(1, 1)
	w.bits(btypeFixed, 2)
	w.fixedLiteral('A')
	w.fixedSymbol(257)
	w.code(30, 5)
	_, _, err = Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrInvalidCode), "got %v", err)
}

// dynamicPreamble writes a dynamic block header whose code-length code gives
// one-bit codes to the two symbols a and b, a < b, so a is "0" and b is "1".
func dynamicPreamble(w *bitWriter, hlit, hdist, hclen int, clens map[int]uint32) {
	w.bits(1, 1)
	w.bits(btypeDynamic, 2)
	w.bits(uint32(hlit-257), 5)
	w.bits(uint32(hdist-1), 5)
	w.bits(uint32(hclen-4), 4)
	for i := 0; i < hclen; i++ {
		w.bits(clens[codeLengthOrder[i]], 3)
	}
}

func TestMissingEndOfBlockCode(t *testing.T) {
	var w bitWriter
	// symbol 18 is at position 2 and symbol 1 at position 17 of the order
	dynamicPreamble(&w, 257, 1, 18, map[int]uint32{1: 1, 18: 1})
	w.code(0, 1) // literal 0: length 1
	w.code(0, 1) // literal 1: length 1
	w.code(1, 1) // 138 zeros
	w.bits(127, 7)
	w.code(1, 1) // 117 zeros, through symbol 256
	w.bits(106, 7)
	w.code(0, 1) // distance 0: length 1

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrMissingEndOfBlockCode), "got %v", err)
}

func TestRepeatWithoutPrevious(t *testing.T) {
	var w bitWriter
	dynamicPreamble(&w, 257, 1, 4, map[int]uint32{16: 1, 17: 1})
	w.code(0, 1) // 16 first
	w.bits(0, 2)

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrInvalidLengthRepeat), "got %v", err)
}

func TestRepeatOverrun(t *testing.T) {
	var w bitWriter
	dynamicPreamble(&w, 257, 1, 4, map[int]uint32{17: 1, 18: 1})
	w.code(1, 1) // 138 zeros
	w.bits(127, 7)
	w.code(1, 1) // 138 more overruns 258
	w.bits(127, 7)

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrInvalidLengthRepeat), "got %v", err)
}

func TestTooManySymbols(t *testing.T) {
	var w bitWriter
	w.bits(1, 1)
	w.bits(btypeDynamic, 2)
	w.bits(30, 5) // HLIT 287
	w.bits(0, 5)
	w.bits(0, 4)

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	assert.True(t, errors.Is(err, ErrTooManySymbols), "got %v", err)
}

func TestIncompleteCodeLengthCode(t *testing.T) {
	var w bitWriter
	dynamicPreamble(&w, 257, 1, 4, map[int]uint32{18: 1})

	_, _, err := Decompress(io.Discard, bytes.NewReader(w.bytes()), Options{})
	require.Error(t, err)

	var cie *CorruptInputError
	assert.True(t, errors.As(err, &cie), "got %v", err)
}

func TestTruncatedInput(t *testing.T) {
	data := sampleText()
	compressed := compress(t, data, kflate.DefaultCompression)

	for _, cut := range []int{0, 1, len(compressed) / 2, len(compressed) - 1} {
		_, _, err := Decompress(io.Discard, bytes.NewReader(compressed[:cut]), Options{})
		require.True(t, errors.Is(err, ErrUnexpectedEndOfInput), "cut %d: got %v", cut, err)
	}
}

func TestTrailingBytesUntouched(t *testing.T) {
	data := sampleText()
	src := bytes.NewReader(append(compress(t, data, kflate.BestSpeed), "trailer"...))

	var out bytes.Buffer
	_, _, err := Decompress(&out, src, Options{})
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, out.Bytes()))

	rest, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "trailer", string(rest))
}

func TestReaderSmallReads(t *testing.T) {
	data := sampleText()
	compressed := compress(t, data, kflate.DefaultCompression)

	r := NewReader(iotest.OneByteReader(bytes.NewReader(compressed)))
	var out []byte
	buf := make([]byte, 7)
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.True(t, bytes.Equal(data, out))
	assert.Positive(t, r.Stats().Blocks)
	assert.NoError(t, r.Close())
}

func TestReaderReset(t *testing.T) {
	a, b := []byte("first stream"), sampleText()

	r := NewReader(bytes.NewReader(compress(t, a, kflate.BestSpeed)))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	r.Reset(bytes.NewReader(compress(t, b, kflate.BestCompression)))
	got, err = io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(b, got))
}

func TestReaderErrorIsSticky(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x07}))
	_, err := io.ReadAll(r)
	require.True(t, errors.Is(err, ErrInvalidBlockType))

	_, err2 := r.Read(make([]byte, 1))
	assert.Equal(t, err, err2)
}

func TestCorruptInputErrorMessage(t *testing.T) {
	err := &CorruptInputError{Err: ErrInvalidCode, Block: 2, BitOffset: 83}
	assert.Equal(t, "flate: block 2, bit offset 83 (byte 10): invalid literal/length or distance code", err.Error())
	assert.EqualValues(t, 10, err.ByteOffset())
	assert.True(t, errors.Is(err, ErrInvalidCode))
}

func TestTokenString(t *testing.T) {
	assert.Equal(t, "literal(0x41)", Literal('A').String())
	assert.Equal(t, "match(length=5, distance=1)", Match(5, 1).String())
}
