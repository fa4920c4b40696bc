package flate

import (
	"bytes"
	"testing"
	"testing/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitReaderOrder(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0xb4, 0xff}))

	v, err := br.ReadBits(3)
	require.NoError(t, err)
	assert.EqualValues(t, 0x4, v)

	v, err = br.ReadBits(5)
	require.NoError(t, err)
	assert.EqualValues(t, 0x16, v)
	assert.EqualValues(t, 8, br.Offset())

	v, err = br.ReadBits(4)
	require.NoError(t, err)
	assert.EqualValues(t, 0xf, v)

	br.AlignToByte()
	assert.Zero(t, br.BitsAvailable())
	assert.EqualValues(t, 16, br.Offset())

	_, err = br.ReadBits(1)
	assert.True(t, errors.Is(err, ErrUnexpectedEndOfInput))
}

func TestBitReaderSpansBytes(t *testing.T) {
	br := NewBitReader(bytes.NewReader([]byte{0x01, 0x02, 0x03, 0x04}))
	v, err := br.ReadBits(32)
	require.NoError(t, err)
	assert.EqualValues(t, 0x04030201, v)

	v, err = br.ReadBits(0)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestBitReaderDoesNotReadAhead(t *testing.T) {
	src := bytes.NewReader([]byte{0xff, 0xff, 0xaa})
	br := NewBitReader(src)

	_, err := br.ReadBits(9)
	require.NoError(t, err)
	assert.Equal(t, 1, src.Len())
	assert.EqualValues(t, 7, br.BitsAvailable())
}

func TestBitReaderPeek(t *testing.T) {
	br := NewBitReader(iotest.OneByteReader(bytes.NewReader([]byte{0x5a})))
	require.NoError(t, br.NeedBits(8))
	assert.EqualValues(t, 0xa, br.PeekBits(4))
	assert.EqualValues(t, 0xa, br.PeekBits(4))
	br.DropBits(4)
	assert.EqualValues(t, 0x5, br.PeekBits(4))

	// bits past the buffered ones read as zero
	assert.EqualValues(t, 0x5, br.PeekBits(12))
}
