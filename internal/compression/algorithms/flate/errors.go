package flate

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrUnexpectedEndOfInput  = errors.New("unexpected end of input")
	ErrInvalidBlockType      = errors.New("invalid block type")
	ErrInvalidStoredBlock    = errors.New("stored block length does not match its complement")
	ErrTooManySymbols        = errors.New("too many length or distance symbols")
	ErrInvalidLengthRepeat   = errors.New("invalid code length repeat")
	ErrMissingEndOfBlockCode = errors.New("missing end-of-block code")
	ErrInvalidCode           = errors.New("invalid literal/length or distance code")
	ErrDistanceTooFar        = errors.New("match distance too far back")
	ErrInvalidMatch          = errors.New("match length or distance out of range")
)

// CorruptInputError reports where in the stream decoding stopped. The stream
// cannot be resumed after one is returned.
type CorruptInputError struct {
	Err       error
	Block     int   // zero-based index of the block being decoded
	BitOffset int64 // bits consumed from the input when the error was detected
}

func (e *CorruptInputError) Error() string {
	return fmt.Sprintf("flate: block %d, bit offset %d (byte %d): %v", e.Block, e.BitOffset, e.BitOffset/8, e.Err)
}

func (e *CorruptInputError) Unwrap() error {
	return e.Err
}

// ByteOffset is the offset of the input byte holding the failing bit.
func (e *CorruptInputError) ByteOffset() int64 {
	return e.BitOffset / 8
}
