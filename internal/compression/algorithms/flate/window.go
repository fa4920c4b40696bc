package flate

import (
	"io"

	"github.com/pkg/errors"
)

const historySize = 32 * 1024

// Window materializes tokens into bytes. It keeps the last 32 KiB of output
// for back-references and hands everything it produces to the sink.
// Output is buffered in the ring itself and written out when the ring wraps
// or on Flush.
type Window struct {
	hist    [historySize]byte
	wpos    int   // next write position in hist
	flushed int   // hist[flushed:wpos] not yet written to the sink
	total   int64 // bytes produced over the whole stream
	sink    io.Writer
}

func NewWindow(sink io.Writer) *Window {
	return &Window{sink: sink}
}

// Reset empties the history and redirects output to sink.
func (w *Window) Reset(sink io.Writer) {
	w.wpos, w.flushed, w.total = 0, 0, 0
	w.sink = sink
}

// Apply appends the bytes a token stands for. Tokens must be applied in the
// order they were decoded.
func (w *Window) Apply(t Token) error {
	switch t.Kind {
	case LiteralToken:
		return w.writeByte(t.Value)
	case MatchToken:
		if t.Length < minMatchLength || t.Length > maxMatchLength || t.Distance == 0 || t.Distance > maxDistance {
			return errors.Wrapf(ErrInvalidMatch, "%v", t)
		}
		dist := int(t.Distance)
		if int64(dist) > w.total {
			return errors.Wrapf(ErrDistanceTooFar, "distance %d with %d bytes of output", dist, w.total)
		}
		// byte at a time: with dist < length the copy reads its own output
		for i := 0; i < int(t.Length); i++ {
			src := w.wpos - dist
			if src < 0 {
				src += historySize
			}
			if err := w.writeByte(w.hist[src]); err != nil {
				return err
			}
		}
		return nil
	}
	return errors.Errorf("unknown token kind %d", t.Kind)
}

func (w *Window) writeByte(b byte) error {
	w.hist[w.wpos] = b
	w.wpos++
	w.total++
	if w.wpos == historySize {
		err := w.Flush()
		w.wpos, w.flushed = 0, 0
		if err != nil {
			return err
		}
	}
	return nil
}

// Flush writes any buffered output to the sink.
func (w *Window) Flush() error {
	if w.flushed == w.wpos {
		return nil
	}
	_, err := w.sink.Write(w.hist[w.flushed:w.wpos])
	w.flushed = w.wpos
	return errors.Wrap(err, "writing decompressed output")
}

// Buffered is the number of produced bytes not yet flushed.
func (w *Window) Buffered() int {
	return w.wpos - w.flushed
}

// Written is the total number of bytes produced, flushed or not.
func (w *Window) Written() int64 {
	return w.total
}
