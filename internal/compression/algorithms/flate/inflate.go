package flate

import (
	"bytes"
	"io"
)

// Reader streams the decompressed bytes of a raw DEFLATE stream.
type Reader struct {
	dec *Decoder
	win *Window
	out bytes.Buffer
	err error
}

// NewReader returns a reader with the default options. If r is an
// io.ByteReader, nothing past the end of the DEFLATE stream is consumed
// from it.
func NewReader(r io.Reader) *Reader {
	return NewReaderOptions(r, Options{})
}

func NewReaderOptions(r io.Reader, opts Options) *Reader {
	rr := &Reader{dec: NewDecoder(r, opts)}
	rr.win = NewWindow(&rr.out)
	return rr
}

func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for r.out.Len() == 0 {
		if r.err != nil {
			return 0, r.err
		}
		r.err = r.fill(len(p))
	}
	return r.out.Read(p)
}

// fill decodes until at least want bytes are ready in r.out, or the stream
// ends.
func (r *Reader) fill(want int) error {
	for r.out.Len()+r.win.Buffered() < want {
		t, err := r.dec.Next()
		if err != nil {
			if ferr := r.win.Flush(); ferr != nil {
				return ferr
			}
			return err
		}
		if err := r.win.Apply(t); err != nil {
			return r.dec.fail(err)
		}
	}
	return r.win.Flush()
}

func (r *Reader) Reset(under io.Reader) {
	r.dec.Reset(under)
	r.win.Reset(&r.out)
	r.out.Reset()
	r.err = nil
}

func (r *Reader) Stats() Stats {
	return r.dec.Stats()
}

func (r *Reader) Close() error {
	return nil
}

// Decompress inflates src into dst and returns the number of bytes written.
// On error the output written so far is incomplete and should be discarded.
func Decompress(dst io.Writer, src io.Reader, opts Options) (int64, Stats, error) {
	dec := NewDecoder(src, opts)
	win := NewWindow(dst)
	for {
		t, err := dec.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return win.Written(), dec.Stats(), err
		}
		if err := win.Apply(t); err != nil {
			return win.Written(), dec.Stats(), dec.fail(err)
		}
	}
	if err := win.Flush(); err != nil {
		return win.Written(), dec.Stats(), err
	}
	return win.Written(), dec.Stats(), nil
}
