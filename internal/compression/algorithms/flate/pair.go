package flate

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
)

var ErrInputNotClosed = errors.New("compressed input has not been closed")

// DecompressionWriter collects compressed input. Closing it inflates
// everything written so far for the paired DecompressionReader.
type DecompressionWriter struct {
	core *decompressionCore
}

// DecompressionReader yields the inflated output once the paired writer
// is closed.
type DecompressionReader struct {
	core *decompressionCore
}

type decompressionCore struct {
	lock                sync.Mutex
	isInputBufferClosed bool
	inputBuffer         bytes.Buffer
	outputBuffer        bytes.Buffer
	opts                Options
	stats               Stats
	err                 error
}

func (dr *DecompressionReader) Read(data []byte) (int, error) {
	dr.core.lock.Lock()
	defer dr.core.lock.Unlock()
	if !dr.core.isInputBufferClosed {
		return 0, ErrInputNotClosed
	}
	if dr.core.err != nil {
		return 0, dr.core.err
	}
	return dr.core.outputBuffer.Read(data)
}

func (dr *DecompressionReader) Close() error {
	dr.core.lock.Lock()
	defer dr.core.lock.Unlock()
	dr.core.inputBuffer.Reset()
	dr.core.outputBuffer.Reset()
	return nil
}

func (dr *DecompressionReader) Stats() Stats {
	dr.core.lock.Lock()
	defer dr.core.lock.Unlock()
	return dr.core.stats
}

func (dw *DecompressionWriter) Write(data []byte) (int, error) {
	dw.core.lock.Lock()
	defer dw.core.lock.Unlock()
	if dw.core.isInputBufferClosed {
		return 0, errors.New("write after close")
	}
	return dw.core.inputBuffer.Write(data)
}

// Close inflates the buffered input. A corrupt stream is reported here and
// again by every Read.
func (dw *DecompressionWriter) Close() error {
	dw.core.lock.Lock()
	defer dw.core.lock.Unlock()
	if dw.core.isInputBufferClosed {
		return nil
	}
	dw.core.isInputBufferClosed = true

	_, stats, err := Decompress(&dw.core.outputBuffer, &dw.core.inputBuffer, dw.core.opts)
	dw.core.stats = stats
	if err != nil {
		dw.core.outputBuffer.Reset()
		dw.core.err = err
		return err
	}
	return nil
}

// NewDecompressionReaderAndWriter returns a connected pair: compressed bytes
// go into the writer, and after the writer is closed the reader returns the
// inflated bytes.
func NewDecompressionReaderAndWriter(opts Options) (*DecompressionReader, *DecompressionWriter) {
	core := &decompressionCore{opts: opts}
	return &DecompressionReader{core: core}, &DecompressionWriter{core: core}
}
