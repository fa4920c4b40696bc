package compression

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/adilg123/inflate-service/internal/compression/algorithms/flate"
	"github.com/adilg123/inflate-service/internal/compression/algorithms/gzip"
	"github.com/adilg123/inflate-service/internal/compression/algorithms/zlib"
)

// SupportedFormats contains all supported container formats
var SupportedFormats = []string{
	"flate",
	"zlib",
	"gzip",
}

// Options contains decompression options
type Options struct {
	Format           string
	LiteralRootBits  uint8 // 0 selects the default
	DistanceRootBits uint8 // 0 selects the default
	Log              *logrus.Entry
}

func (o Options) flateOptions() flate.Options {
	return flate.Options{
		LiteralRootBits:  o.LiteralRootBits,
		DistanceRootBits: o.DistanceRootBits,
		Log:              o.Log,
	}
}

// Stats contains decompression statistics
type Stats struct {
	CompressedSize   int64       `json:"compressed_size"`
	DecompressedSize int64       `json:"decompressed_size"`
	CompressionRatio float64     `json:"compression_ratio"`
	Format           string      `json:"format"`
	Deflate          flate.Stats `json:"deflate"`
}

// DecompressionReader is a format reader that can report what the DEFLATE
// decoder saw.
type DecompressionReader interface {
	io.ReadCloser
	Stats() flate.Stats
}

// FormatFactory opens a decompressing reader for one container format
type FormatFactory interface {
	NewDecompressionReader(r io.Reader, options Options) (DecompressionReader, error)
}

// factoryMap maps format names to their factories
var factoryMap = map[string]FormatFactory{
	"flate": &FlateFactory{},
	"zlib":  &ZlibFactory{},
	"gzip":  &GzipFactory{},
}

// Factory implementations
type FlateFactory struct{}

func (f *FlateFactory) NewDecompressionReader(r io.Reader, options Options) (DecompressionReader, error) {
	return flate.NewReaderOptions(r, options.flateOptions()), nil
}

type ZlibFactory struct{}

func (f *ZlibFactory) NewDecompressionReader(r io.Reader, options Options) (DecompressionReader, error) {
	return zlib.NewReaderOptions(r, options.flateOptions())
}

type GzipFactory struct{}

func (f *GzipFactory) NewDecompressionReader(r io.Reader, options Options) (DecompressionReader, error) {
	return gzip.NewReaderOptions(r, options.flateOptions())
}

// IsValidFormat checks if the provided format is supported
func IsValidFormat(format string) bool {
	_, exists := factoryMap[format]
	return exists
}

// GetSupportedFormats returns a list of supported formats
func GetSupportedFormats() []string {
	return append([]string{}, SupportedFormats...)
}

// Decompress decompresses data held in memory
func Decompress(data []byte, options Options) ([]byte, *Stats, error) {
	var out bytes.Buffer
	stats, err := DecompressStream(&out, bytes.NewReader(data), options)
	if err != nil {
		return nil, nil, err
	}
	return out.Bytes(), stats, nil
}

// DecompressStream decompresses src into dst. On error, whatever was
// written to dst is incomplete.
func DecompressStream(dst io.Writer, src io.Reader, options Options) (*Stats, error) {
	factory, ok := factoryMap[options.Format]
	if !ok {
		return nil, errors.Errorf("unsupported format: %s", options.Format)
	}
	if options.Log == nil {
		options.Log = logrus.NewEntry(logrus.StandardLogger())
	}

	counter := &countingReader{r: bufio.NewReader(src)}
	reader, err := factory.NewDecompressionReader(counter, options)
	if err != nil {
		return nil, errors.Wrap(err, "decompression failed")
	}
	defer reader.Close()

	n, err := io.Copy(dst, reader)
	if err != nil {
		return nil, errors.Wrap(err, "decompression failed")
	}

	// Calculate statistics
	stats := &Stats{
		CompressedSize:   counter.n,
		DecompressedSize: n,
		Format:           options.Format,
		Deflate:          reader.Stats(),
	}
	if n > 0 {
		stats.CompressionRatio = float64(counter.n) / float64(n) * 100
	}

	options.Log.WithFields(logrus.Fields{
		"format":            stats.Format,
		"compressed_size":   stats.CompressedSize,
		"decompressed_size": stats.DecompressedSize,
		"blocks":            stats.Deflate.Blocks,
	}).Debug("decompressed")

	return stats, nil
}

// countingReader counts the bytes handed to the decoder. It is an
// io.ByteReader, so the bit reader and the container readers pull from it
// directly and read-ahead buffered below it is never counted.
type countingReader struct {
	r *bufio.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.n++
	}
	return b, err
}
