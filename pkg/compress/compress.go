// Package compress handles compressed WAF log archives and report output.
//
// Exported log bundles commonly arrive gzip- or zstd-compressed; the loader
// reads them transparently based on the file extension. The same codecs are
// reused on the way out when a report path asks for a compressed artifact.
//
// Supported algorithms:
//   - ZSTD (Zstandard): best balance of speed and ratio, preferred for bundles
//   - Gzip: maximum compatibility with existing log pipelines
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// AlgorithmZSTD is the Zstandard compression algorithm.
	AlgorithmZSTD Algorithm = "zstd"

	// AlgorithmGzip is the gzip compression algorithm.
	AlgorithmGzip Algorithm = "gzip"

	// AlgorithmNone indicates plain, uncompressed data.
	AlgorithmNone Algorithm = "none"
)

// DetectAlgorithm maps a file path to the algorithm implied by its
// extension. Unknown extensions mean plain data.
func DetectAlgorithm(path string) Algorithm {
	switch {
	case strings.HasSuffix(path, ".zst"), strings.HasSuffix(path, ".zstd"):
		return AlgorithmZSTD
	case strings.HasSuffix(path, ".gz"), strings.HasSuffix(path, ".gzip"):
		return AlgorithmGzip
	default:
		return AlgorithmNone
	}
}

// Level represents a compression level for the write path.
type Level int

const (
	LevelFastest Level = 1
	LevelDefault Level = 3
	LevelBest    Level = 9
)

// Codec compresses and decompresses byte slices for one algorithm.
// Encoder and decoder instances are pooled; a Codec is safe for
// concurrent use.
type Codec struct {
	algorithm Algorithm
	level     Level

	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
}

// NewCodec creates a codec for the given algorithm and level.
func NewCodec(algorithm Algorithm, level Level) *Codec {
	c := &Codec{
		algorithm: algorithm,
		level:     level,
	}

	if algorithm == AlgorithmZSTD {
		c.zstdEncoderPool = sync.Pool{
			New: func() any {
				enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(int(level))))
				return enc
			},
		}
		c.zstdDecoderPool = sync.Pool{
			New: func() any {
				dec, _ := zstd.NewReader(nil)
				return dec
			},
		}
	}

	return c
}

// Algorithm returns the codec's algorithm.
func (c *Codec) Algorithm() Algorithm {
	return c.algorithm
}

// Compress compresses data.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		return c.compressZSTD(data)
	case AlgorithmGzip:
		return c.compressGzip(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

// Decompress decompresses data.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmZSTD:
		return c.decompressZSTD(data)
	case AlgorithmGzip:
		return c.decompressGzip(data)
	case AlgorithmNone:
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", c.algorithm)
	}
}

func (c *Codec) compressZSTD(data []byte) ([]byte, error) {
	enc := c.zstdEncoderPool.Get().(*zstd.Encoder)
	defer c.zstdEncoderPool.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	if _, err := enc.Write(data); err != nil {
		return nil, fmt.Errorf("zstd compression failed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("zstd flush failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) decompressZSTD(data []byte) ([]byte, error) {
	dec := c.zstdDecoderPool.Get().(*zstd.Decoder)
	defer c.zstdDecoderPool.Put(dec)

	if err := dec.Reset(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("zstd decoder reset failed: %w", err)
	}
	out, err := io.ReadAll(dec.IOReadCloser())
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}
	return out, nil
}

func (c *Codec) compressGzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzipLevel(c.level))
	if err != nil {
		return nil, fmt.Errorf("gzip writer failed: %w", err)
	}
	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("gzip compression failed: %w", err)
	}
	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("gzip flush failed: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *Codec) decompressGzip(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader failed: %w", err)
	}
	defer gr.Close()

	out, err := io.ReadAll(gr)
	if err != nil {
		return nil, fmt.Errorf("gzip decompression failed: %w", err)
	}
	return out, nil
}

// gzipLevel maps the codec level onto gzip's 1..9 scale.
func gzipLevel(level Level) int {
	switch {
	case level <= LevelFastest:
		return gzip.BestSpeed
	case level >= LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

// defaultCodecs are shared by the file helpers; one per algorithm.
var defaultCodecs = map[Algorithm]*Codec{
	AlgorithmZSTD: NewCodec(AlgorithmZSTD, LevelDefault),
	AlgorithmGzip: NewCodec(AlgorithmGzip, LevelDefault),
	AlgorithmNone: NewCodec(AlgorithmNone, LevelDefault),
}

// ReadFile reads a file and transparently decompresses it based on its
// extension.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return defaultCodecs[DetectAlgorithm(path)].Decompress(data)
}

// WriteFile writes data to a file, compressing it when the path's
// extension asks for an algorithm.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	out, err := defaultCodecs[DetectAlgorithm(path)].Compress(data)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, perm)
}
