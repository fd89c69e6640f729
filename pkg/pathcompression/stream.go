// Package pathcompression wraps streams with gzip or zstd compression.
package pathcompression

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with the given format. Closing the returned writer
// flushes the compressor but does not close w.
func NewWriter(w io.Writer, format Format, level Level) (io.WriteCloser, error) {
	switch format {
	case None, "":
		return nopWriteCloser{w}, nil

	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(level.zstdLevel()))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		return zw, nil

	case Gzip:
		gw, err := pgzip.NewWriterLevel(w, level.gzipLevel())
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip writer: %w", err)
		}
		return gw, nil
	}
	return nil, fmt.Errorf("unsupported compression format: %s", format)
}

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// NewReader wraps r with a decompressor for the given format. Closing the
// returned reader releases the decompressor but does not close r.
func NewReader(r io.Reader, format Format) (io.ReadCloser, error) {
	switch format {
	case None, "":
		return io.NopCloser(r), nil

	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return zstdReadCloser{zr}, nil

	case Gzip:
		gr, err := pgzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gr, nil
	}
	return nil, fmt.Errorf("unsupported compression format: %s", format)
}
