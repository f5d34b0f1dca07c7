package mediaidx

import (
	"bufio"
	"compress/zlib"
	"errors"
	"io"
)

// An index is written once and read back many times; writes always use
// the maximum compression level.
const compressionLevel = zlib.BestCompression

// streamBufSize is the 64 KiB working buffer each direction of the
// compressed stream reads/writes through.
const streamBufSize = 64 << 10

// streamWriter wraps a zlib writer over the on-disk index file, mapping
// zlib/IO failures to the package's Error taxonomy.
type streamWriter struct {
	f  *bufio.Writer
	zw *zlib.Writer
}

// newStreamWriter opens a fresh compressed write stream. Close must be
// called to flush the final zlib block.
func newStreamWriter(w io.Writer) (*streamWriter, error) {
	bw := bufio.NewWriterSize(w, streamBufSize)
	zw, err := zlib.NewWriterLevel(bw, compressionLevel)
	if err != nil {
		return nil, wrapErr(CategoryParser, KindFileWrite, "failed to initialize zlib", err)
	}
	return &streamWriter{f: bw, zw: zw}, nil
}

// Write feeds raw bytes into the compressed stream.
func (s *streamWriter) Write(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if _, err := s.zw.Write(p); err != nil {
		return wrapErr(CategoryParser, KindFileWrite, "failed to write compressed index data", err)
	}
	return nil
}

// Close flushes and terminates the compressed stream.
func (s *streamWriter) Close() error {
	if err := s.zw.Close(); err != nil {
		return wrapErr(CategoryParser, KindFileWrite, "failed to finalize compressed index stream", err)
	}
	if err := s.f.Flush(); err != nil {
		return wrapErr(CategoryParser, KindFileWrite, "failed to flush compressed index stream", err)
	}
	return nil
}

// streamReader wraps a zlib reader over the on-disk index file, mapping
// zlib/IO failures to the package's Error taxonomy.
type streamReader struct {
	zr io.ReadCloser
}

// newStreamReader opens a compressed read stream positioned at the start
// of the index file.
func newStreamReader(r io.Reader) (*streamReader, error) {
	br := bufio.NewReaderSize(r, streamBufSize)
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, mapZlibErr(err)
	}
	return &streamReader{zr: zr}, nil
}

// ReadExact reads exactly len(p) bytes, returning an Error on a short
// read or any decompression failure.
func (s *streamReader) ReadExact(p []byte) error {
	if _, err := io.ReadFull(s.zr, p); err != nil {
		return mapZlibErr(err)
	}
	return nil
}

// Close releases the underlying zlib reader.
func (s *streamReader) Close() error {
	return s.zr.Close()
}

// mapZlibErr classifies a zlib/IO failure into the dictionary/data/
// memory message kinds surfaced to callers.
func mapZlibErr(err error) *Error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, zlib.ErrDictionary):
		return wrapErr(CategoryParser, KindFileRead, "failed to read compressed index data: dictionary error", err)
	case errors.Is(err, zlib.ErrHeader), errors.Is(err, zlib.ErrChecksum):
		return wrapErr(CategoryParser, KindFileRead, "failed to read compressed index data: data error", err)
	default:
		return wrapErr(CategoryParser, KindFileRead, "failed to read compressed index data: memory error", err)
	}
}
