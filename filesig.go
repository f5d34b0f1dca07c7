package mediaidx

import (
	"crypto/sha1"
	"fmt"
	"io"
	"os"
)

// signatureWindow is the amount of data hashed from the start and from the
// end of the file: 1 MiB from each end.
const signatureWindow int64 = 1 << 20

// ComputeFileSignature hashes the first and last signatureWindow bytes of
// the file at path (the two windows overlap for files smaller than twice
// the window) together with nothing else, returning the file size and a
// 160-bit SHA-1 digest. For files smaller than the window, the same
// bytes are hashed twice.
func ComputeFileSignature(path string) (size int64, digest [20]byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, digest, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to open %q for hashing", path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, digest, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to stat %q for hashing", path), err)
	}
	size = info.Size()

	h := sha1.New()
	buf := make([]byte, signatureWindow)

	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, digest, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to read %q for hashing", path), err)
	}
	h.Write(buf[:n])

	tailOffset := size - signatureWindow
	if tailOffset < 0 {
		tailOffset = 0
	}
	if _, err := f.Seek(tailOffset, io.SeekStart); err != nil {
		return 0, digest, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to seek in %q for hashing", path), err)
	}

	n, err = io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return 0, digest, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to read %q for hashing", path), err)
	}
	h.Write(buf[:n])

	copy(digest[:], h.Sum(nil))
	return size, digest, nil
}
