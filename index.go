package mediaidx

import "sync/atomic"

// Index is the complete frame directory for one source file: one Track
// per demuxed stream, plus the file-identity signature used to detect a
// stale on-disk index.
//
// An Index is reference-counted the way the original handle was, since
// the same parsed index is commonly shared by several readers of the
// same file. AddRef/Release adjust the count; the zero-reference
// transition is the caller's cue to discard the Index.
type Index struct {
	Tracks   []*Track
	FileSize int64
	Digest   [20]byte
	Decoder  Source

	refcount int32
}

// NewIndex creates an Index bound to the given file identity, starting
// at one reference.
func NewIndex(fileSize int64, digest [20]byte, decoder Source) *Index {
	return &Index{
		FileSize: fileSize,
		Digest:   digest,
		Decoder:  decoder,
		refcount: 1,
	}
}

// AddRef increments the reference count and returns the new value.
func (idx *Index) AddRef() int32 {
	return atomic.AddInt32(&idx.refcount, 1)
}

// Release decrements the reference count and returns the value after the
// decrement. A return of 0 means the caller held the last reference and
// should discard the Index.
func (idx *Index) Release() int32 {
	return atomic.AddInt32(&idx.refcount, -1)
}

// Sort finalizes every track: trims the defensive trailing frame,
// reorders and sorts video tracks into presentation order, and fixes up
// OriginalPos. It must run exactly once, after indexing
// completes and before the Index is queried or persisted.
func (idx *Index) Sort() error {
	for _, t := range idx.Tracks {
		if err := t.finalize(); err != nil {
			return err
		}
	}
	return nil
}

// CompareFileSignature reports whether the file at path still matches
// the signature this Index was built from, the standard staleness check
// before trusting a cached on-disk index.
func (idx *Index) CompareFileSignature(path string) (bool, error) {
	size, digest, err := ComputeFileSignature(path)
	if err != nil {
		return false, err
	}
	return size == idx.FileSize && digest == idx.Digest, nil
}
