package mediaidx

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/jmylchreest/mediaidx/internal/version"
)

// WriteIndex serializes idx to path as a single zlib-compressed stream: a
// fixed-layout index header, followed by one fixed-layout track header and
// delta-coded frame directory per track.
func (idx *Index) WriteIndex(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapErr(CategoryParser, KindFileWrite, fmt.Sprintf("failed to open %q for writing", path), err)
	}
	defer f.Close()

	sw, err := newStreamWriter(f)
	if err != nil {
		return err
	}

	if err := writeIndexHeader(sw, idx); err != nil {
		return err
	}

	for _, t := range idx.Tracks {
		if err := writeTrackHeader(sw, t); err != nil {
			return err
		}
		if err := writeTrackFrames(sw, t.frames); err != nil {
			return err
		}
	}

	return sw.Close()
}

func writeIndexHeader(sw *streamWriter, idx *Index) error {
	fields := []uint32{
		indexMagic,
		version.FormatVersion,
		archTag(),
		uint32(len(idx.Tracks)),
		uint32(idx.Decoder),
		CurrentDependencyVersions.Utility,
		CurrentDependencyVersions.Format,
		CurrentDependencyVersions.Codec,
		CurrentDependencyVersions.Scaler,
		CurrentDependencyVersions.PostProc,
	}
	for _, v := range fields {
		if err := writeU32(sw, v); err != nil {
			return err
		}
	}
	if err := writeI64(sw, idx.FileSize); err != nil {
		return err
	}
	if err := sw.Write(idx.Digest[:]); err != nil {
		return err
	}
	return nil
}

func writeTrackHeader(sw *streamWriter, t *Track) error {
	if err := writeU32(sw, uint32(t.Type)); err != nil {
		return err
	}
	if err := writeU32(sw, uint32(len(t.frames))); err != nil {
		return err
	}
	if err := writeI64(sw, t.Timebase.Num); err != nil {
		return err
	}
	if err := writeI64(sw, t.Timebase.Den); err != nil {
		return err
	}
	if err := writeBool32(sw, t.UseDTS); err != nil {
		return err
	}
	return writeBool32(sw, t.HasTS)
}

// writeTrackFrames writes the delta-coded frame directory: the first
// frame's FilePos/OriginalPos/PTS/SampleStart are absolute, every
// subsequent frame stores the difference from its predecessor.
func writeTrackFrames(sw *streamWriter, frames []FrameInfo) error {
	var prev FrameInfo
	for i, fr := range frames {
		delta := fr
		if i > 0 {
			delta.FilePos = fr.FilePos - prev.FilePos
			delta.OriginalPos = fr.OriginalPos - prev.OriginalPos
			delta.PTS = fr.PTS - prev.PTS
			delta.SampleStart = fr.SampleStart - prev.SampleStart
		}
		if err := writeFrame(sw, delta); err != nil {
			return err
		}
		prev = fr
	}
	return nil
}

func writeFrame(sw *streamWriter, fr FrameInfo) error {
	if err := writeI64(sw, fr.PTS); err != nil {
		return err
	}
	if err := writeI64(sw, fr.SampleStart); err != nil {
		return err
	}
	if err := writeU32(sw, fr.SampleCount); err != nil {
		return err
	}
	if err := writeI64(sw, fr.FilePos); err != nil {
		return err
	}
	if err := writeU32(sw, fr.FrameSize); err != nil {
		return err
	}
	if err := writeU64(sw, fr.OriginalPos); err != nil {
		return err
	}
	if err := writeU32(sw, uint32(fr.FrameType)); err != nil {
		return err
	}
	if err := writeI32(sw, fr.RepeatPict); err != nil {
		return err
	}
	return writeBool32(sw, fr.KeyFrame)
}

func writeU32(sw *streamWriter, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return sw.Write(b[:])
}

func writeI32(sw *streamWriter, v int32) error {
	return writeU32(sw, uint32(v))
}

func writeU64(sw *streamWriter, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return sw.Write(b[:])
}

func writeI64(sw *streamWriter, v int64) error {
	return writeU64(sw, uint64(v))
}

func writeBool32(sw *streamWriter, v bool) error {
	if v {
		return writeU32(sw, 1)
	}
	return writeU32(sw, 0)
}

// ReadIndex parses a compressed index file written by WriteIndex,
// validating header provenance fail-fast:
// magic, then format version, then architecture tag, then dependency
// versions, then decoder availability.
func ReadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to open %q for reading", path), err)
	}
	defer f.Close()

	sr, err := newStreamReader(f)
	if err != nil {
		return nil, err
	}
	defer sr.Close()

	idx := &Index{refcount: 1}

	var numTracks uint32
	if err := readIndexHeader(sr, idx, path, &numTracks); err != nil {
		return nil, err
	}

	for i := uint32(0); i < numTracks; i++ {
		t, err := readTrack(sr)
		if err != nil {
			return nil, err
		}
		idx.Tracks = append(idx.Tracks, t)
	}

	return idx, nil
}

func readIndexHeader(sr *streamReader, idx *Index, path string, numTracks *uint32) error {
	magic, err := readU32(sr)
	if err != nil {
		return err
	}
	if magic != indexMagic {
		return newErr(CategoryParser, KindFileRead, fmt.Sprintf("%q is not a valid index file", path))
	}

	formatVersion, err := readU32(sr)
	if err != nil {
		return err
	}
	if formatVersion != version.FormatVersion {
		return newErr(CategoryParser, KindFileRead, fmt.Sprintf("%q is not the expected index version", path))
	}

	arch, err := readU32(sr)
	if err != nil {
		return err
	}
	if arch != archTag() {
		return newErr(CategoryParser, KindFileRead, fmt.Sprintf("%q was not made with this build", path))
	}

	tracks, err := readU32(sr)
	if err != nil {
		return err
	}
	*numTracks = tracks

	decoder, err := readU32(sr)
	if err != nil {
		return err
	}

	var deps DependencyVersions
	for _, field := range []*uint32{&deps.Utility, &deps.Format, &deps.Codec, &deps.Scaler, &deps.PostProc} {
		v, err := readU32(sr)
		if err != nil {
			return err
		}
		*field = v
	}
	if deps != CurrentDependencyVersions {
		return newErr(CategoryParser, KindFileRead, fmt.Sprintf("a different decoding stack was used to create %q", path))
	}

	if Source(decoder)&EnabledSources == 0 {
		return newErr(CategoryIndex, KindNotAvailable, "the source which this index was created with is not available")
	}
	idx.Decoder = Source(decoder)

	fileSize, err := readI64(sr)
	if err != nil {
		return err
	}
	idx.FileSize = fileSize

	if err := sr.ReadExact(idx.Digest[:]); err != nil {
		return err
	}

	return nil
}

func readTrack(sr *streamReader) (*Track, error) {
	tt, err := readU32(sr)
	if err != nil {
		return nil, err
	}
	numFrames, err := readU32(sr)
	if err != nil {
		return nil, err
	}
	num, err := readI64(sr)
	if err != nil {
		return nil, err
	}
	den, err := readI64(sr)
	if err != nil {
		return nil, err
	}
	useDTS, err := readBool32(sr)
	if err != nil {
		return nil, err
	}
	hasTS, err := readBool32(sr)
	if err != nil {
		return nil, err
	}

	t := &Track{
		Type:      TrackType(tt),
		Timebase:  Rational{Num: num, Den: den},
		UseDTS:    useDTS,
		HasTS:     hasTS,
		finalized: true,
	}

	frames := make([]FrameInfo, numFrames)
	var prev FrameInfo
	for i := range frames {
		fr, err := readFrame(sr)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			fr.FilePos += prev.FilePos
			fr.OriginalPos += prev.OriginalPos
			fr.PTS += prev.PTS
			fr.SampleStart += prev.SampleStart
		}
		frames[i] = fr
		prev = fr
	}
	t.frames = frames

	return t, nil
}

func readFrame(sr *streamReader) (FrameInfo, error) {
	var fr FrameInfo
	var err error

	if fr.PTS, err = readI64(sr); err != nil {
		return fr, err
	}
	if fr.SampleStart, err = readI64(sr); err != nil {
		return fr, err
	}
	if fr.SampleCount, err = readU32(sr); err != nil {
		return fr, err
	}
	if fr.FilePos, err = readI64(sr); err != nil {
		return fr, err
	}
	if fr.FrameSize, err = readU32(sr); err != nil {
		return fr, err
	}
	if fr.OriginalPos, err = readU64(sr); err != nil {
		return fr, err
	}
	ft, err := readU32(sr)
	if err != nil {
		return fr, err
	}
	fr.FrameType = FrameType(ft)
	if fr.RepeatPict, err = readI32(sr); err != nil {
		return fr, err
	}
	if fr.KeyFrame, err = readBool32(sr); err != nil {
		return fr, err
	}
	return fr, nil
}

func readU32(sr *streamReader) (uint32, error) {
	var b [4]byte
	if err := sr.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readI32(sr *streamReader) (int32, error) {
	v, err := readU32(sr)
	return int32(v), err
}

func readU64(sr *streamReader) (uint64, error) {
	var b [8]byte
	if err := sr.ReadExact(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readI64(sr *streamReader) (int64, error) {
	v, err := readU64(sr)
	return int64(v), err
}

func readBool32(sr *streamReader) (bool, error) {
	v, err := readU32(sr)
	return v != 0, err
}
