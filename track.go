package mediaidx

import (
	"fmt"
	"os"
	"sort"

	"github.com/jmylchreest/mediaidx/internal/spill"
)

// Track is the ordered frame directory of one demuxed stream. During
// indexing it accumulates frames monotonically via append; at
// finalization it is reordered/sorted once and becomes immutable.
type Track struct {
	Type     TrackType
	Timebase Rational
	UseDTS   bool
	HasTS    bool

	accum     *spill.Log[FrameInfo]
	frames    []FrameInfo
	finalized bool
}

// newTrack creates an empty track ready to accumulate frames in decode
// order.
func newTrack(tt TrackType, tb Rational, useDTS, hasTS bool) *Track {
	return &Track{
		Type:     tt,
		Timebase: tb,
		UseDTS:   useDTS,
		HasTS:    hasTS,
		accum:    spill.NewLog[FrameInfo]("mediaidx-track"),
	}
}

// append adds a frame in decode order. Valid only before finalize.
func (t *Track) append(fi FrameInfo) error {
	if t.finalized {
		return fmt.Errorf("mediaidx: append to finalized track")
	}
	return t.accum.Append(fi)
}

// clear discards all frames accumulated so far, for the clear_track
// error policy.
func (t *Track) clear() {
	_ = t.accum.Close()
	t.accum = spill.NewLog[FrameInfo]("mediaidx-track")
}

// Len returns the number of frames currently held, whether or not the
// track has been finalized.
func (t *Track) Len() int {
	if t.finalized {
		return len(t.frames)
	}
	return t.accum.Len()
}

// Frames returns the finalized, presentation-ordered frame slice. Valid
// only after finalize has run.
func (t *Track) Frames() []FrameInfo {
	return t.frames
}

// finalize freezes the track: trims the
// defensive trailing phantom frame, stamps decode-order OriginalPos, runs
// the Reorderer for video tracks, stable-sorts by PTS, and recomputes
// OriginalPos as the inverse permutation.
func (t *Track) finalize() error {
	frames, err := t.accum.Drain()
	if err != nil {
		return err
	}
	t.accum = nil

	// Some demuxers (Vorbis) emit a final packet with a bogus low PTS.
	// Trim it, but only on tracks longer than two frames; a two-frame
	// track is left alone.
	if len(frames) > 2 && frames[0].PTS >= frames[len(frames)-1].PTS {
		frames = frames[:len(frames)-1]
	}

	for i := range frames {
		frames[i].OriginalPos = uint64(i)
	}

	if t.Type == TrackVideo {
		reorderDecodeOrder(frames)

		sort.SliceStable(frames, func(i, j int) bool {
			return frames[i].PTS < frames[j].PTS
		})

		reorderTemp := make([]uint64, len(frames))
		for i := range frames {
			reorderTemp[i] = frames[i].OriginalPos
		}
		for i := range frames {
			frames[reorderTemp[i]].OriginalPos = uint64(i)
		}
	}

	t.frames = frames
	t.finalized = true
	return nil
}

// FrameFromPTS returns the index of the frame with an exact PTS match, or
// -1 if none exists.
func (t *Track) FrameFromPTS(pts int64) int {
	for i := range t.frames {
		if t.frames[i].PTS == pts {
			return i
		}
	}
	return -1
}

// FrameFromPos returns the index of the frame with an exact FilePos match,
// or -1 if none exists.
func (t *Track) FrameFromPos(pos int64) int {
	for i := range t.frames {
		if t.frames[i].FilePos == pos {
			return i
		}
	}
	return -1
}

// ClosestFrameFromPTS returns the index of the frame closest to pts,
// binary-searching the presentation-ordered track. Ties (equal absolute
// distance) prefer the earlier frame; out-of-range input clamps to the
// first or last frame.
func (t *Track) ClosestFrameFromPTS(pts int64) int {
	n := len(t.frames)
	if n == 0 {
		return -1
	}

	pos := sort.Search(n, func(i int) bool {
		return t.frames[i].PTS >= pts
	})

	if pos == n {
		return n - 1
	}
	if pos == 0 {
		return 0
	}
	if absInt64(t.frames[pos].PTS-pts) < absInt64(t.frames[pos-1].PTS-pts) {
		return pos
	}
	return pos - 1
}

// FindClosestVideoKeyFrame returns the keyframe that must be decoded from
// to display the requested presentation-order frame.
func (t *Track) FindClosestVideoKeyFrame(frame int) int {
	n := len(t.frames)
	if n == 0 {
		return -1
	}
	if frame < 0 {
		frame = 0
	}
	if frame > n-1 {
		frame = n - 1
	}

	for frame > 0 && !t.frames[frame].KeyFrame {
		frame--
	}
	for frame > 0 && !t.frames[t.frames[frame].OriginalPos].KeyFrame {
		frame--
	}
	return frame
}

// WriteTimecodes emits a "timecode format v2" text file for this track.
func (t *Track) WriteTimecodes(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to open %q for writing", path), err)
	}
	defer f.Close()

	if _, err := f.WriteString("# timecode format v2\n"); err != nil {
		return wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to write %q", path), err)
	}

	for i := range t.frames {
		seconds := t.Timebase.Seconds(t.frames[i].PTS)
		if _, err := fmt.Fprintf(f, "%.6f\n", seconds); err != nil {
			return wrapErr(CategoryParser, KindFileRead, fmt.Sprintf("failed to write %q", path), err)
		}
	}
	return nil
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
