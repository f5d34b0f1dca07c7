package mediaidx

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestTrack(t *testing.T, tt TrackType, tb Rational, frames []FrameInfo) *Track {
	t.Helper()
	trk := newTrack(tt, tb, false, true)
	for _, fr := range frames {
		require.NoError(t, trk.append(fr))
	}
	require.NoError(t, trk.finalize())
	return trk
}

// The first line is literal; each following line is the frame's
// presentation time in seconds to six decimal places. One tick per
// frame in the NTSC film timebase gives the familiar 41.7ms cadence.
func TestTrackWriteTimecodesNTSCFilm(t *testing.T) {
	tb := Rational{Num: 1001, Den: 24000}
	trk := newTestTrack(t, TrackVideo, tb, []FrameInfo{
		{PTS: 0, FrameType: FrameI},
		{PTS: 1, FrameType: FrameP},
		{PTS: 2, FrameType: FrameP},
		{PTS: 3, FrameType: FrameP},
	})

	path := filepath.Join(t.TempDir(), "timecodes.txt")
	require.NoError(t, trk.WriteTimecodes(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())

	require.Equal(t, []string{
		"# timecode format v2",
		"0.000000",
		"0.041708",
		"0.083417",
		"0.125125",
	}, lines)
}

func TestTrackFrameFromPTSAndPos(t *testing.T) {
	trk := newTestTrack(t, TrackAudio, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0, FilePos: 100},
		{PTS: 10, FilePos: 200},
		{PTS: 20, FilePos: 300},
	})

	require.Equal(t, 1, trk.FrameFromPTS(10))
	require.Equal(t, -1, trk.FrameFromPTS(15))
	require.Equal(t, 2, trk.FrameFromPos(300))
	require.Equal(t, -1, trk.FrameFromPos(999))
}

func TestTrackClosestFrameFromPTS(t *testing.T) {
	trk := newTestTrack(t, TrackAudio, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0},
		{PTS: 10},
		{PTS: 20},
		{PTS: 30},
	})

	require.Equal(t, 0, trk.ClosestFrameFromPTS(-5))
	require.Equal(t, 3, trk.ClosestFrameFromPTS(1000))
	// Exactly equidistant between index 1 (pts=10) and index 2 (pts=20):
	// tie-break toward the lower index.
	require.Equal(t, 1, trk.ClosestFrameFromPTS(15))
	require.Equal(t, 2, trk.ClosestFrameFromPTS(19))
}

func TestTrackFindClosestVideoKeyFrame(t *testing.T) {
	trk := newTestTrack(t, TrackVideo, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0, FrameType: FrameI, KeyFrame: true},
		{PTS: 10, FrameType: FrameP},
		{PTS: 20, FrameType: FrameP},
		{PTS: 30, FrameType: FrameI, KeyFrame: true},
		{PTS: 40, FrameType: FrameP},
	})

	require.Equal(t, 0, trk.FindClosestVideoKeyFrame(0))
	require.Equal(t, 0, trk.FindClosestVideoKeyFrame(2))
	require.Equal(t, 3, trk.FindClosestVideoKeyFrame(4))
	// Out-of-range input clamps into [0, N).
	require.Equal(t, 3, trk.FindClosestVideoKeyFrame(99))
}

// After finalize a video track is presentation-ordered and OriginalPos
// is the self-inverting permutation back to decode order.
func TestTrackFinalizePermutationLawAndOrder(t *testing.T) {
	trk := newTestTrack(t, TrackVideo, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0, FrameType: FrameI},
		{PTS: 20, FrameType: FrameP},
		{PTS: 10, FrameType: FrameB},
		{PTS: 40, FrameType: FrameP},
		{PTS: 30, FrameType: FrameB},
	})

	frames := trk.Frames()
	require.Len(t, frames, 5)

	for i := 0; i < len(frames)-1; i++ {
		require.LessOrEqual(t, frames[i].PTS, frames[i+1].PTS)
	}

	for i := range frames {
		require.Equal(t, uint64(i), frames[frames[i].OriginalPos].OriginalPos)
	}
}

// A single-B GOP already carrying presentation timestamps is sorted
// into display order; OriginalPos maps each display index back to its
// decode position.
func TestTrackFinalizeSingleBPresentationTimestamps(t *testing.T) {
	trk := newTestTrack(t, TrackVideo, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0, FrameType: FrameI},
		{PTS: 20, FrameType: FrameP},
		{PTS: 10, FrameType: FrameB},
		{PTS: 40, FrameType: FrameP},
		{PTS: 30, FrameType: FrameB},
	})

	frames := trk.Frames()
	require.Equal(t, []int64{0, 10, 20, 30, 40}, ptsOf(frames))

	gotPerm := make([]uint64, len(frames))
	for i := range frames {
		gotPerm[i] = frames[i].OriginalPos
	}
	require.Equal(t, []uint64{0, 2, 1, 4, 3}, gotPerm)
}

// The same GOP carrying decode timestamps (monotonic), so
// presentation order is recovered through the B-frame swap pass rather
// than the sort alone. The resulting track must be identical.
func TestTrackFinalizeSingleBFromDecodeTimestamps(t *testing.T) {
	trk := newTestTrack(t, TrackVideo, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 0, FrameType: FrameI},
		{PTS: 10, FrameType: FrameP},
		{PTS: 20, FrameType: FrameB},
		{PTS: 30, FrameType: FrameP},
		{PTS: 40, FrameType: FrameB},
	})

	frames := trk.Frames()
	require.Equal(t, []int64{0, 10, 20, 30, 40}, ptsOf(frames))

	gotPerm := make([]uint64, len(frames))
	for i := range frames {
		gotPerm[i] = frames[i].OriginalPos
	}
	require.Equal(t, []uint64{0, 2, 1, 4, 3}, gotPerm)
}

// The trailing-frame trim only applies when the track holds more than
// two frames; a two-frame track is left alone.
func TestTrackFinalizeTrimRequiresMoreThanTwoFrames(t *testing.T) {
	trk := newTestTrack(t, TrackAudio, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 100},
		{PTS: 0},
	})

	require.Len(t, trk.Frames(), 2)
}

func TestTrackFinalizeTrimsTrailingPhantomFrame(t *testing.T) {
	trk := newTestTrack(t, TrackAudio, Rational{Num: 1, Den: 1}, []FrameInfo{
		{PTS: 10},
		{PTS: 20},
		{PTS: 30},
		{PTS: 0}, // trailing phantom frame: PTS <= first frame's PTS
	})

	require.Len(t, trk.Frames(), 3)
	require.Equal(t, int64(30), trk.Frames()[2].PTS)
}
