package mediaidx

// TrackType identifies the kind of content carried on a Track.
type TrackType int

// Track types.
const (
	TrackUnknown TrackType = iota
	TrackVideo
	TrackAudio
	TrackData
)

// FrameType tags a video frame's coding type.
type FrameType int

// Frame types.
const (
	FrameOther FrameType = iota
	FrameI
	FrameP
	FrameB
)

// FrameInfo is one record per packet admitted to a Track.
type FrameInfo struct {
	// PTS is the presentation timestamp in the track's timebase.
	PTS int64

	// FilePos is the byte offset of the packet in the source file, 0 if
	// unknown.
	FilePos int64

	// FrameSize is the packet payload length, 0 if unknown.
	FrameSize uint32

	// OriginalPos relates presentation order to decode order, valid once
	// the track has been finalized. In a video track, frames[j].OriginalPos
	// is the presentation-order index of the j-th frame in decode order
	// (the inverse of the sort's permutation); where that permutation is
	// its own inverse this equals the frame's own decode position. In
	// other tracks it is the frame's index.
	OriginalPos uint64

	// FrameType tags I/P/B/other for video frames.
	FrameType FrameType

	// RepeatPict is the parser-reported repeat_pict value for video
	// frames; 0 for audio.
	RepeatPict int32

	// KeyFrame is true if the packet is self-decodable.
	KeyFrame bool

	// SampleStart is the cumulative audio sample index at packet start.
	// Audio only.
	SampleStart int64

	// SampleCount is the number of audio samples in this packet. Audio
	// only.
	SampleCount uint32
}

// Rational is a track timebase: PTS * Num / Den yields seconds.
type Rational struct {
	Num int64
	Den int64
}

// Seconds converts a PTS value in this timebase to floating-point seconds.
func (r Rational) Seconds(pts int64) float64 {
	return float64(pts*r.Num) / float64(r.Den)
}
