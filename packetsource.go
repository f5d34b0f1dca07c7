package mediaidx

import "io"

// Packet is one demuxed unit handed to the indexer by a PacketSource.
type Packet struct {
	Data        []byte
	StreamIndex int
	PTS         int64
	HasPTS      bool
	DTS         int64
	HasDTS      bool
	Pos         int64
	KeyFrame    bool
}

// PacketSource is the demuxer capability the Indexer consumes. The
// indexer never opens or probes a container itself; a caller constructs
// a concrete PacketSource (out of scope for this package) and hands it
// to NewIndexer already positioned at the start of the file.
type PacketSource interface {
	// FormatName reports the demuxer's container format name, consulted
	// by DemuxerDefault resolution.
	FormatName() string

	NumStreams() int
	StreamType(stream int) TrackType
	CodecName(stream int) string

	// NextPacket returns the next packet in file order, or io.EOF once
	// the source is exhausted.
	NextPacket() (Packet, error)

	Close() error
}

// TimebaseSource is an optional PacketSource extension reporting each
// stream's rational timebase. A source that does not implement it is
// treated as reporting {1, 1} for every stream.
type TimebaseSource interface {
	StreamTimebase(stream int) Rational
}

// AudioProperties describes the format of decoded PCM, used to detect a
// mid-stream format change.
type AudioProperties struct {
	SampleRate     int
	SampleFormat   string
	Channels       int
	BytesPerSample int
}

// AudioDecoder turns compressed audio packet payload into PCM. Decode
// consumes a prefix of data and returns how much it consumed, the PCM it
// produced, and the format of that PCM; it is called in a loop by the
// indexer until the packet's payload is exhausted.
type AudioDecoder interface {
	Decode(stream int, data []byte) (consumed int, pcm []byte, props AudioProperties, err error)
}

// VideoParser extracts the information the indexer cannot get from the
// container packet alone: the coded picture type and repeat_pict.
type VideoParser interface {
	Parse(stream int, data []byte) (repeatPict int32, frameType FrameType, err error)
}

// AudioSink is a pure byte appender receiving dumped PCM; the default
// sink is a Wave64Writer. Only Write/Close are part of the indexer's
// contract; header framing is the sink's own concern.
type AudioSink interface {
	io.Writer
	Close() error
}

// ProgressFunc reports indexing progress and requests cancellation by
// returning true.
type ProgressFunc func(current, total int64) (cancel bool)

// AudioNameFunc synthesizes the dump file name for a track the first
// time PCM needs to be written for it. Returning ok=false clears the
// track's dump bit and drops the sink.
type AudioNameFunc func(sourcePath string, stream int, props AudioProperties) (name string, ok bool)

// DemuxerSelector picks which packet-source family an Indexer expects to
// be bound to.
type DemuxerSelector int

// Demuxer selectors.
const (
	DemuxerDefault DemuxerSelector = iota
	DemuxerLAVF
	DemuxerMatroska
	DemuxerHaaliMPEG
	DemuxerHaaliOGG
)
