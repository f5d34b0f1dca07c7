package mediaidx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ErrorHandling is the indexer's policy for recovering from a codec
// decode failure on a given track.
type ErrorHandling int

// Error handling modes.
const (
	ErrorHandlingAbort ErrorHandling = iota
	ErrorHandlingClearTrack
	ErrorHandlingStopTrack
	ErrorHandlingIgnore
)

// Indexer drives a PacketSource to completion, routing packets to
// per-track audio/video handling, enforcing the configured error policy,
// and producing a finished Index.
type Indexer struct {
	sourceFile string
	source     PacketSource
	sourceTag  Source

	fileSize int64
	digest   [20]byte

	indexMask   int64
	dumpMask    int64
	errHandling ErrorHandling

	progressFunc  ProgressFunc
	audioNameFunc AudioNameFunc

	audioDecoders map[int]AudioDecoder
	videoParsers  map[int]VideoParser
	newAudioSink  func(name string, props AudioProperties) (AudioSink, error)

	tracks     map[int]*Track
	trackOrder []int

	lastAudioProps map[int]AudioProperties
	audioSinks     map[int]AudioSink
	currentSample  map[int]int64

	logger *slog.Logger
}

// SetLogger installs the structured logger used for format-change and
// cancellation diagnostics. A nil logger (the default) uses
// slog.Default(). The track-discovery message is logged by NewIndexer,
// before a logger can be installed, so it always goes to slog.Default().
func (ix *Indexer) SetLogger(logger *slog.Logger) { ix.logger = logger }

func (ix *Indexer) log() *slog.Logger {
	if ix.logger != nil {
		return ix.logger
	}
	return slog.Default()
}

// NewIndexer computes the file signature and resolves the demuxer
// family, returning an Indexer ready to be configured and run.
func NewIndexer(path string, selector DemuxerSelector, src PacketSource) (*Indexer, error) {
	size, digest, err := ComputeFileSignature(path)
	if err != nil {
		return nil, err
	}

	tag, err := resolveSource(selector, src)
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		sourceFile:     path,
		source:         src,
		sourceTag:      tag,
		fileSize:       size,
		digest:         digest,
		indexMask:      -1,
		dumpMask:       0,
		errHandling:    ErrorHandlingAbort,
		audioDecoders:  make(map[int]AudioDecoder),
		videoParsers:   make(map[int]VideoParser),
		tracks:         make(map[int]*Track),
		lastAudioProps: make(map[int]AudioProperties),
		audioSinks:     make(map[int]AudioSink),
		currentSample:  make(map[int]int64),
	}

	tb := func(i int) Rational {
		if ts, ok := src.(TimebaseSource); ok {
			return ts.StreamTimebase(i)
		}
		return Rational{Num: 1, Den: 1}
	}

	for i := 0; i < src.NumStreams(); i++ {
		tt := src.StreamType(i)
		ix.tracks[i] = newTrack(tt, tb(i), false, false)
		ix.trackOrder = append(ix.trackOrder, i)
	}

	ix.log().Info("track discovery complete",
		"source_file", path, "format", src.FormatName(), "stream_count", src.NumStreams())

	return ix, nil
}

// resolveSource maps a demuxer selector to the backend tag recorded in
// the index, probing the container format name when asked to pick a
// default.
func resolveSource(selector DemuxerSelector, src PacketSource) (Source, error) {
	switch selector {
	case DemuxerDefault:
		if strings.HasPrefix(src.FormatName(), "matroska") {
			return requireSource(SourceMatroska)
		}
		return requireSource(SourceLAVF)
	case DemuxerLAVF:
		return requireSource(SourceLAVF)
	case DemuxerMatroska:
		return requireSource(SourceMatroska)
	case DemuxerHaaliMPEG:
		return requireSource(SourceHaaliMPEG)
	case DemuxerHaaliOGG:
		return requireSource(SourceHaaliOGG)
	default:
		return 0, newErr(CategoryIndexing, KindInvalidArgument, "invalid demuxer selector")
	}
}

func requireSource(s Source) (Source, error) {
	if EnabledSources&s == 0 {
		return 0, newErr(CategoryParser, KindNotAvailable, "the requested demuxer is not available in this build")
	}
	return s, nil
}

// SetIndexMask sets the bitmask of stream indices whose frames are
// recorded. Every stream still gets a track in the resulting Index; a
// stream whose bit is clear from the start gets an empty one.
func (ix *Indexer) SetIndexMask(mask int64) { ix.indexMask = mask }

// SetDumpMask sets the bitmask of audio stream indices to also dump as
// PCM to disk.
func (ix *Indexer) SetDumpMask(mask int64) { ix.dumpMask = mask }

// SetErrorHandling sets the codec-failure recovery policy. An
// unrecognized mode is rejected.
func (ix *Indexer) SetErrorHandling(mode ErrorHandling) error {
	switch mode {
	case ErrorHandlingAbort, ErrorHandlingClearTrack, ErrorHandlingStopTrack, ErrorHandlingIgnore:
		ix.errHandling = mode
		return nil
	default:
		return newErr(CategoryIndexing, KindInvalidArgument, "invalid error handling mode specified")
	}
}

// SetProgressCallback installs the progress/cancellation callback.
func (ix *Indexer) SetProgressCallback(fn ProgressFunc) { ix.progressFunc = fn }

// SetAudioNameCallback installs the audio dump file naming callback.
func (ix *Indexer) SetAudioNameCallback(fn AudioNameFunc) { ix.audioNameFunc = fn }

// SetAudioDecoder attaches the decoder used to measure sample counts for
// the given stream.
func (ix *Indexer) SetAudioDecoder(stream int, dec AudioDecoder) { ix.audioDecoders[stream] = dec }

// SetVideoParser attaches the parser used to recover repeat_pict/picture
// type for the given stream.
func (ix *Indexer) SetVideoParser(stream int, p VideoParser) { ix.videoParsers[stream] = p }

// SetAudioSinkFactory installs the constructor used to open a dump sink
// once a name has been synthesized. When no factory is installed, dumped
// PCM goes to a Wave64 file at the synthesized name.
func (ix *Indexer) SetAudioSinkFactory(fn func(name string, props AudioProperties) (AudioSink, error)) {
	ix.newAudioSink = fn
}

func (ix *Indexer) trackEnabled(stream int) bool {
	return ix.indexMask&(int64(1)<<uint(stream)) != 0
}

// Run drives the packet source to completion and returns the finished
// Index.
func (ix *Indexer) Run(ctx context.Context) (*Index, error) {
	defer ix.closeSinks()

	var current int64
	for {
		select {
		case <-ctx.Done():
			ix.log().Warn("indexing cancelled via context", "packets_processed", current)
			return nil, newErr(CategoryIndexing, KindCancelled, "indexing was cancelled")
		default:
		}

		pkt, err := ix.source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapErr(CategoryParser, KindFileRead, "failed to read next packet", err)
		}

		current++
		if ix.progressFunc != nil && ix.progressFunc(current, 0) {
			ix.log().Warn("indexing cancelled via progress callback", "packets_processed", current)
			return nil, newErr(CategoryIndexing, KindCancelled, "indexing was cancelled")
		}

		if !ix.trackEnabled(pkt.StreamIndex) {
			continue
		}
		track, ok := ix.tracks[pkt.StreamIndex]
		if !ok {
			continue
		}

		switch track.Type {
		case TrackAudio:
			if err := ix.handleAudioPacket(pkt.StreamIndex, track, pkt); err != nil {
				return nil, err
			}
		case TrackVideo:
			if err := ix.handleVideoPacket(pkt.StreamIndex, track, pkt); err != nil {
				return nil, err
			}
		}
	}

	// Every demuxed stream keeps a structural track in the Index even when
	// its mask bit is (or became) clear: stop_track leaves already-recorded
	// frames behind, clear_track drops the frames recorded before the
	// failure and keeps only the failing packet's own frame, and a track that
	// was never enabled stays empty. The mask gates frame recording, not
	// track existence.
	idx := NewIndex(ix.fileSize, ix.digest, ix.sourceTag)
	for _, i := range ix.trackOrder {
		idx.Tracks = append(idx.Tracks, ix.tracks[i])
	}
	if err := idx.Sort(); err != nil {
		return nil, err
	}
	return idx, nil
}

// handleVideoPacket records one video frame per packet, falling back to
// DTS when the packet carries no PTS.
func (ix *Indexer) handleVideoPacket(stream int, track *Track, pkt Packet) error {
	var repeatPict int32
	frameType := FrameOther

	if p, ok := ix.videoParsers[stream]; ok {
		rp, ft, err := p.Parse(stream, pkt.Data)
		if err != nil {
			if ferr := ix.handleCodecFailure(stream, track, err); ferr != nil {
				return ferr
			}
		} else {
			repeatPict = rp
			frameType = ft
		}
	}

	pts := pkt.PTS
	if !pkt.HasPTS {
		pts = pkt.DTS
		track.UseDTS = true
	}
	if pkt.HasPTS || pkt.HasDTS {
		track.HasTS = true
	}

	return track.append(FrameInfo{
		PTS:        pts,
		FilePos:    pkt.Pos,
		FrameSize:  uint32(len(pkt.Data)),
		FrameType:  frameType,
		RepeatPict: repeatPict,
		KeyFrame:   pkt.KeyFrame,
	})
}

// handleAudioPacket decodes the packet to exhaustion, checking for a
// mid-stream format change, advancing the sample counter, optionally
// dumping PCM, and recording one FrameInfo for the whole packet. A decode failure under a non-abort policy only abandons
// the undecoded remainder of the packet; the frame is still recorded
// with whatever sample count was decoded before the failure.
func (ix *Indexer) handleAudioPacket(stream int, track *Track, pkt Packet) error {
	dec, ok := ix.audioDecoders[stream]
	if !ok {
		return track.append(FrameInfo{
			PTS:         pkt.PTS,
			FilePos:     pkt.Pos,
			FrameSize:   uint32(len(pkt.Data)),
			KeyFrame:    pkt.KeyFrame,
			SampleStart: ix.currentSample[stream],
		})
	}

	data := pkt.Data
	sampleStart := ix.currentSample[stream]
	var sampleCount int64

decodeLoop:
	for len(data) > 0 {
		consumed, pcm, props, err := dec.Decode(stream, data)
		if err != nil {
			switch ix.errHandling {
			case ErrorHandlingAbort:
				return wrapErr(CategoryCodec, KindDecoding, fmt.Sprintf("failed to decode audio packet on track %d", stream), err)
			case ErrorHandlingClearTrack:
				track.clear()
				ix.indexMask &^= int64(1) << uint(stream)
			case ErrorHandlingStopTrack:
				ix.indexMask &^= int64(1) << uint(stream)
			}
			// Non-abort policies abandon only the undecoded remainder
			// of this packet; whatever was decoded before the failure
			// still counts towards the frame recorded below.
			break decodeLoop
		}
		if consumed <= 0 {
			break
		}
		data = data[consumed:]

		if err := ix.checkAudioProperties(stream, props); err != nil {
			return err
		}

		if props.BytesPerSample > 0 && props.Channels > 0 {
			sampleCount += int64(len(pcm)) / int64(props.BytesPerSample*props.Channels)
		}

		if ix.dumpMask&(int64(1)<<uint(stream)) != 0 {
			if err := ix.writeAudioDump(stream, props, pcm); err != nil {
				return err
			}
		}
	}

	ix.currentSample[stream] = sampleStart + sampleCount

	return track.append(FrameInfo{
		PTS:         pkt.PTS,
		FilePos:     pkt.Pos,
		FrameSize:   uint32(len(pkt.Data)),
		KeyFrame:    pkt.KeyFrame,
		SampleStart: sampleStart,
		SampleCount: uint32(sampleCount),
	})
}

// checkAudioProperties records a track's audio format on first sight and
// rejects any later change; a mid-stream format change is fatal
// regardless of the error policy.
func (ix *Indexer) checkAudioProperties(stream int, props AudioProperties) error {
	prev, ok := ix.lastAudioProps[stream]
	if !ok {
		ix.lastAudioProps[stream] = props
		return nil
	}
	if prev != props {
		ix.log().Warn("mid-stream audio format change detected",
			"stream", stream,
			"from_sample_rate", prev.SampleRate, "from_channels", prev.Channels,
			"to_sample_rate", props.SampleRate, "to_channels", props.Channels)
		return newErr(CategoryUnsupported, KindDecoding, fmt.Sprintf(
			"audio format changed mid-stream on track %d: %d Hz/%s/%dch -> %d Hz/%s/%dch",
			stream, prev.SampleRate, prev.SampleFormat, prev.Channels,
			props.SampleRate, props.SampleFormat, props.Channels))
	}
	return nil
}

func (ix *Indexer) writeAudioDump(stream int, props AudioProperties, pcm []byte) error {
	sink, ok := ix.audioSinks[stream]
	if !ok {
		if ix.audioNameFunc == nil {
			ix.dumpMask &^= int64(1) << uint(stream)
			return nil
		}
		name, wantDump := ix.audioNameFunc(ix.sourceFile, stream, props)
		if !wantDump {
			ix.dumpMask &^= int64(1) << uint(stream)
			return nil
		}
		factory := ix.newAudioSink
		if factory == nil {
			factory = func(name string, props AudioProperties) (AudioSink, error) {
				return NewWave64Writer(name, props)
			}
		}
		s, err := factory(name, props)
		if err != nil {
			return wrapErr(CategoryWaveWriter, KindFileWrite, fmt.Sprintf("failed to open dump sink for track %d", stream), err)
		}
		ix.audioSinks[stream] = s
		sink = s
	}

	if len(pcm) == 0 {
		return nil
	}
	if _, err := sink.Write(pcm); err != nil {
		return wrapErr(CategoryWaveWriter, KindFileWrite, fmt.Sprintf("failed to write dump data for track %d", stream), err)
	}
	return nil
}

func (ix *Indexer) handleCodecFailure(stream int, track *Track, cause error) error {
	switch ix.errHandling {
	case ErrorHandlingAbort:
		return wrapErr(CategoryCodec, KindDecoding, fmt.Sprintf("failed to parse video packet on track %d", stream), cause)
	case ErrorHandlingClearTrack:
		track.clear()
		ix.indexMask &^= int64(1) << uint(stream)
		return nil
	case ErrorHandlingStopTrack:
		ix.indexMask &^= int64(1) << uint(stream)
		return nil
	default:
		return nil
	}
}

func (ix *Indexer) closeSinks() {
	for _, s := range ix.audioSinks {
		_ = s.Close()
	}
}
