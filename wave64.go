package mediaidx

import (
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// Sony Wave64 chunk GUIDs. The first four bytes of each are the ASCII tag
// of the corresponding RIFF chunk.
var (
	guidRIFF = [16]byte{'r', 'i', 'f', 'f', 0x2e, 0x91, 0xcf, 0x11, 0xa5, 0xd6, 0x28, 0xdb, 0x04, 0xc1, 0x00, 0x00}
	guidWAVE = [16]byte{'w', 'a', 'v', 'e', 0xf3, 0xac, 0xd3, 0x11, 0x8c, 0xd1, 0x00, 0xc0, 0x4f, 0x8e, 0xdb, 0x8a}
	guidFMT  = [16]byte{'f', 'm', 't', ' ', 0xf3, 0xac, 0xd3, 0x11, 0x8c, 0xd1, 0x00, 0xc0, 0x4f, 0x8e, 0xdb, 0x8a}
	guidDATA = [16]byte{'d', 'a', 't', 'a', 0xf3, 0xac, 0xd3, 0x11, 0x8c, 0xd1, 0x00, 0xc0, 0x4f, 0x8e, 0xdb, 0x8a}
)

const (
	waveFormatPCM       = 1
	waveFormatIEEEFloat = 3

	// fmtChunkSize counts the 24-byte chunk header plus the 18-byte
	// WAVEFORMATEX body; the body is zero-padded to the next 8-byte
	// boundary on disk but the stored size is the unpadded one.
	fmtChunkSize   = 24 + 18
	wave64HdrBytes = 16 + 8 + 16 + fmtChunkSize + 6 + 16 + 8
)

// Wave64Writer dumps raw PCM into a Sony Wave64 container. After the
// header it is a pure byte appender; Close rewrites the header so the
// chunk sizes cover everything written. Wave64 uses 64-bit sizes, which
// is the point: a multi-hour PCM dump overflows plain RIFF/WAV.
type Wave64Writer struct {
	f              *os.File
	channels       uint16
	samplesPerSec  uint32
	bytesPerSample uint16
	isFloat        bool
	bytesWritten   uint64
}

// NewWave64Writer creates the dump file and writes an initial header
// sized for zero samples. Sample format names beginning with "flt" or
// "dbl" select IEEE-float encoding, anything else PCM.
func NewWave64Writer(path string, props AudioProperties) (*Wave64Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, wrapErr(CategoryWaveWriter, KindFileWrite, fmt.Sprintf("failed to open %q for writing", path), err)
	}

	w := &Wave64Writer{
		f:              f,
		channels:       uint16(props.Channels),
		samplesPerSec:  uint32(props.SampleRate),
		bytesPerSample: uint16(props.BytesPerSample),
		isFloat:        strings.HasPrefix(props.SampleFormat, "flt") || strings.HasPrefix(props.SampleFormat, "dbl"),
	}
	if err := w.writeHeader(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *Wave64Writer) writeHeader() error {
	var hdr [wave64HdrBytes]byte
	b := hdr[:0]

	b = append(b, guidRIFF[:]...)
	b = binary.LittleEndian.AppendUint64(b, wave64HdrBytes+w.bytesWritten)
	b = append(b, guidWAVE[:]...)

	b = append(b, guidFMT[:]...)
	b = binary.LittleEndian.AppendUint64(b, fmtChunkSize)

	formatTag := uint16(waveFormatPCM)
	if w.isFloat {
		formatTag = waveFormatIEEEFloat
	}
	blockAlign := w.bytesPerSample * w.channels
	b = binary.LittleEndian.AppendUint16(b, formatTag)
	b = binary.LittleEndian.AppendUint16(b, w.channels)
	b = binary.LittleEndian.AppendUint32(b, w.samplesPerSec)
	b = binary.LittleEndian.AppendUint32(b, uint32(blockAlign)*w.samplesPerSec)
	b = binary.LittleEndian.AppendUint16(b, blockAlign)
	b = binary.LittleEndian.AppendUint16(b, w.bytesPerSample*8)
	b = binary.LittleEndian.AppendUint16(b, 0) // cbSize
	b = append(b, 0, 0, 0, 0, 0, 0)            // pad fmt body to an 8-byte boundary

	b = append(b, guidDATA[:]...)
	b = binary.LittleEndian.AppendUint64(b, 24+w.bytesWritten)

	if _, err := w.f.WriteAt(b, 0); err != nil {
		return wrapErr(CategoryWaveWriter, KindFileWrite, "failed to write wave64 header", err)
	}
	return nil
}

// Write appends PCM bytes to the data chunk.
func (w *Wave64Writer) Write(p []byte) (int, error) {
	n, err := w.f.WriteAt(p, int64(wave64HdrBytes+w.bytesWritten))
	w.bytesWritten += uint64(n)
	if err != nil {
		return n, wrapErr(CategoryWaveWriter, KindFileWrite, "failed to write wave64 data", err)
	}
	return n, nil
}

// Close rewrites the header with the final chunk sizes and closes the
// file.
func (w *Wave64Writer) Close() error {
	hdrErr := w.writeHeader()
	closeErr := w.f.Close()
	if hdrErr != nil {
		return hdrErr
	}
	if closeErr != nil {
		return wrapErr(CategoryWaveWriter, KindFileWrite, "failed to close wave64 file", closeErr)
	}
	return nil
}

var _ AudioSink = (*Wave64Writer)(nil)
