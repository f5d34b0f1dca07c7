package mediaidx

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWave64WriterHeaderAndSizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.w64")

	w, err := NewWave64Writer(path, AudioProperties{
		SampleRate:     48000,
		SampleFormat:   "s16",
		Channels:       2,
		BytesPerSample: 2,
	})
	require.NoError(t, err)

	pcm := make([]byte, 96)
	n, err := w.Write(pcm)
	require.NoError(t, err)
	require.Equal(t, len(pcm), n)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, raw, wave64HdrBytes+len(pcm))

	require.Equal(t, guidRIFF[:], raw[0:16])
	require.EqualValues(t, wave64HdrBytes+len(pcm), binary.LittleEndian.Uint64(raw[16:24]))
	require.Equal(t, guidWAVE[:], raw[24:40])

	require.Equal(t, guidFMT[:], raw[40:56])
	require.EqualValues(t, fmtChunkSize, binary.LittleEndian.Uint64(raw[56:64]))

	// WAVEFORMATEX body.
	require.EqualValues(t, waveFormatPCM, binary.LittleEndian.Uint16(raw[64:66]))
	require.EqualValues(t, 2, binary.LittleEndian.Uint16(raw[66:68]))
	require.EqualValues(t, 48000, binary.LittleEndian.Uint32(raw[68:72]))
	require.EqualValues(t, 4*48000, binary.LittleEndian.Uint32(raw[72:76]))
	require.EqualValues(t, 4, binary.LittleEndian.Uint16(raw[76:78]))
	require.EqualValues(t, 16, binary.LittleEndian.Uint16(raw[78:80]))

	require.Equal(t, guidDATA[:], raw[88:104])
	require.EqualValues(t, 24+len(pcm), binary.LittleEndian.Uint64(raw[104:112]))
}

func TestWave64WriterFloatFormatTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "float.w64")

	w, err := NewWave64Writer(path, AudioProperties{
		SampleRate:     44100,
		SampleFormat:   "fltp",
		Channels:       1,
		BytesPerSample: 4,
	})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.EqualValues(t, waveFormatIEEEFloat, binary.LittleEndian.Uint16(raw[64:66]))
}
