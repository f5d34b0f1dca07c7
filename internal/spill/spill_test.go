package spill

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Seq int   `json:"seq"`
	Pos int64 `json:"pos"`
}

func TestLogInMemoryDrain(t *testing.T) {
	l := NewLog[record]("spill-test")
	defer l.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, l.Append(record{Seq: i, Pos: int64(i * 100)}))
	}
	require.Equal(t, 10, l.Len())

	got, err := l.Drain()
	require.NoError(t, err)
	require.Len(t, got, 10)
	for i, rec := range got {
		require.Equal(t, i, rec.Seq)
		require.Equal(t, int64(i*100), rec.Pos)
	}
}

func TestLogSpillsPastThresholdAndDrainsInOrder(t *testing.T) {
	l := NewLog[record]("spill-test")
	l.threshold = recordEstimate * 4

	for i := 0; i < 100; i++ {
		require.NoError(t, l.Append(record{Seq: i}))
	}
	require.NotNil(t, l.file, "expected the log to have spilled")
	require.Equal(t, 100, l.Len())

	spillPath := l.file.Name()
	got, err := l.Drain()
	require.NoError(t, err)
	require.Len(t, got, 100)
	for i, rec := range got {
		require.Equal(t, i, rec.Seq)
	}

	_, err = os.Stat(spillPath)
	require.True(t, os.IsNotExist(err), "spill file should be removed by Drain")
}

func TestLogCloseRemovesSpillFile(t *testing.T) {
	l := NewLog[record]("spill-test")
	l.threshold = recordEstimate

	require.NoError(t, l.Append(record{Seq: 1}))
	require.NotNil(t, l.file)
	spillPath := l.file.Name()

	require.NoError(t, l.Close())
	_, err := os.Stat(spillPath)
	require.True(t, os.IsNotExist(err))
}
