package util

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRowProgressLoggerTracksCounters(t *testing.T) {
	var buf bytes.Buffer
	l := NewRowProgressLogger(&buf, "ingesting", 0)
	l.AddRows(10)
	l.AddBytes(2048)

	rows, bytesWritten := l.Snapshot()
	require.Equal(t, int64(10), rows)
	require.Equal(t, int64(2048), bytesWritten)
}

func TestRowProgressLoggerReportsPeriodically(t *testing.T) {
	var buf bytes.Buffer
	l := NewRowProgressLogger(&buf, "ingesting", 5*time.Millisecond)
	l.AddRows(5)
	time.Sleep(40 * time.Millisecond)
	l.Stop()

	require.Contains(t, buf.String(), "ingesting")
}

func TestNewByteSpinnerRendersWithoutPanicking(t *testing.T) {
	var buf bytes.Buffer
	bar := NewByteSpinner(&buf, "writing")
	require.NotNil(t, bar)
}
