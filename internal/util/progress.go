// Package util implements progress reporting, adapted from the
// teacher's src/util/progress.go ProgressLogger: atomic row/byte
// counters advanced by the caller, rendered
// periodically instead of the teacher's multi-file ANSI progress box
// (this program emits a single file, so "file" becomes "row").
package util

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	units "github.com/docker/go-units"
	"github.com/schollz/progressbar/v3"
)

// RowProgressLogger tracks rows ingested and bytes written for one
// run, printing a periodic one-line summary the way the teacher's
// ProgressLogger does for files/bytes.
type RowProgressLogger struct {
	action   string
	interval time.Duration
	rows     atomic.Int64
	bytes    atomic.Int64
	stop     chan struct{}
}

// NewRowProgressLogger starts a logger that reports to w every
// interval until Stop is called.
func NewRowProgressLogger(w io.Writer, action string, interval time.Duration) *RowProgressLogger {
	l := &RowProgressLogger{action: action, interval: interval, stop: make(chan struct{})}
	if interval > 0 {
		l.start(w)
	}
	return l
}

// AddRows increments the row counter.
func (l *RowProgressLogger) AddRows(delta int64) {
	if delta != 0 {
		l.rows.Add(delta)
	}
}

// AddBytes increments the byte counter.
func (l *RowProgressLogger) AddBytes(delta int64) {
	if delta != 0 {
		l.bytes.Add(delta)
	}
}

// Snapshot returns the current row and byte counts.
func (l *RowProgressLogger) Snapshot() (rows, bytes int64) {
	return l.rows.Load(), l.bytes.Load()
}

// Stop ends the periodic reporting goroutine.
func (l *RowProgressLogger) Stop() {
	close(l.stop)
}

func (l *RowProgressLogger) start(w io.Writer) {
	go func() {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		prevRows, prevTime := int64(0), time.Now()
		for {
			select {
			case <-l.stop:
				return
			case now := <-ticker.C:
				rows := l.rows.Load()
				bytes := l.bytes.Load()
				elapsed := now.Sub(prevTime).Seconds()
				rate := rowsPerSecond(rows-prevRows, elapsed)

				fmt.Fprintf(w, "%s: %d rows (%s, %.0f rows/s)\n", l.action, rows, units.BytesSize(float64(bytes)), rate)

				prevRows, prevTime = rows, now
			}
		}
	}()
}

func rowsPerSecond(delta int64, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return float64(delta) / elapsedSeconds
}

// NewByteSpinner creates an indeterminate progress bar for the Writer
// Driver's output stream, since the final row count isn't known ahead
// of a streaming write — mirroring the teacher's NewFileProgressBar
// construction (src/util/progress.go) with total -1 for the
// indeterminate case instead of a known file count.
func NewByteSpinner(w io.Writer, action string) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription(action),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
}
