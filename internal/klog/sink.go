// Package klog implements the simulator's event log (C11): one line per
// event, "timestamp | text", appended to a file exactly as spec.md ยง6
// specifies. This is a narrow wrapper around a single *os.File opened in
// append mode, in the spirit of biscuit's Fd_t/Circbuf_t: a small owned
// resource exposed through a couple of methods, nothing more.
package klog

import (
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Sink receives one event at a time and renders it as a log line.
type Sink interface {
	Emit(tick int, text string)
	Close() error
}

// FileSink appends "tick | text\n" lines to a file.
type FileSink struct {
	w      io.WriteCloser
	onFail func(error)
}

// OpenFileSink opens (creating if needed) path in append mode for event
// logging. onFail, if non-nil, is called whenever a write fails; FileSink
// never panics or returns an error from Emit itself, since a failing log
// sink must not take down the simulator it is merely observing.
func OpenFileSink(path string, onFail func(error)) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "klog: opening %s", path)
	}
	return &FileSink{w: f, onFail: onFail}, nil
}

// Emit writes one "tick | text" line.
func (s *FileSink) Emit(tick int, text string) {
	if _, err := fmt.Fprintf(s.w, "%d | %s\n", tick, text); err != nil && s.onFail != nil {
		s.onFail(err)
	}
}

// Close releases the underlying file.
func (s *FileSink) Close() error {
	return s.w.Close()
}

// NullSink discards every event; used when LOGS.enable_logs is false.
type NullSink struct{}

// Emit does nothing.
func (NullSink) Emit(tick int, text string) {}

// Close does nothing.
func (NullSink) Close() error { return nil }
