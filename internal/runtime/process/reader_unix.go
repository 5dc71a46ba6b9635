//go:build unix

package process

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// newInterruptibleReader prefers non-blocking reads through the runtime
// poller and falls back to bounded blocking reads when the pipe is not
// pollable.
func newInterruptibleReader(f *os.File, drainTimeout time.Duration) interruptibleReader {
	if r, err := newPollReader(f); err == nil {
		return r
	}
	return newTimeoutReader(f, drainTimeout)
}

// pollReader parks reads on the runtime poller. Interrupt expires the read
// deadline to wake a parked read, after which the reader only performs raw
// non-blocking reads and treats EAGAIN as end of stream.
type pollReader struct {
	file        *os.File
	raw         syscall.RawConn
	interrupted atomic.Bool
}

func newPollReader(f *os.File) (*pollReader, error) {
	// Fails with os.ErrNoDeadline for descriptors the poller does not manage.
	if err := f.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}
	raw, err := f.SyscallConn()
	if err != nil {
		return nil, err
	}
	return &pollReader{file: f, raw: raw}, nil
}

func (r *pollReader) Read(p []byte) (int, error) {
	if r.interrupted.Load() {
		return r.drain(p)
	}
	n, err := r.file.Read(p)
	if err != nil && errors.Is(err, os.ErrDeadlineExceeded) {
		// Only Interrupt sets a deadline.
		return r.drain(p)
	}
	return n, err
}

func (r *pollReader) drain(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	var (
		n       int
		readErr error
	)
	err := r.raw.Control(func(fd uintptr) {
		for {
			n, readErr = unix.Read(int(fd), p)
			if readErr != unix.EINTR {
				return
			}
		}
	})
	if err != nil {
		return 0, err
	}
	switch {
	case readErr == nil && n > 0:
		return n, nil
	case readErr == nil, errors.Is(readErr, unix.EAGAIN):
		return 0, io.EOF
	default:
		return 0, &os.PathError{Op: "read", Path: r.file.Name(), Err: readErr}
	}
}

func (r *pollReader) Interrupt() {
	r.interrupted.Store(true)
	_ = r.file.SetReadDeadline(time.Now())
}

func (r *pollReader) Close() error {
	return r.file.Close()
}
