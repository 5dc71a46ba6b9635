package process

import (
	"io"
	"sync"
	"time"
)

// DefaultDrainTimeout bounds how long a read may stay outstanding after an
// interrupt when the pipe cannot be read without blocking.
const DefaultDrainTimeout = 2 * time.Second

const readBufferSize = 32 * 1024

// interruptibleReader is a pipe reader that can be told, from another
// goroutine, to stop waiting for more data. Data that is already available is
// still returned after Interrupt; end of stream is reported as io.EOF.
// Close releases the pipe and must not be called concurrently with Read.
type interruptibleReader interface {
	io.ReadCloser
	Interrupt()
}

type readResult struct {
	data []byte
	err  error
}

// timeoutReader moves the blocking reads onto a background goroutine so Read
// can stop waiting for them. After Interrupt, a read that stays outstanding
// past the drain deadline is abandoned and io.EOF is reported. The deadline
// starts at the first read that observes the interrupt.
type timeoutReader struct {
	src     io.ReadCloser
	timeout time.Duration

	results   chan readResult
	interrupt chan struct{}
	abandoned chan struct{}
	once      sync.Once
	abandon   sync.Once

	leftover []byte
	deadline time.Time
	done     bool
	err      error
}

func newTimeoutReader(src io.ReadCloser, timeout time.Duration) *timeoutReader {
	if timeout <= 0 {
		timeout = DefaultDrainTimeout
	}
	r := &timeoutReader{
		src:       src,
		timeout:   timeout,
		results:   make(chan readResult),
		interrupt: make(chan struct{}),
		abandoned: make(chan struct{}),
	}
	go r.pump(src)
	return r
}

func (r *timeoutReader) pump(src io.Reader) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := src.Read(buf)
		var data []byte
		if n > 0 {
			data = append([]byte(nil), buf[:n]...)
		}
		if data != nil || err != nil {
			select {
			case r.results <- readResult{data: data, err: err}:
			case <-r.abandoned:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (r *timeoutReader) Read(p []byte) (int, error) {
	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}
	if r.done {
		return 0, r.err
	}

	var res readResult
	select {
	case res = <-r.results:
	case <-r.interrupt:
		if r.deadline.IsZero() {
			r.deadline = time.Now().Add(r.timeout)
		}
		timer := time.NewTimer(time.Until(r.deadline))
		select {
		case res = <-r.results:
			timer.Stop()
		case <-timer.C:
			r.finish(io.EOF)
			return 0, io.EOF
		}
	}

	if res.err != nil {
		r.finish(res.err)
	}
	n := copy(p, res.data)
	r.leftover = res.data[n:]
	if n > 0 {
		return n, nil
	}
	if res.err != nil {
		return 0, res.err
	}
	return 0, nil
}

func (r *timeoutReader) finish(err error) {
	r.done = true
	r.err = err
	r.abandon.Do(func() { close(r.abandoned) })
}

func (r *timeoutReader) Interrupt() {
	r.once.Do(func() { close(r.interrupt) })
}

// Close releases the background goroutine once its outstanding read returns.
func (r *timeoutReader) Close() error {
	r.abandon.Do(func() { close(r.abandoned) })
	return r.src.Close()
}
