package process

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

// Gather drains stream into per-stream buffers and returns them with the
// run's outcome. It stops at the first error. A stream that ends without an
// exit event yields ErrProtocolViolation.
func Gather(ctx context.Context, stream runtime.EventStream) (*runtime.Result, error) {
	var stdout, stderr bytes.Buffer
	for {
		event, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil, ErrProtocolViolation
		}
		if err != nil {
			return nil, err
		}

		switch event.Kind {
		case runtime.EventStdout:
			stdout.Write(event.Data)
		case runtime.EventStderr:
			stderr.Write(event.Data)
		case runtime.EventExit:
			return &runtime.Result{
				Outcome: event.Outcome,
				Stdout:  stdout.Bytes(),
				Stderr:  stderr.Bytes(),
			}, nil
		}
	}
}
