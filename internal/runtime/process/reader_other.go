//go:build !unix

package process

import (
	"os"
	"time"
)

// Pipes cannot be read without blocking here, so reads are bounded by the
// drain timeout once interrupted.
func newInterruptibleReader(f *os.File, drainTimeout time.Duration) interruptibleReader {
	return newTimeoutReader(f, drainTimeout)
}
