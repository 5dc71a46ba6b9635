// Package process runs external tool invocations as local child processes and
// exposes their output as an ordered event stream.
//
// A run spawns the child in its own process group with stdin disabled and
// stdout/stderr piped, retrying the spawn while the kernel reports ETXTBSY.
// Output is delivered as chunks in read order per pipe, and the stream always
// ends with exactly one exit event. The exit event is produced once the direct
// child has exited or the run's cancellation has fired; the stream never waits
// for grandchildren that keep the pipes open. Once the exit is known, pending
// reads are interrupted and whatever is already buffered in the pipes is
// drained without blocking.
//
// When the cancellation wins the race against the child's exit, the whole
// process group is killed before the exit event is emitted and the synthetic
// TimedOut or Cancelled outcome replaces the killed child's exit code.
//
// Full process-group termination is only guaranteed on Unix, where the group is
// signalled as a unit. On Windows only the direct child is terminated; any
// grandchildren may remain running and must be cleaned up by the caller.
package process
