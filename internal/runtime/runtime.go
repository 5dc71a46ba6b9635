package runtime

import (
	"fmt"
	"sort"
	"strings"
)

// Log sources attached to output produced by a run.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// CommandSpec fully describes an external tool invocation. Stdin is never
// attached; stdout and stderr are always captured.
type CommandSpec struct {
	// Program is the executable to run. Relative names without a path
	// separator are resolved through PATH.
	Program string

	// Args are passed to the program after argv[0].
	Args []string

	// Env holds variables layered on top of the inherited environment.
	Env map[string]string

	// Dir is the working directory. Empty means the caller's directory.
	Dir string
}

// Validate reports whether the spec can be turned into a command.
func (s CommandSpec) Validate() error {
	if strings.TrimSpace(s.Program) == "" {
		return fmt.Errorf("command spec requires a program")
	}
	for k := range s.Env {
		if k == "" || strings.ContainsRune(k, '=') {
			return fmt.Errorf("invalid environment variable name %q", k)
		}
	}
	return nil
}

// EnvList renders Env as sorted KEY=VALUE pairs.
func (s CommandSpec) EnvList() []string {
	if len(s.Env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(s.Env))
	for k := range s.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%s", k, s.Env[k]))
	}
	return out
}

// String renders the command line for log messages.
func (s CommandSpec) String() string {
	if len(s.Args) == 0 {
		return s.Program
	}
	return s.Program + " " + strings.Join(s.Args, " ")
}
