package cli

import (
	"bytes"
	stdcontext "context"
	"errors"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/forkrun/internal/runtime"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("cli tests rely on /bin/sh")
	}
}

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root, _ := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(stdcontext.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"run", "stream", "version"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Fatalf("expected %s command to be registered, err=%v", name, err)
		}
	}
	if !root.SilenceUsage || !root.SilenceErrors {
		t.Fatalf("expected usage and errors to be silenced")
	}
}

func TestRootSetupBuildsProcessExecutor(t *testing.T) {
	skipWithoutShell(t)
	root, ctx := newRootCommand()
	root.SetArgs([]string{"--log-level", "debug", "run", "--", "/bin/sh", "-c", "true"})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if ctx.executor == nil {
		t.Fatal("expected executor to be configured")
	}
	if ctx.cfg.Logging.Level != "debug" {
		t.Fatalf("expected flag to override log level, got %q", ctx.cfg.Logging.Level)
	}
	if !ctx.cfg.Logging.NoColor {
		t.Fatal("expected colour to be disabled for non-terminal output")
	}
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forkrun.yaml")
	if err := os.WriteFile(path, []byte("run:\n  timeout: never\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, err := executeRoot(t, "--config", path, "run", "--", "true")
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestRootRejectsInvalidLogFormat(t *testing.T) {
	_, _, err := executeRoot(t, "--log-format", "xml", "run", "--", "true")
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected log format error, got %v", err)
	}
}

func TestHandleExit(t *testing.T) {
	var stderr bytes.Buffer
	if code := handleExit(nil, &stderr); code != 0 {
		t.Fatalf("expected 0, got %d", code)
	}
	if code := handleExit(&exitError{code: 124, outcome: runtime.TimedOut(time.Second)}, &stderr); code != 124 {
		t.Fatalf("expected 124, got %d", code)
	}
	if stderr.Len() != 0 {
		t.Fatalf("exit status should not be printed, got %q", stderr.String())
	}
	if code := handleExit(errors.New("boom"), &stderr); code != 1 {
		t.Fatalf("expected 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Fatalf("expected error to be printed, got %q", stderr.String())
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		outcome runtime.Outcome
		want    int
	}{
		{runtime.Finished(0), 0},
		{runtime.Finished(3), 3},
		{runtime.Finished(-1), 1},
		{runtime.TimedOut(time.Second), ExitTimedOut},
		{runtime.Cancelled(), ExitCancelled},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.outcome); got != tt.want {
			t.Fatalf("exitCodeFor(%s) = %d, want %d", tt.outcome, got, tt.want)
		}
	}
	if err := outcomeError(runtime.Finished(0)); err != nil {
		t.Fatalf("expected nil error for success, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeRoot(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(stdout, "forkrun dev\n") || !strings.Contains(stdout, "go: ") {
		t.Fatalf("unexpected version output %q", stdout)
	}
}
