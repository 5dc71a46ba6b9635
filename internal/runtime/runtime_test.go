package runtime

import (
	"reflect"
	"testing"
	"time"
)

func TestCommandSpecValidate(t *testing.T) {
	tests := []struct {
		name    string
		spec    CommandSpec
		wantErr bool
	}{
		{name: "valid", spec: CommandSpec{Program: "echo", Env: map[string]string{"A": "1"}}},
		{name: "empty program", spec: CommandSpec{Program: "  "}, wantErr: true},
		{name: "empty env name", spec: CommandSpec{Program: "echo", Env: map[string]string{"": "1"}}, wantErr: true},
		{name: "env name with equals", spec: CommandSpec{Program: "echo", Env: map[string]string{"A=B": "1"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommandSpecEnvListSorted(t *testing.T) {
	spec := CommandSpec{Program: "env", Env: map[string]string{"B": "2", "A": "1", "C": "x=y"}}
	want := []string{"A=1", "B=2", "C=x=y"}
	if got := spec.EnvList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("EnvList() = %v, want %v", got, want)
	}
	if got := (CommandSpec{Program: "env"}).EnvList(); got != nil {
		t.Fatalf("expected nil env list, got %v", got)
	}
}

func TestCommandSpecString(t *testing.T) {
	if got := (CommandSpec{Program: "echo"}).String(); got != "echo" {
		t.Fatalf("unexpected string %q", got)
	}
	if got := (CommandSpec{Program: "sh", Args: []string{"-c", "true"}}).String(); got != "sh -c true" {
		t.Fatalf("unexpected string %q", got)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := []struct {
		outcome Outcome
		want    string
	}{
		{Finished(0), "finished(0)"},
		{Finished(-1), "finished(-1)"},
		{TimedOut(2 * time.Second), "timed_out(2s)"},
		{Cancelled(), "cancelled"},
	}
	for _, tt := range tests {
		if got := tt.outcome.String(); got != tt.want {
			t.Fatalf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestOutcomeSuccess(t *testing.T) {
	if !Finished(0).Success() {
		t.Fatal("expected finished(0) to be a success")
	}
	for _, o := range []Outcome{Finished(1), TimedOut(time.Second), Cancelled()} {
		if o.Success() {
			t.Fatalf("expected %s not to be a success", o)
		}
	}
}

func TestEventKindNamesMatchLogSources(t *testing.T) {
	if EventStdout.String() != LogSourceStdout || EventStderr.String() != LogSourceStderr {
		t.Fatalf("unexpected event kind names %q %q", EventStdout, EventStderr)
	}
	if EventExit.String() != "exit" {
		t.Fatalf("unexpected exit kind name %q", EventExit)
	}
}
