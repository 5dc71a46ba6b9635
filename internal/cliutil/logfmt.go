package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/forkrun/internal/logmux"
	"github.com/Paintersrp/forkrun/internal/runtime"
)

// LogRecord represents a structured log entry ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Run       string    `json:"run"`
	RunID     string    `json:"run_id,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	Outcome   string    `json:"outcome,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
}

// NewLogRecord converts a mux entry into a structured log record with secrets
// masked.
func NewLogRecord(entry logmux.Entry) LogRecord {
	level := entry.Level
	if level == "" {
		if inferred := inferLogLevel(entry.Message); inferred != "" {
			level = inferred
		} else {
			level = "info"
		}
	}
	source := entry.Source
	if source == "" {
		source = runtime.LogSourceSystem
	}
	record := LogRecord{
		Timestamp: entry.Timestamp,
		Run:       entry.Run,
		RunID:     entry.RunID,
		Level:     level,
		Message:   RedactSecrets(entry.Message),
		Source:    source,
	}
	if entry.Outcome != nil {
		record.Outcome = entry.Outcome.Kind.String()
		if entry.Outcome.Kind == runtime.OutcomeFinished {
			code := entry.Outcome.ExitCode
			record.ExitCode = &code
		}
	}
	return record
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogEntry encodes a mux entry to JSON, reporting errors to stderr if
// needed.
func EncodeLogEntry(enc *json.Encoder, stderr io.Writer, entry logmux.Entry) {
	if enc == nil {
		return
	}
	record := NewLogRecord(entry)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}

// FormatLogEntry renders a mux entry as a single text line prefixed with its
// source, and with the run label when prefixRun is set.
func FormatLogEntry(entry logmux.Entry, prefixRun bool) string {
	source := entry.Source
	if source == "" || source == runtime.LogSourceSystem {
		source = "forkrun"
	}
	var b strings.Builder
	if prefixRun && entry.Run != "" {
		b.WriteString(entry.Run)
		b.WriteByte(' ')
	}
	b.WriteByte('[')
	b.WriteString(source)
	b.WriteString("] ")
	b.WriteString(RedactSecrets(entry.Message))
	return b.String()
}
