package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func zeroLogger() zerolog.Logger { return zerolog.Nop() }

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Duration != 90*time.Second || !d.IsSet() {
		t.Fatalf("unexpected duration %+v", d)
	}

	var empty Duration
	if err := empty.UnmarshalText(nil); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if empty.Duration != 0 || !empty.IsSet() {
		t.Fatalf("expected explicit zero, got %+v", empty)
	}

	if err := new(Duration).UnmarshalText([]byte("nope")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDurationMarshalText(t *testing.T) {
	text, err := Duration{Duration: 2 * time.Second}.MarshalText()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(text) != "2s" {
		t.Fatalf("unexpected text %q", text)
	}
}
