package api

import (
	stdcontext "context"
	"errors"
	"time"
)

var (
	ErrUnknownRun = errors.New("unknown run")
)

// RunInfo describes a run that is still in flight.
type RunInfo struct {
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	Pid     int       `json:"pid"`
	Command string    `json:"command"`
	Started time.Time `json:"started"`
	Elapsed string    `json:"elapsed"`
}

// StatusReport lists the active runs of this process.
type StatusReport struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Runs        []RunInfo `json:"runs"`
}

// Controller exposes run state to the HTTP API.
type Controller interface {
	Status(ctx stdcontext.Context) (*StatusReport, error)
	Run(ctx stdcontext.Context, id string) (*RunInfo, error)
}
