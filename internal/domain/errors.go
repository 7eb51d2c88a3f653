package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoCandidates      = errors.New("no candidate sources")
	ErrAllSourcesFailed  = errors.New("all sources failed")
	ErrSourceUnavailable = errors.New("source unavailable")
)

type ProbePhase string

const (
	PhasePing  ProbePhase = "ping"
	PhaseProbe ProbePhase = "probe"
)

const (
	ErrCodeTimeout    = "TIMEOUT"
	ErrCodeConnection = "CONNECTION_FAILED"
	ErrCodeHTTPStatus = "HTTP_STATUS"
	ErrCodeInvalid    = "INVALID_PLAYLIST"
)

// ProbeError describes a failed network probe against one source. It never
// escapes a selection; the source is simply excluded from the phase.
type ProbeError struct {
	Phase    ProbePhase
	SourceID string
	URL      string
	Code     string
	Err      error
}

func (e *ProbeError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Phase, e.SourceID, e.Code)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

func (e *ProbeError) Timeout() bool {
	return e.Code == ErrCodeTimeout
}
