package stats

import (
	"errors"
	"fmt"
)

var (
	ErrNoTrials        = errors.New("no trials left after cleaning")
	ErrDegenerateGroup = errors.New("condition has too few retained trials")
	ErrSegmentTooShort = errors.New("segment has fewer than two points")
	ErrSegmentIndex    = errors.New("segment index out of range")
	ErrInvalidConfig   = errors.New("invalid analysis config")
)

// PipelineError wraps analysis failures with the participant they belong to.
type PipelineError struct {
	Kind        error
	Participant string
	Msg         string
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Participant != "" {
		msg = fmt.Sprintf("participant %s: %s", e.Participant, msg)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	return msg
}

func (e *PipelineError) Unwrap() error { return e.Kind }

func pipelineErrorf(kind error, participant, format string, args ...any) error {
	return &PipelineError{Kind: kind, Participant: participant, Msg: fmt.Sprintf(format, args...)}
}

func invalidConfigf(format string, args ...any) error {
	return &PipelineError{Kind: ErrInvalidConfig, Msg: fmt.Sprintf(format, args...)}
}

// IsDataError reports whether err is a per-participant data failure that may be skipped.
func IsDataError(err error) bool {
	return errors.Is(err, ErrNoTrials) ||
		errors.Is(err, ErrDegenerateGroup) ||
		errors.Is(err, ErrSegmentTooShort)
}
