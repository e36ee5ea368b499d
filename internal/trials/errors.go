package trials

import (
	"errors"
	"fmt"
)

var (
	ErrInputDir      = errors.New("input directory unreadable")
	ErrNoInputFiles  = errors.New("no trial files found")
	ErrMalformedCSV  = errors.New("malformed csv")
	ErrMissingColumn = errors.New("missing column")
	ErrNonNumeric    = errors.New("non-numeric value")
)

// LoadError wraps trial log failures with their location.
type LoadError struct {
	Kind   error
	File   string
	Row    int
	Column string
	Msg    string
}

func (e *LoadError) Error() string {
	if e == nil {
		return ""
	}
	loc := e.File
	if e.Row > 0 {
		loc = fmt.Sprintf("%s row %d", loc, e.Row)
	}
	if e.Column != "" {
		loc = fmt.Sprintf("%s column %q", loc, e.Column)
	}
	msg := e.Kind.Error()
	if loc != "" {
		msg = fmt.Sprintf("%s: %s", msg, loc)
	}
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	return msg
}

func (e *LoadError) Unwrap() error { return e.Kind }
