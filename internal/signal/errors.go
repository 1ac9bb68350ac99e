package signal

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput is returned when a recording's shape or contents
	// cannot be processed. Check for it with errors.Is.
	ErrMalformedInput = errors.New("malformed input")

	// ErrDegenerateLead is returned when a lead has zero (or non-finite)
	// standard deviation and cannot be normalized.
	ErrDegenerateLead = errors.New("degenerate lead")
)

// MalformedInputError carries the reason a recording was rejected.
type MalformedInputError struct {
	Reason string
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedInput, e.Reason)
}

func (e *MalformedInputError) Unwrap() error { return ErrMalformedInput }

// Malformedf builds a MalformedInputError from a format string.
func Malformedf(format string, args ...interface{}) error {
	return &MalformedInputError{Reason: fmt.Sprintf(format, args...)}
}

// DegenerateLeadError reports which lead failed normalization.
type DegenerateLeadError struct {
	Lead int
	Std  float64
}

func (e *DegenerateLeadError) Error() string {
	return fmt.Sprintf("%v: lead %d has standard deviation %v", ErrDegenerateLead, e.Lead, e.Std)
}

func (e *DegenerateLeadError) Unwrap() error { return ErrDegenerateLead }
