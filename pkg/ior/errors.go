package ior

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedSection is returned when a line inside a recognized
	// section is missing its expected structure.
	ErrMalformedSection = errors.New("malformed section")

	// ErrIncompleteRun is returned by helpers that need both start and
	// stop timestamps of a run.
	ErrIncompleteRun = errors.New("run record incomplete")
)

// LineError locates a parse failure within a report.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// malformed wraps a cause so that it matches ErrMalformedSection.
func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedSection}, args...)...)
}
