package filter

import (
	"errors"
	"fmt"
)

// ErrMalformedFilter is the sentinel matched by every *MalformedFilterError.
var ErrMalformedFilter = errors.New("malformed filter")

// MalformedFilterError describes why a filter expression was rejected.
type MalformedFilterError struct {
	// Path locates the offending node, e.g. "And[1].Identifiable".
	Path   string
	Reason string
	cause  error
}

func (e *MalformedFilterError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("malformed filter: %s", e.Reason)
	}
	return fmt.Sprintf("malformed filter at %s: %s", e.Path, e.Reason)
}

// Is makes errors.Is(err, ErrMalformedFilter) hold.
func (e *MalformedFilterError) Is(target error) bool { return target == ErrMalformedFilter }

func (e *MalformedFilterError) Unwrap() error { return e.cause }

func malformed(path, format string, args ...any) *MalformedFilterError {
	return &MalformedFilterError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
