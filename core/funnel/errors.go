package funnel

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest    = errors.New("invalid funnel group request")
	ErrInvalidProjection = errors.New("invalid projection")
	ErrNaming            = errors.New("invalid pipeline naming")
)

// ProjectionError reports the first projection that failed validation.
type ProjectionError struct {
	Index  int
	ID     int64
	Reason string
	Err    error
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("projection %d (field id %d): %s", e.Index, e.ID, e.Reason)
}

func (e *ProjectionError) Is(target error) bool { return target == ErrInvalidProjection }

func (e *ProjectionError) Unwrap() error { return e.Err }

// NamingError reports pipeline names that are missing, blank, duplicated
// or keyed by a path the graph does not have.
type NamingError struct {
	Path   string
	Reason string
}

func (e *NamingError) Error() string {
	if e.Path == "" {
		return "pipeline naming: " + e.Reason
	}
	return fmt.Sprintf("pipeline %q: %s", e.Path, e.Reason)
}

func (e *NamingError) Unwrap() error { return ErrNaming }

// RequestError reports a request missing a required member.
type RequestError struct {
	Field  string
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *RequestError) Unwrap() error { return ErrInvalidRequest }
