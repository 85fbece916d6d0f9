package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedTopology = errors.New("malformed topology")
	ErrDuplicateStep     = errors.New("duplicate step")
	ErrUnknownStep       = errors.New("unknown step")
	ErrCycle             = errors.New("graph contains a cycle")
	ErrUnreachable       = errors.New("step unreachable from START")
	ErrNoSink            = errors.New("graph has no sink")
	ErrPathTooShort      = errors.New("path has fewer than two steps")
	ErrTooManyPaths      = errors.New("too many paths")
)

// StructureError describes a graph rejected before enumeration. Kind is
// one of the sentinels above and is what errors.Is matches.
type StructureError struct {
	Kind   error
	Steps  []string
	Detail string
}

func (e *StructureError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if len(e.Steps) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(e.Steps, ", "))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *StructureError) Unwrap() error { return e.Kind }

func structural(kind error, steps []string, format string, args ...any) error {
	return &StructureError{Kind: kind, Steps: steps, Detail: fmt.Sprintf(format, args...)}
}
