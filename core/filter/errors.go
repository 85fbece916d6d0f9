package filter

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFilter = errors.New("malformed filter")
	ErrFieldNotFound   = errors.New("filter field not found")
	ErrFieldMismatch   = errors.New("filter field name mismatch")
	ErrValidation      = errors.New("filter validation failed")
)

// Validation codes carried by ValidationError.
const (
	CodeMissingField     = "MISSING_FIELD"
	CodeMissingOperator  = "MISSING_OPERATOR"
	CodeUnknownOperator  = "UNKNOWN_OPERATOR"
	CodeMissingValue     = "MISSING_VALUE"
	CodeInvalidCondition = "INVALID_CONDITION"
	CodeEmptyGroup       = "EMPTY_GROUP"
)

// MalformedFilterError reports input that matches neither node shape.
type MalformedFilterError struct {
	Path   string
	Reason string
}

func (e *MalformedFilterError) Error() string {
	return fmt.Sprintf("malformed filter at %s: %s", e.Path, e.Reason)
}

func (e *MalformedFilterError) Unwrap() error { return ErrMalformedFilter }

// FieldNotFoundError reports a relational node whose field the metadata
// provider does not know.
type FieldNotFoundError struct {
	Schema string
	Field  string
	Err    error
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in schema %q", e.Field, e.Schema)
}

func (e *FieldNotFoundError) Is(target error) bool { return target == ErrFieldNotFound }

func (e *FieldNotFoundError) Unwrap() error { return e.Err }

// FieldMismatchError reports a relational node whose display name differs
// from the stored name of the field its id resolves to.
type FieldMismatchError struct {
	Schema string
	ID     string
	Given  string
	Stored string
}

func (e *FieldMismatchError) Error() string {
	return fmt.Sprintf("field %q in schema %q is named %q, filter says %q", e.ID, e.Schema, e.Stored, e.Given)
}

func (e *FieldMismatchError) Unwrap() error { return ErrFieldMismatch }

// ValidationError reports a structural problem at Path, identified by Code.
type ValidationError struct {
	Code    string
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Path, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func malformed(path, format string, args ...any) error {
	return &MalformedFilterError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func invalid(code, path, format string, args ...any) error {
	return &ValidationError{Code: code, Path: path, Message: fmt.Sprintf(format, args...)}
}
