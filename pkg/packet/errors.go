package packet

import (
	"errors"
	"fmt"
)

// Sentinel errors identifying the validator's error kinds, matched with
// errors.Is by callers that need to distinguish surfaced failures from
// retryable ones.
var (
	ErrValidation     = errors.New("validation failed")
	ErrHashMismatch   = errors.New("packet_id does not match canonical content hash")
	ErrUnknownEnum    = errors.New("unknown enum value")
	ErrEmptyContent   = errors.New("content has no vector_data, analytical_data, or graph_data")
)

// FieldError is a single schema or semantic violation, reported with a
// JSON-Pointer-like path so a caller can locate it in the submitted document.
type FieldError struct {
	Path string
	Err  error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ValidationError aggregates every FieldError found while validating a
// packet. Validate returns it wrapped in ErrValidation (or ErrHashMismatch
// when the only violation is the content hash).
type ValidationError struct {
	Errors []*FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors, first: %v", len(e.Errors), e.Errors[0])
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func newFieldError(path string, err error) *FieldError {
	return &FieldError{Path: path, Err: err}
}
