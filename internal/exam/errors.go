package exam

import (
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound also covers "exists but not yours" and "not published".
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the student already has an attempt for the exam.
	ErrConflict  = errors.New("already attempted")
	ErrForbidden = errors.New("forbidden")

	// ErrMissingTenant is returned by stores when a query lacks an institute id.
	ErrMissingTenant = errors.New("institute id required")
)

// FieldError is a problem with one input field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		if e.Err == nil {
			return "invalid input"
		}
		return e.Err.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	return strings.Join(parts, "; ")
}

// UpstreamError wraps a failure of the persistence collaborator.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *UpstreamError) Unwrap() error { return e.Err }

// classify passes domain errors through and marks everything else as upstream.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
