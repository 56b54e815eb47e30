// Package principal carries the authenticated caller through a request.
package principal

import (
	"context"
	"errors"
)

type Kind string

const (
	KindInstitute Kind = "institute"
	KindStudent   Kind = "student"
)

// Principal is a tagged identity. Dispatch on Kind, never on which ids are set.
type Principal struct {
	Kind        Kind   `json:"kind"`
	InstituteID string `json:"institute_id"`
	StudentID   string `json:"student_id,omitempty"`
}

func Institute(instituteID string) Principal {
	return Principal{Kind: KindInstitute, InstituteID: instituteID}
}

func Student(instituteID, studentID string) Principal {
	return Principal{Kind: KindStudent, InstituteID: instituteID, StudentID: studentID}
}

var ErrMalformed = errors.New("malformed principal")

// Validate checks that the ids present match the tag.
func (p Principal) Validate() error {
	if p.InstituteID == "" {
		return ErrMalformed
	}
	switch p.Kind {
	case KindInstitute:
		if p.StudentID != "" {
			return ErrMalformed
		}
	case KindStudent:
		if p.StudentID == "" {
			return ErrMalformed
		}
	default:
		return ErrMalformed
	}
	return nil
}

func (p Principal) IsInstitute() bool { return p.Kind == KindInstitute }
func (p Principal) IsStudent() bool   { return p.Kind == KindStudent }

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	return p, ok
}
