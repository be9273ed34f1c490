package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestCourseErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same sentinel", ErrCourseNotFound, ErrCourseNotFound, true},
		{"different sentinel", ErrCourseNotFound, ErrCourseNotActive, false},
		{"full matches not active", ErrCourseIsFull, ErrCourseNotActive, true},
		{"full matches capacity exceeded", ErrCourseIsFull, ErrCapacityExceeded, true},
		{"not active does not match full", ErrCourseNotActive, ErrCourseIsFull, false},
		{"directory unavailable matches not eligible", ErrDirectoryUnavailable, ErrStudentNotEligible, true},
		{"not eligible does not match unavailable", ErrStudentNotEligible, ErrDirectoryUnavailable, false},
		{"rule matches invalid state", ErrCannotSetFullStatus, ErrInvalidCourseState, true},
		{"wrapped copy", ErrStudentNotEligible.Wrap(errors.New("404")), ErrStudentNotEligible, true},
		{"fmt wrapped", fmt.Errorf("enroll: %w", ErrAlreadyEnrolled), ErrAlreadyEnrolled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestCourseErrorWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrDirectoryUnavailable.Wrap(cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped error does not unwrap to its cause")
	}
	if ErrDirectoryUnavailable.Err != nil {
		t.Error("Wrap mutated the sentinel")
	}
	if got, want := err.Error(), "Student directory is unavailable: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(fmt.Errorf("x: %w", ErrCapacityExceeded)); got != KindStateConflict {
		t.Errorf("KindOf() = %q, want %q", got, KindStateConflict)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}
