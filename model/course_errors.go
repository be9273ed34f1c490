package model

import (
	"errors"
	"fmt"
)

// ErrorKind groups course errors by how a caller should react to them
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindValidation          ErrorKind = "VALIDATION_FAILURE"
	KindStateConflict       ErrorKind = "STATE_CONFLICT"
	KindEligibility         ErrorKind = "ELIGIBILITY_FAILURE"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
)

// CourseError is a domain error with a stable code.
// Two CourseErrors match under errors.Is when their codes match, or when the
// receiver lists the target's code among its aliases.
type CourseError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error

	aliases []string
}

func newCourseError(kind ErrorKind, code, message string, aliases ...string) *CourseError {
	return &CourseError{Kind: kind, Code: code, Message: message, aliases: aliases}
}

func (e *CourseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CourseError) Unwrap() error {
	return e.Err
}

func (e *CourseError) Is(target error) bool {
	t, ok := target.(*CourseError)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	for _, alias := range e.aliases {
		if alias == t.Code {
			return true
		}
	}
	return false
}

// Wrap returns a copy of e carrying cause
func (e *CourseError) Wrap(cause error) *CourseError {
	c := *e
	c.Err = cause
	return &c
}

// KindOf returns the kind of the first CourseError in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var ce *CourseError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

const codeInvalidCourseState = "INVALID_COURSE_STATE"

var (
	ErrCourseNotFound          = newCourseError(KindNotFound, "COURSE_NOT_FOUND", "Course does not exist")
	ErrCourseCodeAlreadyExists = newCourseError(KindStateConflict, "COURSE_CODE_ALREADY_EXISTS", "Course already exists")

	// ErrInvalidCourseState matches every rule violation reported by Course.Validate
	ErrInvalidCourseState        = newCourseError(KindValidation, codeInvalidCourseState, "Course state is invalid")
	ErrStartDateAfterEndDate     = newCourseError(KindValidation, "COURSE_START_DATE_IS_AFTER_END_DATE", "Course start date is after end date", codeInvalidCourseState)
	ErrParticipantsLimitExceeded = newCourseError(KindValidation, "COURSE_PARTICIPANTS_LIMIT_IS_EXCEEDED", "Course participants limit is exceeded", codeInvalidCourseState)
	ErrCannotSetFullStatus       = newCourseError(KindValidation, "COURSE_CAN_NOT_SET_FULL_STATUS", "Course can not set full status", codeInvalidCourseState)
	ErrCannotSetActiveStatus     = newCourseError(KindValidation, "COURSE_CAN_NOT_SET_ACTIVE_STATUS", "Course can not set active status", codeInvalidCourseState)
	ErrCourseDateNotInFuture     = newCourseError(KindValidation, "COURSE_DATE_IS_NOT_IN_FUTURE", "Course dates must be in the future", codeInvalidCourseState)
	ErrInvalidStatus             = newCourseError(KindValidation, "COURSE_STATUS_IS_INVALID", "Course status is invalid", codeInvalidCourseState)
	ErrNegativeParticipants      = newCourseError(KindValidation, "COURSE_PARTICIPANTS_ARE_NEGATIVE", "Course participants values can not be negative", codeInvalidCourseState)
	ErrParticipantsBelowMembers  = newCourseError(KindValidation, "COURSE_PARTICIPANTS_NUMBER_BELOW_MEMBERS", "Course participants number is lower than its enrolled members", codeInvalidCourseState)

	ErrCourseNotActive     = newCourseError(KindStateConflict, "COURSE_IS_NOT_ACTIVE", "Course is not active")
	ErrCourseAlreadyClosed = newCourseError(KindStateConflict, "COURSE_IS_INACTIVE", "Course is already closed")
	ErrAlreadyEnrolled     = newCourseError(KindStateConflict, "STUDENT_ALREADY_ENROLLED", "Student is already enrolled in the course")
	ErrCapacityExceeded    = newCourseError(KindStateConflict, "COURSE_CAPACITY_EXCEEDED", "Course has no free places left")
	// ErrCourseIsFull is returned by the enrollment gate for a FULL course
	ErrCourseIsFull = newCourseError(KindStateConflict, "COURSE_IS_FULL", "Course is full", "COURSE_IS_NOT_ACTIVE", "COURSE_CAPACITY_EXCEEDED")

	ErrStudentNotEligible = newCourseError(KindEligibility, "STUDENT_CAN_NOT_BE_ENROLLED", "Student can not be enrolled")
	ErrStudentNotActive   = newCourseError(KindEligibility, "STUDENT_IS_NOT_ACTIVE", "Student is not active")

	ErrConcurrencyConflict  = newCourseError(KindConcurrencyConflict, "COURSE_CONCURRENT_MODIFICATION", "Course was modified concurrently, try again")
	ErrDirectoryUnavailable = newCourseError(KindUpstreamUnavailable, "STUDENT_DIRECTORY_UNAVAILABLE", "Student directory is unavailable", "STUDENT_CAN_NOT_BE_ENROLLED")
)
