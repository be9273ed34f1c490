package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/database"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services/lock"
	"github.com/sahilchouksey/course-enrollment/services/students"
)

const (
	defaultMaxAttempts   = 4
	defaultLookupTimeout = 3 * time.Second
)

// errUnchanged lets a mutation skip the write
var errUnchanged = errors.New("course unchanged")

// StudentDirectory is the remote student lookup. *students.Client satisfies it.
type StudentDirectory interface {
	GetStudentByID(ctx context.Context, id int64) (*model.Student, error)
	GetStudentsByEmails(ctx context.Context, emails []string) ([]model.Student, error)
}

// ServiceOptions tunes the course services
type ServiceOptions struct {
	// MaxAttempts bounds the reload-and-retry loop on version conflicts
	MaxAttempts int
	// LookupTimeout bounds every student directory call
	LookupTimeout time.Duration
}

func (o ServiceOptions) withDefaults() ServiceOptions {
	if o.MaxAttempts < 1 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = defaultLookupTimeout
	}
	return o
}

// courseMutator applies read-modify-write cycles to one course at a time.
// Writers of the same code are serialized by the locker; the version check in
// the store catches writers that bypass it (other replicas without a shared
// locker, expired locks).
type courseMutator struct {
	store       database.CourseStore
	locker      lock.Locker
	maxAttempts int
}

// mutate loads the course, runs apply on it and writes it back conditioned on
// the loaded version. apply runs again on a fresh copy after a conflict.
func (m *courseMutator) mutate(ctx context.Context, code string, apply func(c *model.Course) error) (*model.Course, error) {
	unlock, err := m.locker.Lock(ctx, code)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return nil, model.ErrConcurrencyConflict.Wrap(err)
		}
		return nil, fmt.Errorf("failed to lock course %s: %w", code, err)
	}
	defer unlock()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		course, err := m.store.GetCourse(ctx, code)
		if err != nil {
			return nil, err
		}
		expected := course.Version

		if err := apply(course); err != nil {
			if errors.Is(err, errUnchanged) {
				return course, nil
			}
			return nil, err
		}

		err = m.store.UpdateCourse(ctx, code, course, expected)
		if err == nil {
			return course, nil
		}
		if !errors.Is(err, database.ErrVersionConflict) {
			return nil, err
		}
		log.Warnf("[COURSE] Version conflict on %s (attempt %d/%d)", code, attempt, m.maxAttempts)
	}

	return nil, model.ErrConcurrencyConflict
}

// lookupError normalizes a directory failure. Outages stay distinguishable as
// ErrDirectoryUnavailable, which still matches ErrStudentNotEligible.
func lookupError(err error) error {
	if students.IsUnavailable(err) {
		return model.ErrDirectoryUnavailable.Wrap(err)
	}
	return model.ErrStudentNotEligible.Wrap(err)
}
