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
)

// EnrollmentService admits students into courses and closes enrollment
type EnrollmentService struct {
	store         database.CourseStore
	directory     StudentDirectory
	notifications *NotificationService
	mutator       *courseMutator
	opts          ServiceOptions
	now           func() time.Time
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	store database.CourseStore,
	locker lock.Locker,
	directory StudentDirectory,
	notifications *NotificationService,
	opts ServiceOptions,
) *EnrollmentService {
	opts = opts.withDefaults()
	if notifications == nil {
		notifications = NewNotificationService(nil, DefaultNotificationChannel)
	}
	return &EnrollmentService{
		store:         store,
		directory:     directory,
		notifications: notifications,
		mutator:       &courseMutator{store: store, locker: locker, maxAttempts: opts.MaxAttempts},
		opts:          opts,
		now:           time.Now,
	}
}

// FinishSummary reports the outcome of a scheduled finish run
type FinishSummary struct {
	Checked   int `json:"checked"`
	Finished  int `json:"finished"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// gate rejects courses that do not accept new members
func gate(c *model.Course) error {
	switch c.Status {
	case model.CourseStatusActive:
		return nil
	case model.CourseStatusFull:
		return model.ErrCourseIsFull
	default:
		return model.ErrCourseNotActive
	}
}

// Enroll adds the student to the course.
//
// The directory lookup and the eligibility checks run on a snapshot without
// holding the course lock. Only the commit runs under the lock, where capacity,
// status and membership are checked again against the current record before
// the single conditional write.
func (s *EnrollmentService) Enroll(ctx context.Context, code string, studentID int64) error {
	course, err := s.store.GetCourse(ctx, code)
	if err != nil {
		return err
	}
	if err := gate(course); err != nil {
		return err
	}

	student, err := s.lookupStudent(ctx, studentID)
	if err != nil {
		log.Warnf("[ENROLL] Student %d rejected for %s: %v", studentID, code, err)
		return err
	}
	if !student.IsActive() {
		return model.ErrStudentNotActive
	}
	if course.HasMember(student.Email) {
		return model.ErrAlreadyEnrolled
	}

	_, err = s.mutator.mutate(ctx, code, func(c *model.Course) error {
		if !c.HasFreePlace() {
			return model.ErrCapacityExceeded
		}
		if err := gate(c); err != nil {
			return err
		}
		if c.HasMember(student.Email) {
			return model.ErrAlreadyEnrolled
		}
		return c.ApplyEnrollment(student.Email, s.now())
	})
	if err != nil {
		return err
	}

	log.Infof("[ENROLL] Student %d (%s) enrolled in %s", studentID, student.Email, code)
	return nil
}

func (s *EnrollmentService) lookupStudent(ctx context.Context, id int64) (*model.Student, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	student, err := s.directory.GetStudentByID(lookupCtx, id)
	if err != nil {
		return nil, lookupError(err)
	}
	if student == nil || student.Email == "" {
		return nil, model.ErrStudentNotEligible
	}
	return student, nil
}

// FinishEnroll closes the course and publishes one notification carrying the
// roster at close time. A failed publish is logged; the close stands.
func (s *EnrollmentService) FinishEnroll(ctx context.Context, code string) error {
	_, err := s.finish(ctx, code)
	return err
}

func (s *EnrollmentService) finish(ctx context.Context, code string) (bool, error) {
	closed, err := s.mutator.mutate(ctx, code, func(c *model.Course) error {
		if !c.Close(model.CloseReasonFinished) {
			return model.ErrCourseAlreadyClosed
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Infof("[FINISH] Enrollment for %s finished with %d members", code, len(closed.Members))
	return s.notifications.NotifyEnrollmentFinished(ctx, closed), nil
}

// FinishDueEnrollments finishes every open course starting at or before cutoff
func (s *EnrollmentService) FinishDueEnrollments(ctx context.Context, cutoff time.Time) (FinishSummary, error) {
	var summary FinishSummary

	courses, err := s.store.ListCoursesByStatus(ctx, model.CourseStatusActive, model.CourseStatusFull)
	if err != nil {
		return summary, fmt.Errorf("failed to list open courses: %w", err)
	}

	var errs []error
	for i := range courses {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		course := &courses[i]
		summary.Checked++
		if course.StartDate.After(cutoff) {
			continue
		}

		published, err := s.finish(ctx, course.Code)
		switch {
		case err == nil:
			summary.Finished++
			if published {
				summary.Published++
			}
		case errors.Is(err, model.ErrCourseAlreadyClosed), errors.Is(err, model.ErrCourseNotFound):
			// closed or renamed since it was listed
		default:
			summary.Failed++
			errs = append(errs, fmt.Errorf("course %s: %w", course.Code, err))
			log.Errorf("[FINISH] Failed to finish %s: %v", course.Code, err)
		}
	}

	return summary, errors.Join(errs...)
}
