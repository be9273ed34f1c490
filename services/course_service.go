package services

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/database"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services/lock"
	"github.com/sahilchouksey/course-enrollment/services/students"
)

// CourseService handles course CRUD and the member roster
type CourseService struct {
	store     database.CourseStore
	directory StudentDirectory
	mutator   *courseMutator
	opts      ServiceOptions
	now       func() time.Time
}

// NewCourseService creates a new course service
func NewCourseService(store database.CourseStore, locker lock.Locker, directory StudentDirectory, opts ServiceOptions) *CourseService {
	opts = opts.withDefaults()
	return &CourseService{
		store:     store,
		directory: directory,
		mutator:   &courseMutator{store: store, locker: locker, maxAttempts: opts.MaxAttempts},
		opts:      opts,
		now:       time.Now,
	}
}

// ListCourses returns every course, or only those with the given status
func (s *CourseService) ListCourses(ctx context.Context, status *model.CourseStatus) ([]model.Course, error) {
	if status != nil {
		return s.store.ListCoursesByStatus(ctx, *status)
	}
	return s.store.ListCourses(ctx)
}

func (s *CourseService) GetCourse(ctx context.Context, code string) (*model.Course, error) {
	return s.store.GetCourse(ctx, code)
}

// AddCourse validates and stores a new course
func (s *CourseService) AddCourse(ctx context.Context, course *model.Course) (*model.Course, error) {
	course.Members = nil
	if err := course.Validate(); err != nil {
		return nil, err
	}
	if err := course.ValidateSchedule(s.now()); err != nil {
		return nil, err
	}

	course.StartDate = course.StartDate.UTC()
	course.EndDate = course.EndDate.UTC()
	if course.Status != model.CourseStatusInactive {
		course.ClosedReason = ""
	}

	exists, err := s.store.ExistsByCode(ctx, course.Code)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, model.ErrCourseCodeAlreadyExists
	}

	if err := s.store.CreateCourse(ctx, course); err != nil {
		return nil, err
	}

	log.Infof("[COURSE] Created course %s", course.Code)
	return course, nil
}

// PutCourse replaces every descriptive field of the course stored under code.
// replacement.Code may differ from code; members are kept.
func (s *CourseService) PutCourse(ctx context.Context, code string, replacement *model.Course) (*model.Course, error) {
	if err := replacement.Validate(); err != nil {
		return nil, err
	}
	if err := replacement.ValidateSchedule(s.now()); err != nil {
		return nil, err
	}

	if replacement.Code != code {
		exists, err := s.store.ExistsByCode(ctx, replacement.Code)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, model.ErrCourseCodeAlreadyExists
		}
	}

	updated, err := s.mutator.mutate(ctx, code, func(c *model.Course) error {
		c.Code = replacement.Code
		c.Name = replacement.Name
		c.Description = replacement.Description
		c.StartDate = replacement.StartDate.UTC()
		c.EndDate = replacement.EndDate.UTC()
		c.ParticipantsLimit = replacement.ParticipantsLimit
		c.ParticipantsNumber = replacement.ParticipantsNumber
		c.Status = replacement.Status
		if c.Status != model.CourseStatusInactive {
			c.ClosedReason = ""
		}
		// members are kept, so the counters are checked against them
		return c.Validate()
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[COURSE] Replaced course %s (now %s)", code, updated.Code)
	return updated, nil
}

// PatchCourse merges the supplied fields and re-validates the result
func (s *CourseService) PatchCourse(ctx context.Context, code string, patch model.CoursePatch) (*model.Course, error) {
	if err := patch.ValidateSchedule(s.now()); err != nil {
		return nil, err
	}

	updated, err := s.mutator.mutate(ctx, code, func(c *model.Course) error {
		patch.Apply(c)
		return c.Validate()
	})
	if err != nil {
		return nil, err
	}

	log.Infof("[COURSE] Patched course %s", code)
	return updated, nil
}

// DeleteCourse soft-deletes the course. Deleting an inactive course is a no-op.
func (s *CourseService) DeleteCourse(ctx context.Context, code string) error {
	_, err := s.mutator.mutate(ctx, code, func(c *model.Course) error {
		if !c.Close(model.CloseReasonDeleted) {
			return errUnchanged
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Infof("[COURSE] Deleted course %s", code)
	return nil
}

// GetCourseMembers resolves the course roster through the student directory
func (s *CourseService) GetCourseMembers(ctx context.Context, code string) ([]model.Student, error) {
	course, err := s.store.GetCourse(ctx, code)
	if err != nil {
		return nil, err
	}

	emails := course.MemberEmails()
	if len(emails) == 0 {
		return []model.Student{}, nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.LookupTimeout)
	defer cancel()

	members, err := s.directory.GetStudentsByEmails(lookupCtx, emails)
	if err != nil {
		if students.IsUnavailable(err) {
			return nil, model.ErrDirectoryUnavailable.Wrap(err)
		}
		return nil, fmt.Errorf("failed to resolve members of %s: %w", code, err)
	}
	return members, nil
}
