package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sahilchouksey/course-enrollment/model"
)

// MemoryStore is a process-local CourseStore used by tests and the memory driver.
// Courses are stored as clones so callers never share state with the store.
type MemoryStore struct {
	mu           sync.Mutex
	courses      map[string]*model.Course
	nextCourseID uint
	nextMemberID uint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{courses: make(map[string]*model.Course)}
}

func (s *MemoryStore) Init(ctx context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) GetCourse(ctx context.Context, code string) (*model.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.courses[code]
	if !ok {
		return nil, model.ErrCourseNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) ListCourses(ctx context.Context) ([]model.Course, error) {
	return s.list(ctx, nil)
}

func (s *MemoryStore) ListCoursesByStatus(ctx context.Context, statuses ...model.CourseStatus) ([]model.Course, error) {
	wanted := make(map[model.CourseStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	return s.list(ctx, func(c *model.Course) bool { return wanted[c.Status] })
}

func (s *MemoryStore) list(ctx context.Context, keep func(*model.Course) bool) ([]model.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	courses := make([]model.Course, 0, len(s.courses))
	for _, c := range s.courses {
		if keep == nil || keep(c) {
			courses = append(courses, *c.Clone())
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (s *MemoryStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.courses[code]
	return ok, nil
}

func (s *MemoryStore) CreateCourse(ctx context.Context, course *model.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[course.Code]; ok {
		return model.ErrCourseCodeAlreadyExists
	}

	now := time.Now().UTC()
	s.nextCourseID++
	course.ID = s.nextCourseID
	course.CreatedAt = now
	course.UpdatedAt = now
	course.Version = 0
	s.assignMemberIDs(course)

	s.courses[course.Code] = course.Clone()
	return nil
}

func (s *MemoryStore) UpdateCourse(ctx context.Context, code string, course *model.Course, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.courses[code]
	if !ok {
		return model.ErrCourseNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionConflict
	}
	if course.Code != code {
		if _, taken := s.courses[course.Code]; taken {
			return model.ErrCourseCodeAlreadyExists
		}
	}

	course.ID = current.ID
	course.CreatedAt = current.CreatedAt
	course.UpdatedAt = time.Now().UTC()
	course.Version = expectedVersion + 1
	s.assignMemberIDs(course)

	delete(s.courses, code)
	s.courses[course.Code] = course.Clone()
	return nil
}

func (s *MemoryStore) assignMemberIDs(course *model.Course) {
	for i := range course.Members {
		if course.Members[i].ID == 0 {
			s.nextMemberID++
			course.Members[i].ID = s.nextMemberID
		}
		course.Members[i].CourseID = course.ID
	}
}
