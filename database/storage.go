package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/model"
)

// ErrVersionConflict is returned by UpdateCourse when the stored version no
// longer matches the expected one
var ErrVersionConflict = errors.New("course version conflict")

// Store drivers accepted by Open
const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// CourseStore is durable keyed storage for course aggregates.
// Lookups by a missing code return model.ErrCourseNotFound.
type CourseStore interface {
	// Lifecycle methods
	Init(ctx context.Context) error
	Close() error
	HealthCheck(ctx context.Context) error

	GetCourse(ctx context.Context, code string) (*model.Course, error)
	ListCourses(ctx context.Context) ([]model.Course, error)
	ListCoursesByStatus(ctx context.Context, statuses ...model.CourseStatus) ([]model.Course, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// CreateCourse stores a new course with version 0.
	// Returns model.ErrCourseCodeAlreadyExists when the code is taken.
	CreateCourse(ctx context.Context, course *model.Course) error

	// UpdateCourse writes course over the record stored under code, provided the
	// stored version equals expectedVersion. course.Code may differ from code
	// (rename). New members are appended. On success course.Version is bumped.
	UpdateCourse(ctx context.Context, code string, course *model.Course, expectedVersion int64) error
}

// Open connects the store selected by STORE_DRIVER
func Open(ctx context.Context, env *config.EnviornmentVariable) (CourseStore, error) {
	switch env.STORE_DRIVER {
	case DriverPostgres, "":
		return StartGORM(env)
	case DriverMongo:
		return StartMongo(ctx, env)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", env.STORE_DRIVER)
	}
}
