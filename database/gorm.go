package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const pgUniqueViolation = "23505"

type GORMStore struct {
	db *gorm.DB
}

// StartGORM initializes a GORM connection to PostgreSQL
func StartGORM(env *config.EnviornmentVariable) (*GORMStore, error) {
	// Build DSN (Data Source Name)
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		env.DB_HOST,
		env.DB_USER_NAME,
		env.DB_PASSWORD,
		env.DB_NAME,
		env.DB_PORT,
		env.DB_SSL_MODE,
	)

	// Configure GORM logger
	gormLogger := logger.Default.LogMode(logger.Info)
	if env.GO_ENV == "production" {
		gormLogger = logger.Default.LogMode(logger.Error)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:      gormLogger,
		PrepareStmt: true,
	})
	if err != nil {
		log.Errorf("Unable to connect to PostgreSQL with GORM: %v", err)
		return nil, err
	}

	// Get underlying *sql.DB to configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("Successfully connected to PostgreSQL Database with GORM.")

	return NewGORMStore(db), nil
}

// NewGORMStore wraps an open connection
func NewGORMStore(db *gorm.DB) *GORMStore {
	return &GORMStore{db: db}
}

// Init runs the AutoMigrate to create/update tables
func (s *GORMStore) Init(ctx context.Context) error {
	log.Info("Running GORM AutoMigrate for all models...")

	err := s.db.WithContext(ctx).AutoMigrate(
		&model.Course{},
		&model.CourseMember{},
		&model.CronJobLog{},
	)
	if err != nil {
		log.Errorf("Error running AutoMigrate: %v", err)
		return err
	}

	log.Info("GORM AutoMigrate completed successfully!")
	return nil
}

// Close closes the database connection
func (s *GORMStore) Close() error {
	log.Info("Closing GORM PostgreSQL connection...")
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetDB returns the GORM DB instance for cron job logging
func (s *GORMStore) GetDB() *gorm.DB {
	return s.db
}

// HealthCheck verifies the database connection is alive
func (s *GORMStore) HealthCheck(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func preloadMembers(db *gorm.DB) *gorm.DB {
	return db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("enrollment_date ASC, id ASC")
	})
}

func (s *GORMStore) GetCourse(ctx context.Context, code string) (*model.Course, error) {
	var course model.Course
	err := preloadMembers(s.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrCourseNotFound
		}
		return nil, fmt.Errorf("failed to fetch course: %w", err)
	}
	return &course, nil
}

func (s *GORMStore) ListCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if err := preloadMembers(s.db.WithContext(ctx)).Order("code ASC").Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch courses: %w", err)
	}
	return courses, nil
}

func (s *GORMStore) ListCoursesByStatus(ctx context.Context, statuses ...model.CourseStatus) ([]model.Course, error) {
	var courses []model.Course
	err := preloadMembers(s.db.WithContext(ctx)).
		Where("status IN ?", statuses).
		Order("code ASC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch courses by status: %w", err)
	}
	return courses, nil
}

func (s *GORMStore) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Course{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check course code: %w", err)
	}
	return count > 0, nil
}

func (s *GORMStore) CreateCourse(ctx context.Context, course *model.Course) error {
	course.Version = 0
	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		if mapped := translateUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to create course: %w", err)
	}
	return nil
}

// UpdateCourse locks the course row, compares versions and writes the course
// together with any members that have not been persisted yet, in one transaction.
func (s *GORMStore) UpdateCourse(ctx context.Context, code string, course *model.Course, expectedVersion int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrCourseNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return ErrVersionConflict
		}

		result := tx.Model(&model.Course{}).
			Where("id = ? AND version = ?", current.ID, expectedVersion).
			Updates(map[string]interface{}{
				"code":                course.Code,
				"name":                course.Name,
				"description":         course.Description,
				"start_date":          course.StartDate,
				"end_date":            course.EndDate,
				"participants_limit":  course.ParticipantsLimit,
				"participants_number": course.ParticipantsNumber,
				"status":              course.Status,
				"closed_reason":       course.ClosedReason,
				"version":             expectedVersion + 1,
				"updated_at":          time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for i := range course.Members {
			member := &course.Members[i]
			if member.ID != 0 {
				continue
			}
			member.CourseID = current.ID
			if err := tx.Create(member).Error; err != nil {
				return err
			}
		}

		course.ID = current.ID
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, model.ErrCourseNotFound) {
			return err
		}
		if mapped := translateUniqueViolation(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("failed to update course: %w", err)
	}

	course.Version = expectedVersion + 1
	return nil
}

// translateUniqueViolation maps Postgres unique violations to domain errors
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}
	if pgErr.TableName == "course_members" {
		return model.ErrAlreadyEnrolled.Wrap(err)
	}
	return model.ErrCourseCodeAlreadyExists.Wrap(err)
}
