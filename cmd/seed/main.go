package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/database"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services"
	"github.com/sahilchouksey/course-enrollment/services/lock"
	"github.com/sahilchouksey/course-enrollment/services/students"
)

type seedCourse struct {
	code, name, description string
	startsIn, lasts         time.Duration
	limit                   int64
}

var seedCourses = []seedCourse{
	{"CS101", "Introduction to Programming", "Variables, control flow and functions", 14 * 24 * time.Hour, 5 * 24 * time.Hour, 30},
	{"CS201", "Data Structures", "Lists, trees, hash tables and graphs", 21 * 24 * time.Hour, 5 * 24 * time.Hour, 25},
	{"MATH110", "Discrete Mathematics", "Logic, sets, combinatorics and proofs", 28 * 24 * time.Hour, 3 * 24 * time.Hour, 40},
	{"DB300", "Database Systems", "Relational model, SQL and transactions", 35 * 24 * time.Hour, 4 * 24 * time.Hour, 2},
}

func main() {
	if err := config.LoadENV(); err != nil {
		log.Fatalf("Failed to load .env: %v", err)
	}
	env, err := config.Get()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	store, err := database.Open(ctx, env)
	if err != nil {
		log.Fatalf("Failed to connect to %s store: %v", env.STORE_DRIVER, err)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}

	courses := services.NewCourseService(store, lock.NewKeyedMutex(env.ENROLLMENT_LOCK_WAIT),
		students.New(env.STUDENT_SERVICE_URL, env.STUDENT_SERVICE_TIMEOUT), services.ServiceOptions{})

	separator := strings.Repeat("=", 60)
	fmt.Println(separator)
	fmt.Println("Course Enrollment - Seeding courses")
	fmt.Println(separator)

	now := time.Now().UTC().Truncate(time.Hour)
	created, skipped := 0, 0
	for _, s := range seedCourses {
		start := now.Add(s.startsIn)
		_, err := courses.AddCourse(ctx, &model.Course{
			Code:              s.code,
			Name:              s.name,
			Description:       s.description,
			StartDate:         start,
			EndDate:           start.Add(s.lasts),
			ParticipantsLimit: s.limit,
			Status:            model.CourseStatusActive,
		})
		switch {
		case err == nil:
			created++
			fmt.Printf("  created %-8s %s\n", s.code, s.name)
		case errors.Is(err, model.ErrCourseCodeAlreadyExists):
			skipped++
			fmt.Printf("  exists  %-8s %s\n", s.code, s.name)
		default:
			log.Fatalf("Seeding %s failed: %v", s.code, err)
		}
	}

	fmt.Println(separator)
	fmt.Printf("Seeding completed: %d created, %d already present\n", created, skipped)
}
