package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/model"
)

// Requires a reachable Postgres; set DB_HOST (and the usual DB_* variables) to run.
func openTestGORMStore(t *testing.T) *GORMStore {
	t.Helper()
	if os.Getenv("DB_HOST") == "" {
		t.Skip("DB_HOST not set, skipping Postgres integration test")
	}

	env, err := config.Get()
	if err != nil {
		t.Fatalf("config.Get: %v", err)
	}
	store, err := StartGORM(env)
	if err != nil {
		t.Fatalf("StartGORM: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGORMStoreEnrollmentRoundTrip(t *testing.T) {
	store := openTestGORMStore(t)
	ctx := context.Background()

	code := fmt.Sprintf("IT%d", time.Now().UnixNano())
	course := sampleCourse(code, model.CourseStatusActive)
	course.ParticipantsLimit = 1
	if err := store.CreateCourse(ctx, course); err != nil {
		t.Fatalf("CreateCourse: %v", err)
	}
	t.Cleanup(func() {
		store.GetDB().Where("code = ?", code).Delete(&model.Course{})
	})

	if err := store.CreateCourse(ctx, sampleCourse(code, model.CourseStatusActive)); !errors.Is(err, model.ErrCourseCodeAlreadyExists) {
		t.Errorf("duplicate CreateCourse error = %v, want ErrCourseCodeAlreadyExists", err)
	}

	loaded, err := store.GetCourse(ctx, code)
	if err != nil {
		t.Fatalf("GetCourse: %v", err)
	}
	if err := loaded.ApplyEnrollment("a@x.com", time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := store.UpdateCourse(ctx, code, loaded, 0); err != nil {
		t.Fatalf("UpdateCourse: %v", err)
	}
	if err := store.UpdateCourse(ctx, code, loaded, 0); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("stale UpdateCourse error = %v, want ErrVersionConflict", err)
	}

	stored, err := store.GetCourse(ctx, code)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != model.CourseStatusFull || len(stored.Members) != 1 || stored.Version != 1 {
		t.Errorf("stored = status %s, %d members, version %d; want FULL, 1, 1", stored.Status, len(stored.Members), stored.Version)
	}
}
