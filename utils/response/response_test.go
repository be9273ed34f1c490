package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-enrollment/model"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", model.ErrCourseNotFound, fiber.StatusNotFound, "COURSE_NOT_FOUND"},
		{"validation", model.ErrStartDateAfterEndDate, fiber.StatusBadRequest, "COURSE_START_DATE_IS_AFTER_END_DATE"},
		{"state conflict", model.ErrCourseIsFull, fiber.StatusConflict, "COURSE_IS_FULL"},
		{"eligibility", model.ErrStudentNotActive, fiber.StatusUnprocessableEntity, "STUDENT_IS_NOT_ACTIVE"},
		{"concurrency", model.ErrConcurrencyConflict, fiber.StatusConflict, "COURSE_CONCURRENT_MODIFICATION"},
		{"upstream", model.ErrDirectoryUnavailable.Wrap(errors.New("503")), fiber.StatusServiceUnavailable, "STUDENT_DIRECTORY_UNAVAILABLE"},
		{"wrapped", fmt.Errorf("enroll: %w", model.ErrAlreadyEnrolled), fiber.StatusConflict, "STUDENT_ALREADY_ENROLLED"},
		{"unknown", errors.New("disk on fire"), fiber.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return FromError(c, tt.err) })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			raw, _ := io.ReadAll(resp.Body)
			var body Response
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode %s: %v", raw, err)
			}
			if body.Success || body.Error == nil || body.Error.Code != tt.wantCode {
				t.Errorf("body = %s, want error code %s", raw, tt.wantCode)
			}
		})
	}
}

func TestFromErrorHidesCause(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return FromError(c, model.ErrDirectoryUnavailable.Wrap(errors.New("connection refused")))
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	var body Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error == nil || body.Error.Details != "" || strings.Contains(body.Error.Message, "connection refused") {
		t.Fatalf("error = %+v, want the cause kept out of the response", body.Error)
	}
	if body.Error.Message != model.ErrDirectoryUnavailable.Message {
		t.Errorf("message = %q, want %q", body.Error.Message, model.ErrDirectoryUnavailable.Message)
	}
}
