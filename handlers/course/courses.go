package course

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services"
	"github.com/sahilchouksey/course-enrollment/utils/response"
	"github.com/sahilchouksey/course-enrollment/utils/validation"
)

// CourseHandler handles course-related requests
type CourseHandler struct {
	courses     *services.CourseService
	enrollments *services.EnrollmentService
	validator   *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *services.CourseService, enrollments *services.EnrollmentService) *CourseHandler {
	return &CourseHandler{
		courses:     courses,
		enrollments: enrollments,
		validator:   validation.NewValidator(),
	}
}

// CourseRequest is the body of POST /courses and PUT /courses/:code
type CourseRequest struct {
	Code               string    `json:"code" validate:"required,course_code,max=50"`
	Name               string    `json:"name" validate:"required,max=255"`
	Description        string    `json:"description" validate:"omitempty,max=2000"`
	StartDate          time.Time `json:"start_date" validate:"required"`
	EndDate            time.Time `json:"end_date" validate:"required"`
	ParticipantsLimit  *int64    `json:"participants_limit" validate:"required,gte=0"`
	ParticipantsNumber *int64    `json:"participants_number" validate:"omitempty,gte=0"`
	Status             string    `json:"status" validate:"required,oneof=ACTIVE INACTIVE FULL"`
}

func (r CourseRequest) toModel() *model.Course {
	c := &model.Course{
		Code:              validation.SanitizeString(r.Code),
		Name:              validation.SanitizeString(r.Name),
		Description:       validation.SanitizeString(r.Description),
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		ParticipantsLimit: *r.ParticipantsLimit,
		Status:            model.CourseStatus(r.Status),
	}
	if r.ParticipantsNumber != nil {
		c.ParticipantsNumber = *r.ParticipantsNumber
	}
	return c
}

// PatchCourseRequest is the body of PATCH /courses/:code; absent fields are kept
type PatchCourseRequest struct {
	Name               *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Description        *string    `json:"description" validate:"omitempty,max=2000"`
	StartDate          *time.Time `json:"start_date"`
	EndDate            *time.Time `json:"end_date"`
	ParticipantsLimit  *int64     `json:"participants_limit" validate:"omitempty,gte=0"`
	ParticipantsNumber *int64     `json:"participants_number" validate:"omitempty,gte=0"`
	Status             *string    `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE FULL"`
}

func (r PatchCourseRequest) toPatch() model.CoursePatch {
	patch := model.CoursePatch{
		StartDate:          r.StartDate,
		EndDate:            r.EndDate,
		ParticipantsLimit:  r.ParticipantsLimit,
		ParticipantsNumber: r.ParticipantsNumber,
	}
	if r.Name != nil {
		name := validation.SanitizeString(*r.Name)
		patch.Name = &name
	}
	if r.Description != nil {
		description := validation.SanitizeString(*r.Description)
		patch.Description = &description
	}
	if r.Status != nil {
		status := model.CourseStatus(*r.Status)
		patch.Status = &status
	}
	return patch
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	var status *model.CourseStatus
	if raw := c.Query("status"); raw != "" {
		parsed, err := model.ParseCourseStatus(raw)
		if err != nil {
			return response.FromError(c, err)
		}
		status = &parsed
	}

	courses, err := h.courses.ListCourses(c.UserContext(), status)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, courses)
}

// GetCourse handles GET /api/v1/courses/:code
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	course, err := h.courses.GetCourse(c.UserContext(), c.Params("code"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	course, err := h.courses.AddCourse(c.UserContext(), req.toModel())
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/courses/:code
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	course, err := h.courses.PutCourse(c.UserContext(), c.Params("code"), req.toModel())
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, course)
}

// PatchCourse handles PATCH /api/v1/courses/:code
func (h *CourseHandler) PatchCourse(c *fiber.Ctx) error {
	var req PatchCourseRequest
	if ok, err := h.parse(c, &req); !ok {
		return err
	}

	course, err := h.courses.PatchCourse(c.UserContext(), c.Params("code"), req.toPatch())
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, course)
}

// DeleteCourse handles DELETE /api/v1/courses/:code
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	if err := h.courses.DeleteCourse(c.UserContext(), c.Params("code")); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}

// EnrollStudent handles POST /api/v1/courses/:code/students/:studentId
func (h *CourseHandler) EnrollStudent(c *fiber.Ctx) error {
	studentID, err := strconv.ParseInt(c.Params("studentId"), 10, 64)
	if err != nil || studentID <= 0 {
		return response.BadRequest(c, "Invalid student ID")
	}

	if err := h.enrollments.Enroll(c.UserContext(), c.Params("code"), studentID); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Student enrolled successfully", nil)
}

// GetCourseMembers handles GET /api/v1/courses/:code/members
func (h *CourseHandler) GetCourseMembers(c *fiber.Ctx) error {
	members, err := h.courses.GetCourseMembers(c.UserContext(), c.Params("code"))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, members)
}

// FinishEnroll handles POST /api/v1/courses/:code/finish-enroll
func (h *CourseHandler) FinishEnroll(c *fiber.Ctx) error {
	if err := h.enrollments.FinishEnroll(c.UserContext(), c.Params("code")); err != nil {
		return response.FromError(c, err)
	}

	return response.SuccessWithMessage(c, "Course enrollment finished", nil)
}

// parse decodes and validates the request body. When it reports false the
// error response has already been written.
func (h *CourseHandler) parse(c *fiber.Ctx, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return false, response.ValidationError(c, validation.Describe(err))
	}
	return true, nil
}
