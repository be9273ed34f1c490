package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/course-enrollment/handlers"
	course_handlers "github.com/sahilchouksey/course-enrollment/handlers/course"
	email_handlers "github.com/sahilchouksey/course-enrollment/handlers/email"
	"github.com/sahilchouksey/course-enrollment/services"
)

// SetupRoutes registers the course API
func SetupRoutes(app *fiber.App, courses *services.CourseService, enrollments *services.EnrollmentService, health map[string]handlers.HealthCheck) {
	app.Get("/ping", handlers.HandleCheckHealth(health))

	// API v1 routes
	api := app.Group("/api/v1")

	courseHandler := course_handlers.NewCourseHandler(courses, enrollments)
	courseRoutes := api.Group("/courses")
	courseRoutes.Get("/", courseHandler.ListCourses)       // List courses, optionally ?status=
	courseRoutes.Post("/", courseHandler.CreateCourse)     // Create course
	courseRoutes.Get("/:code", courseHandler.GetCourse)    // Get course by code
	courseRoutes.Put("/:code", courseHandler.UpdateCourse) // Replace course, may change its code
	courseRoutes.Patch("/:code", courseHandler.PatchCourse)
	courseRoutes.Delete("/:code", courseHandler.DeleteCourse) // Soft delete: INACTIVE
	courseRoutes.Get("/:code/members", courseHandler.GetCourseMembers)
	courseRoutes.Post("/:code/students/:studentId", courseHandler.EnrollStudent)
	courseRoutes.Post("/:code/finish-enroll", courseHandler.FinishEnroll)
}

// SetupMailerRoutes registers the mailer's HTTP surface
func SetupMailerRoutes(app *fiber.App, mailer *services.EmailService, health map[string]handlers.HealthCheck) {
	app.Get("/ping", handlers.HandleCheckHealth(health))

	emailHandler := email_handlers.NewEmailHandler(mailer)
	app.Post("/email", emailHandler.SendEmail)
}
