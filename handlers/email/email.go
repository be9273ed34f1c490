package email

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/utils/response"
	"github.com/sahilchouksey/course-enrollment/utils/validation"
)

// Sender delivers a single plain-text mail
type Sender interface {
	SendEmail(to, subject, body string) error
}

// EmailHandler handles direct mail requests on the mailer
type EmailHandler struct {
	sender    Sender
	validator *validation.Validator
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(sender Sender) *EmailHandler {
	return &EmailHandler{
		sender:    sender,
		validator: validation.NewValidator(),
	}
}

// SendEmailRequest is the body of POST /email
type SendEmailRequest struct {
	To      string `json:"to" validate:"required,email"`
	Title   string `json:"title" validate:"required,max=255"`
	Content string `json:"content" validate:"required"`
}

// SendEmail handles POST /email
func (h *EmailHandler) SendEmail(c *fiber.Ctx) error {
	var req SendEmailRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, validation.Describe(err))
	}

	if err := h.sender.SendEmail(req.To, validation.SanitizeString(req.Title), req.Content); err != nil {
		log.Errorf("[MAILER] Failed to send email to %s: %v", req.To, err)
		return response.InternalServerError(c, "Failed to send email")
	}

	return response.SuccessWithMessage(c, "Email sent to "+req.To, nil)
}
