package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/config"
	"github.com/sahilchouksey/course-enrollment/model"
	"gopkg.in/gomail.v2"
)

var (
	// ErrSMTPNotConfigured is returned when no SMTP host is set
	ErrSMTPNotConfigured = errors.New("SMTP not configured")
	// ErrNoRemindersSent is returned when every reminder of an event failed
	ErrNoRemindersSent = errors.New("no reminders sent")
)

// MailSender delivers composed messages. *gomail.Dialer satisfies it.
type MailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailService handles sending emails via SMTP
type EmailService struct {
	sender MailSender
	from   string
}

// NewEmailService creates an email service backed by an SMTP dialer
func NewEmailService(env *config.EnviornmentVariable) *EmailService {
	var sender MailSender
	if env.SMTP_HOST != "" {
		sender = gomail.NewDialer(env.SMTP_HOST, env.SMTP_PORT, env.SMTP_USERNAME, env.SMTP_PASSWORD)
	}
	from := env.SMTP_FROM
	if from == "" {
		from = env.SMTP_USERNAME
	}
	return NewEmailServiceWithSender(sender, from)
}

// NewEmailServiceWithSender creates an email service using the given sender
func NewEmailServiceWithSender(sender MailSender, from string) *EmailService {
	return &EmailService{sender: sender, from: from}
}

// IsConfigured checks if SMTP is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.sender != nil
}

// SendEmail sends a plain text email to a single recipient
func (e *EmailService) SendEmail(to, subject, body string) error {
	if !e.IsConfigured() {
		log.Warnf("[MAILER] SMTP not configured, email to %s not sent", to)
		return ErrSMTPNotConfigured
	}

	m := gomail.NewMessage()
	m.SetHeader("From", e.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := e.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	log.Infof("[MAILER] Email sent to %s", to)
	return nil
}

// SendCourseReminders mails every recipient of a finished enrollment.
// A failed recipient is logged and does not stop the others; the returned
// count is the number of emails sent.
func (e *EmailService) SendCourseReminders(info model.NotificationInfo) int {
	subject := ReminderSubject(info)
	body := ReminderBody(info)

	sent := 0
	for _, to := range info.Emails {
		if err := e.SendEmail(to, subject, body); err != nil {
			log.Errorf("[MAILER] Reminder for course %s not delivered to %s: %v", info.CourseCode, to, err)
			continue
		}
		sent++
	}

	log.Infof("[MAILER] Course %s: %d/%d reminders sent", info.CourseCode, sent, len(info.Emails))
	return sent
}

// HandleEnrollmentFinished sends the reminders of a finished enrollment. It
// fails only when recipients exist and none was reached, so the stream entry
// stays pending and is retried.
func (e *EmailService) HandleEnrollmentFinished(ctx context.Context, info model.NotificationInfo) error {
	sent := e.SendCourseReminders(info)
	if sent == 0 && len(info.Emails) > 0 {
		return fmt.Errorf("course %s: %w to %d recipients", info.CourseCode, ErrNoRemindersSent, len(info.Emails))
	}
	return nil
}

// ReminderSubject is the subject line of a course reminder
func ReminderSubject(info model.NotificationInfo) string {
	return "Reminder: course " + info.CourseName
}

// ReminderBody renders the reminder text sent to each course member
func ReminderBody(info model.NotificationInfo) string {
	start := info.CourseStartDate.UTC()
	end := info.CourseEndDate.UTC()

	var b strings.Builder
	fmt.Fprintf(&b, "Course %s starts on %s at %s. Please arrive 15 minutes early.\n",
		info.CourseName, start.Format("2006-01-02"), start.Format("15:04"))
	fmt.Fprintf(&b, "Course description: %s\n", info.CourseDescription)
	fmt.Fprintf(&b, "Course ends on %s at %s\n", end.Format("2006-01-02"), end.Format("15:04"))
	b.WriteString("We are waiting for you!")
	return b.String()
}
