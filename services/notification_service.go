package services

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/services/notify"
)

const (
	// DefaultNotificationChannel carries enrollment-finished events
	DefaultNotificationChannel = "enroll_finish"
	defaultPublishTimeout      = 5 * time.Second
)

// NotificationService publishes enrollment events on a fixed channel
type NotificationService struct {
	publisher notify.Publisher
	channel   string
	timeout   time.Duration
}

// NewNotificationService creates a new notification service
func NewNotificationService(publisher notify.Publisher, channel string) *NotificationService {
	if publisher == nil {
		publisher = notify.LogPublisher{}
	}
	return &NotificationService{publisher: publisher, channel: channel, timeout: defaultPublishTimeout}
}

// NotifyEnrollmentFinished publishes the roster of a closed course.
// The publish is bounded by its own timeout and outlives ctx cancellation,
// since the course has already been closed when it runs. Failures are logged.
func (s *NotificationService) NotifyEnrollmentFinished(ctx context.Context, course *model.Course) bool {
	info := model.NewNotificationInfo(course)

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, s.channel, info); err != nil {
		log.Errorf("[FINISH] Failed to publish %s event for course %s: %v", s.channel, course.Code, err)
		return false
	}

	log.Infof("[FINISH] Published %s event for course %s with %d recipients", s.channel, course.Code, len(info.Emails))
	return true
}
