package notify

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2/log"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/utils/cache"
)

// payloadField is the stream entry field holding the JSON encoded event
const payloadField = "payload"

// Publisher emits notification events to a named channel. Delivery is
// at-least-once; consumers must tolerate duplicates.
type Publisher interface {
	Publish(ctx context.Context, channel string, info model.NotificationInfo) error
}

// StreamPublisher appends events to a Redis stream named after the channel
type StreamPublisher struct {
	cache *cache.RedisCache
}

func NewStreamPublisher(c *cache.RedisCache) *StreamPublisher {
	return &StreamPublisher{cache: c}
}

func (p *StreamPublisher) Publish(ctx context.Context, channel string, info model.NotificationInfo) error {
	payload, err := sonic.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	id, err := p.cache.XAdd(ctx, channel, map[string]interface{}{payloadField: string(payload)})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	log.Debugf("[STREAM] Published %s for course %s to %s", id, info.CourseCode, channel)
	return nil
}

// LogPublisher only logs events. Used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, channel string, info model.NotificationInfo) error {
	log.Warnf("[STREAM] No broker configured, dropping %s event for course %s (%d recipients)",
		channel, info.CourseCode, len(info.Emails))
	return nil
}
