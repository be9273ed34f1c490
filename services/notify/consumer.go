package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/course-enrollment/model"
	"github.com/sahilchouksey/course-enrollment/utils/cache"
)

// Handler processes one event. A returned error leaves the entry pending so it
// is redelivered when the consumer restarts.
type Handler func(ctx context.Context, info model.NotificationInfo) error

// StreamConsumer reads events from a Redis stream as a member of a consumer group
type StreamConsumer struct {
	cache    *cache.RedisCache
	stream   string
	group    string
	consumer string

	// Block is how long a read waits for new entries
	Block time.Duration
	// Batch is the max entries fetched per read
	Batch int64
	// RetryDelay is the pause after a failed read
	RetryDelay time.Duration
}

func NewStreamConsumer(c *cache.RedisCache, stream, group string) *StreamConsumer {
	return &StreamConsumer{
		cache:      c,
		stream:     stream,
		group:      group,
		consumer:   "consumer-" + uuid.NewString(),
		Block:      2 * time.Second,
		Batch:      10,
		RetryDelay: time.Second,
	}
}

// WithName replaces the generated consumer name. A stable name lets a
// restarted process pick up the entries it left pending.
func (c *StreamConsumer) WithName(name string) *StreamConsumer {
	if name != "" {
		c.consumer = name
	}
	return c
}

// Run consumes until ctx is cancelled. Entries left pending by an earlier run
// of this consumer are handled first.
func (c *StreamConsumer) Run(ctx context.Context, handle Handler) error {
	if err := c.cache.EnsureGroup(ctx, c.stream, c.group); err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", c.group, err)
	}
	log.Infof("[STREAM] Consumer %s joined group %s on %s", c.consumer, c.group, c.stream)

	// pending entries first; a read from "0" never blocks
	for {
		messages, err := c.cache.ReadGroup(ctx, c.stream, c.group, c.consumer, "0", c.Batch, -1)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to read pending entries: %w", err)
		}
		if len(messages) == 0 {
			break
		}
		if c.process(ctx, messages, handle) == 0 {
			// every pending entry failed again; leave them for the next run
			break
		}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		messages, err := c.cache.ReadGroup(ctx, c.stream, c.group, c.consumer, ">", c.Batch, c.Block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Errorf("[STREAM] Read from %s failed: %v", c.stream, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.RetryDelay):
			}
			continue
		}
		c.process(ctx, messages, handle)
	}
}

// process handles a batch and returns how many entries were acknowledged
func (c *StreamConsumer) process(ctx context.Context, messages []redis.XMessage, handle Handler) int {
	acked := 0
	for _, msg := range messages {
		info, err := decodeMessage(msg)
		if err != nil {
			// undecodable entries can never succeed
			log.Errorf("[STREAM] Dropping entry %s: %v", msg.ID, err)
		} else if err := handle(ctx, info); err != nil {
			log.Errorf("[STREAM] Handler failed for entry %s (course %s): %v", msg.ID, info.CourseCode, err)
			continue
		}

		if err := c.ack(ctx, msg.ID); err != nil {
			log.Errorf("[STREAM] Failed to ack %s: %v", msg.ID, err)
			continue
		}
		acked++
	}
	return acked
}

// ack survives cancellation of ctx so a handled entry is not redelivered
func (c *StreamConsumer) ack(ctx context.Context, id string) error {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	return c.cache.Ack(ackCtx, c.stream, c.group, id)
}

func decodeMessage(msg redis.XMessage) (model.NotificationInfo, error) {
	var info model.NotificationInfo
	raw, ok := msg.Values[payloadField].(string)
	if !ok {
		return info, fmt.Errorf("missing %q field", payloadField)
	}
	if err := sonic.UnmarshalString(raw, &info); err != nil {
		return info, fmt.Errorf("invalid payload: %w", err)
	}
	return info, nil
}
