// Package queue is the producer side of the async delivery pipeline. The
// consumer (the process that actually renders and sends notifications) is a
// separate deployment reading the same stream.
package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Topic names shared with the consumer side.
const (
	TopicChatUnreadDigest = "chat.unread.digest"
)

// Publisher hands a payload to the delivery queue with at-least-once
// semantics.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// StreamPublisher appends payloads to a Redis Stream per topic. XADD is
// atomic and durable once acknowledged, which is all the producer side needs.
type StreamPublisher struct {
	client *redis.Client
}

func NewStreamPublisher(client *redis.Client) *StreamPublisher {
	return &StreamPublisher{client: client}
}

func (p *StreamPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{"payload": data},
	}).Err()
}
