package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/redis/go-redis/v9"
)

// backplaneChannel is the pub/sub channel shared by all server instances.
const backplaneChannel = "realtime:events"

// Frame is one event crossing the backplane.
type Frame struct {
	Room     string   `json:"room"`
	Event    string   `json:"event"`
	Envelope Envelope `json:"envelope"`
}

// Backplane carries frames between server instances. Every instance
// publishes to it and every instance, the publisher included, receives each
// frame back for local delivery.
type Backplane interface {
	Publish(ctx context.Context, f Frame) error
	Subscribe(ctx context.Context, handler func(Frame)) error
}

// RedisBackplane implements Backplane over Redis pub/sub.
type RedisBackplane struct {
	client *redis.Client
}

func NewRedisBackplane(client *redis.Client) *RedisBackplane {
	return &RedisBackplane{client: client}
}

func (b *RedisBackplane) Publish(ctx context.Context, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, backplaneChannel, data).Err(); err != nil {
		return fmt.Errorf("backplane publish: %w", err)
	}
	return nil
}

// Subscribe confirms the subscription synchronously, then relays frames until
// ctx is cancelled.
func (b *RedisBackplane) Subscribe(ctx context.Context, handler func(Frame)) error {
	sub := b.client.Subscribe(ctx, backplaneChannel)
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("backplane subscribe: %w", err)
	}

	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var f Frame
				if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
					logger.Warn().Err(err).Msg("backplane frame decode failed")
					continue
				}
				handler(f)
			}
		}
	}()
	return nil
}
