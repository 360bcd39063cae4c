package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"clinic/internal/record/models"
)

// RedisPublisher publishes on a Redis pub/sub channel named after the topic.
type RedisPublisher struct {
	client redis.UniversalClient
}

func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event models.RecordCreatedEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	receivers, err := p.client.Publish(ctx, topic, payload).Result()
	if err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	if receivers == 0 {
		return ErrNoSubscribers
	}
	return nil
}

// RedisSubscriber listens on a single channel.
type RedisSubscriber struct {
	client redis.UniversalClient
	topic  string
	logger *slog.Logger
}

func NewRedisSubscriber(client redis.UniversalClient, topic string, logger *slog.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, topic: topic, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription closes. Malformed
// payloads are logged and skipped.
func (s *RedisSubscriber) Run(ctx context.Context, handle Handler) error {
	sub := s.client.Subscribe(ctx, s.topic)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", s.topic, err)
	}
	s.logger.InfoContext(ctx, "subscribed", "backend", "redis", "topic", s.topic)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			event, err := Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.WarnContext(ctx, "bad event payload", "topic", s.topic, "error", err)
				continue
			}
			handle(ctx, event)
		}
	}
}
