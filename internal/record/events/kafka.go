package events

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"clinic/internal/record/models"
)

// KafkaPublisher produces events asynchronously. Delivery failures surface
// only in the log.
type KafkaPublisher struct {
	client   *kgo.Client
	logger   *slog.Logger
	onFailed func()
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithDeliveryFailureHook is called once per failed delivery.
func WithDeliveryFailureHook(fn func()) KafkaOption {
	return func(p *KafkaPublisher) {
		p.onFailed = fn
	}
}

func NewKafkaPublisher(client *kgo.Client, logger *slog.Logger, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{client: client, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish enqueues the record and returns. The produce outlives the request
// context so a finished request does not abort delivery.
func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event models.RecordCreatedEvent) error {
	payload, err := Encode(event)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(event.PatientID, 10)),
		Value: payload,
	}
	p.client.Produce(context.WithoutCancel(ctx), rec, func(r *kgo.Record, err error) {
		if err == nil {
			return
		}
		if p.onFailed != nil {
			p.onFailed()
		}
		p.logger.Warn("event delivery failed",
			"topic", r.Topic,
			"patient_id", event.PatientID,
			"error", err,
		)
	})
	return nil
}

// KafkaSubscriber polls a consumer-group client.
type KafkaSubscriber struct {
	client *kgo.Client
	logger *slog.Logger
}

func NewKafkaSubscriber(client *kgo.Client, logger *slog.Logger) *KafkaSubscriber {
	return &KafkaSubscriber{client: client, logger: logger}
}

func (s *KafkaSubscriber) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := s.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.WarnContext(ctx, "kafka fetch error", "topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(r *kgo.Record) {
			event, err := Decode(r.Value)
			if err != nil {
				s.logger.WarnContext(ctx, "bad event payload", "topic", r.Topic, "offset", r.Offset, "error", err)
				return
			}
			handle(ctx, event)
		})
	}
}
