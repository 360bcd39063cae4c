// Package events announces newly created records. Delivery is at-most-once:
// publishers never retry and subscribers never acknowledge.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"clinic/internal/record/models"
)

// ErrNoSubscribers reports a publish that reached no receiver.
var ErrNoSubscribers = errors.New("events: no subscribers received the event")

// Publisher broadcasts an event to topic. A nil error means the publish was
// attempted, not that anyone received it.
type Publisher interface {
	Publish(ctx context.Context, topic string, event models.RecordCreatedEvent) error
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event models.RecordCreatedEvent)

// Subscriber delivers events to a Handler until ctx is cancelled.
type Subscriber interface {
	Run(ctx context.Context, handle Handler) error
}

// Encode renders the wire payload.
func Encode(event models.RecordCreatedEvent) ([]byte, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// Decode parses a wire payload.
func Decode(payload []byte) (models.RecordCreatedEvent, error) {
	var event models.RecordCreatedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return models.RecordCreatedEvent{}, fmt.Errorf("decode event: %w", err)
	}
	return event, nil
}

// LoggingHandler logs each event and does nothing else.
func LoggingHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, event models.RecordCreatedEvent) {
		recommendation := ""
		if event.Recommendation != nil {
			recommendation = *event.Recommendation
		}
		logger.InfoContext(ctx, "record created event received",
			"patient_id", event.PatientID,
			"recommendation_id", event.RecommendationID,
			"recommendation", recommendation,
			"timestamp", event.Timestamp,
		)
	}
}
