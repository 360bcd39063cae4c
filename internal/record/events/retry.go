package events

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRetryDelay is the pause between subscription attempts.
const DefaultRetryDelay = 5 * time.Second

// Retrying resubscribes whenever the wrapped Subscriber fails, so a broker
// that is down at start-up or drops the connection does not stop the worker.
type Retrying struct {
	sub    Subscriber
	delay  time.Duration
	logger *slog.Logger
}

func NewRetrying(sub Subscriber, delay time.Duration, logger *slog.Logger) *Retrying {
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	return &Retrying{sub: sub, delay: delay, logger: logger}
}

// Run returns nil once ctx is cancelled or the wrapped Run ends cleanly.
func (r *Retrying) Run(ctx context.Context, handle Handler) error {
	for attempt := 1; ; attempt++ {
		err := r.sub.Run(ctx, handle)
		if ctx.Err() != nil || err == nil {
			return nil
		}
		r.logger.WarnContext(ctx, "subscription failed, retrying",
			"attempt", attempt,
			"retry_in", r.delay,
			"error", err,
		)

		timer := time.NewTimer(r.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}
