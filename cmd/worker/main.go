// Command worker consumes record-created events and logs them. It is the
// downstream counterpart of the server's announcer and performs no further
// processing.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"clinic/internal/platform/config"
	"clinic/internal/platform/kafka"
	"clinic/internal/platform/logger"
	platformredis "clinic/internal/platform/redis"
	"clinic/internal/record/events"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("worker exited with error", "error", err)
		os.Exit(1)
	}
}

// run consumes until ctx is cancelled. Broker outages, including one at
// start-up, are retried rather than ending the process.
func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	sub, closeFn, err := subscriber(cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	log.Info("worker started", "backend", cfg.Events.Backend, "topic", cfg.Events.Topic)
	retrying := events.NewRetrying(sub, events.DefaultRetryDelay, log)
	if err := retrying.Run(ctx, events.LoggingHandler(log)); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("worker stopped")
	return nil
}

// subscriber builds the backend client without contacting the broker, so an
// unreachable broker surfaces as a Run error the retry loop can absorb.
func subscriber(cfg config.Server, log *slog.Logger) (events.Subscriber, func(), error) {
	switch cfg.Events.Backend {
	case config.BackendRedis:
		opts, err := platformredis.Options(cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		client := goredis.NewClient(opts)
		return events.NewRedisSubscriber(client, cfg.Events.Topic, log), func() { _ = client.Close() }, nil
	case config.BackendKafka:
		client, err := kafka.NewConsumer(cfg.Events.KafkaBrokers, cfg.Events.Topic, cfg.Events.ConsumerGroup)
		if err != nil {
			return nil, nil, err
		}
		return events.NewKafkaSubscriber(client, log), client.Close, nil
	default:
		return nil, nil, fmt.Errorf("worker needs an external event backend, got EVENT_BACKEND=%s", cfg.Events.Backend)
	}
}
