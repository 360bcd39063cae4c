package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	authservice "clinic/internal/auth/service"
	"clinic/internal/auth/store/user"
	"clinic/internal/platform/config"
	"clinic/internal/platform/kafka"
	"clinic/internal/platform/postgres"
	platformredis "clinic/internal/platform/redis"
	"clinic/internal/record/cache"
	"clinic/internal/record/events"
	recordmetrics "clinic/internal/record/metrics"
	"clinic/internal/record/sequence"
	recordservice "clinic/internal/record/service"
	"clinic/internal/record/store"
	httptransport "clinic/internal/transport/http"
)

// backends holds the external clients. A nil client means the in-memory
// implementation is used for that concern.
type backends struct {
	db       *sql.DB
	redis    *platformredis.Client
	producer *kgo.Client
}

func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (*backends, error) {
	b := &backends{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		b.db = db
	} else {
		log.Warn("DATABASE_URL not set, records and users are kept in memory")
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.redis = client
	if client == nil {
		log.Warn("REDIS_URL not set, recommendation cache is in memory")
	}

	if cfg.Events.Backend == config.BackendKafka {
		producer, err := kafka.NewProducer(cfg.Events.KafkaBrokers, cfg.Events.Topic)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.producer = producer
		if err := kafka.EnsureTopic(ctx, producer, cfg.Events.Topic); err != nil {
			b.Close()
			return nil, fmt.Errorf("bootstrap event topic: %w", err)
		}
	}
	return b, nil
}

func (b *backends) Close() {
	if b.producer != nil {
		b.producer.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func (b *backends) allocator(cfg config.Server) recordservice.Allocator {
	switch cfg.Sequence {
	case config.BackendPostgres:
		return sequence.NewPostgres(b.db)
	case config.BackendRedis:
		return sequence.NewRedis(b.redis)
	default:
		return sequence.NewMemory()
	}
}

func (b *backends) recordStore() recordservice.RecordStore {
	if b.db != nil {
		return store.NewPostgres(b.db)
	}
	return store.NewInMemory()
}

func (b *backends) userStore() authservice.UserStore {
	if b.db != nil {
		return user.NewPostgres(b.db)
	}
	return user.New()
}

func (b *backends) cache() recordservice.RecommendationCache {
	if b.redis != nil {
		return cache.NewRedis(b.redis)
	}
	return cache.NewMemory()
}

// publisher returns the configured publisher. The memory bus is returned
// separately so the caller can attach an in-process subscriber.
func (b *backends) publisher(cfg config.Server, log *slog.Logger, m *recordmetrics.Metrics) (recordservice.Publisher, *events.MemoryBus) {
	switch cfg.Events.Backend {
	case config.BackendRedis:
		return events.NewRedisPublisher(b.redis), nil
	case config.BackendKafka:
		return events.NewKafkaPublisher(b.producer, log,
			events.WithDeliveryFailureHook(m.IncrementPublishFailures),
		), nil
	default:
		bus := events.NewMemoryBus()
		return bus, bus
	}
}

func (b *backends) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if b.db != nil {
		checks["postgres"] = b.db.PingContext
	}
	if b.redis != nil {
		checks["redis"] = b.redis.Health
	}
	return checks
}
