package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backend names accepted by EVENT_BACKEND and SEQUENCE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendKafka    = "kafka"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	Redis       RedisConfig
	Events      EventsConfig
	Sequence    string

	CacheTTL    time.Duration
	CallTimeout time.Duration
	Auth        AuthConfig
}

// RedisConfig holds connection and pool settings for Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// EventsConfig selects the notification backend.
type EventsConfig struct {
	Backend      string
	Topic        string
	KafkaBrokers []string
	// ConsumerGroup is only used by the worker process.
	ConsumerGroup string
}

// AuthConfig holds token issuance settings.
type AuthConfig struct {
	JWTSigningKey  string
	JWTIssuer      string
	AccessTokenTTL time.Duration
}

const defaultSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:        envOr("CLINIC_ADDR", ":8080"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "json"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          redisURL(),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Events: EventsConfig{
			Topic:         envOr("EVENT_TOPIC", envOr("REDIS_CHANNEL", "patient_events")),
			KafkaBrokers:  splitList(os.Getenv("KAFKA_BROKERS")),
			ConsumerGroup: envOr("KAFKA_CONSUMER_GROUP", "clinic-worker"),
		},
		CacheTTL:    time.Hour,
		CallTimeout: 2 * time.Second,
		Auth: AuthConfig{
			JWTSigningKey:  envOr("JWT_SECRET", defaultSigningKey),
			JWTIssuer:      envOr("JWT_ISSUER", "clinic"),
			AccessTokenTTL: 30 * time.Minute,
		},
	}

	var errs []error
	intVar(&errs, "REDIS_POOL_SIZE", &cfg.Redis.PoolSize)
	intVar(&errs, "REDIS_MIN_IDLE_CONNS", &cfg.Redis.MinIdleConns)
	durationVar(&errs, "REDIS_DIAL_TIMEOUT", &cfg.Redis.DialTimeout)
	durationVar(&errs, "REDIS_READ_TIMEOUT", &cfg.Redis.ReadTimeout)
	durationVar(&errs, "REDIS_WRITE_TIMEOUT", &cfg.Redis.WriteTimeout)
	durationVar(&errs, "CACHE_TTL", &cfg.CacheTTL)
	durationVar(&errs, "CALL_TIMEOUT", &cfg.CallTimeout)
	durationVar(&errs, "ACCESS_TOKEN_TTL", &cfg.Auth.AccessTokenTTL)
	if err := errors.Join(errs...); err != nil {
		return Server{}, err
	}

	cfg.Events.Backend = strings.ToLower(os.Getenv("EVENT_BACKEND"))
	if cfg.Events.Backend == "" {
		cfg.Events.Backend = BackendMemory
		if cfg.Redis.URL != "" {
			cfg.Events.Backend = BackendRedis
		}
	}
	cfg.Sequence = strings.ToLower(os.Getenv("SEQUENCE_BACKEND"))
	if cfg.Sequence == "" {
		cfg.Sequence = BackendMemory
		if cfg.DatabaseURL != "" {
			cfg.Sequence = BackendPostgres
		}
	}

	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Server) Validate() error {
	var errs []error
	switch c.Events.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("EVENT_BACKEND=redis requires REDIS_URL"))
		}
	case BackendKafka:
		if len(c.Events.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("EVENT_BACKEND=kafka requires KAFKA_BROKERS"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BACKEND %q", c.Events.Backend))
	}

	switch c.Sequence {
	case BackendMemory:
		// Durable records with a counter that restarts at 1 would collide
		// with stored ids after the first restart.
		if c.DatabaseURL != "" {
			errs = append(errs, errors.New("SEQUENCE_BACKEND=memory cannot be combined with DATABASE_URL"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("SEQUENCE_BACKEND=postgres requires DATABASE_URL"))
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("SEQUENCE_BACKEND=redis requires REDIS_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown SEQUENCE_BACKEND %q", c.Sequence))
	}

	if strings.TrimSpace(c.Events.Topic) == "" {
		errs = append(errs, errors.New("EVENT_TOPIC must not be empty"))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, errors.New("CACHE_TTL must be positive"))
	}
	if c.CallTimeout <= 0 {
		errs = append(errs, errors.New("CALL_TIMEOUT must be positive"))
	}
	if c.Auth.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.Auth.JWTSigningKey == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	return errors.Join(errs...)
}

// UsesDefaultSigningKey reports whether JWT_SECRET was left unset.
func (c Server) UsesDefaultSigningKey() bool {
	return c.Auth.JWTSigningKey == defaultSigningKey
}

// redisURL prefers REDIS_URL and falls back to the REDIS_HOST/REDIS_PORT pair.
func redisURL() string {
	if u := os.Getenv("REDIS_URL"); u != "" {
		return u
	}
	host := os.Getenv("REDIS_HOST")
	if host == "" {
		return ""
	}
	return "redis://" + net.JoinHostPort(host, envOr("REDIS_PORT", "6379")) + "/0"
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intVar(errs *[]error, key string, dst *int) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}

func durationVar(errs *[]error, key string, dst *time.Duration) {
	raw := os.Getenv(key)
	if raw == "" {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = v
}
