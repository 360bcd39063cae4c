package service

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"clinic/internal/record/cache"
	"clinic/internal/record/metrics"
	"clinic/internal/record/models"
	"clinic/internal/record/rules"
	dErrors "clinic/pkg/domain-errors"
	"clinic/pkg/platform/sentinel"
	"clinic/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Allocator,RecordStore,RecommendationCache,Publisher

// Allocator issues the next identifier of a named counter.
type Allocator interface {
	Next(ctx context.Context, name string) (int64, error)
}

// RecordStore persists finalized records.
type RecordStore interface {
	Insert(ctx context.Context, record *models.PatientRecord) error
	FindByID(ctx context.Context, id int64) (*models.PatientRecord, error)
	ListAll(ctx context.Context) iter.Seq2[*models.PatientRecord, error]
}

// RecommendationCache is the read-path projection store.
type RecommendationCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Publisher announces created records. Implemented by the events package.
type Publisher interface {
	Publish(ctx context.Context, topic string, event models.RecordCreatedEvent) error
}

const (
	DefaultTopic       = "patient_events"
	DefaultCacheTTL    = time.Hour
	DefaultCallTimeout = 2 * time.Second
)

// Service orchestrates the record lifecycle: allocate, persist, announce on
// write; cache-aside on read.
type Service struct {
	allocator   Allocator
	records     RecordStore
	cache       RecommendationCache
	publisher   Publisher
	derive      models.Deriver
	topic       string
	cacheTTL    time.Duration
	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTopic(topic string) Option {
	return func(s *Service) {
		s.topic = topic
	}
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithCallTimeout bounds each call to the allocator, store, cache and publisher.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.callTimeout = d
	}
}

// WithRules swaps the recommendation policy.
func WithRules(engine *rules.Engine) Option {
	return func(s *Service) {
		s.derive = engine.Derive
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// New constructs a Service.
func New(allocator Allocator, records RecordStore, cache RecommendationCache, publisher Publisher, opts ...Option) *Service {
	s := &Service{
		allocator:   allocator,
		records:     records,
		cache:       cache,
		publisher:   publisher,
		derive:      rules.Derive,
		topic:       DefaultTopic,
		cacheTTL:    DefaultCacheTTL,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer("clinic/internal/record/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates attrs, allocates an id, persists the record and announces
// it. Once the record is persisted the call succeeds even if the announcement
// fails. A persistence failure leaves the allocated id unused.
func (s *Service) Create(ctx context.Context, attrs models.Attributes) (*models.PatientRecord, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "record.Create")
	defer span.End()
	requestID := requestcontext.RequestID(ctx)

	if err := attrs.Validate(); err != nil {
		return nil, s.fail(span, err)
	}

	allocStart := time.Now()
	id, err := withTimeout(ctx, s.callTimeout, func(ctx context.Context) (int64, error) {
		return s.allocator.Next(ctx, models.CounterName)
	})
	s.metrics.ObserveAllocation(allocStart)
	if err != nil {
		s.logger.ErrorContext(ctx, "patient id allocation failed",
			"request_id", requestID,
			"error", err,
		)
		return nil, s.fail(span, dependencyError(err, "failed to allocate patient id"))
	}
	span.SetAttributes(attribute.Int64("patient.id", id))

	now := requestcontext.Now(ctx)
	record := models.NewPatientRecord(id, attrs, s.derive, now)

	_, err = withTimeout(ctx, s.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.records.Insert(ctx, record)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "patient record persistence failed",
			"request_id", requestID,
			"patient_id", id,
			"error", err,
		)
		return nil, s.fail(span, dependencyError(err, "failed to persist patient record"))
	}

	s.metrics.IncrementRecordsCreated(record.Recommendation)
	s.announce(ctx, record, now)
	s.metrics.ObserveCreate(start)

	s.logger.InfoContext(ctx, "patient record created",
		"request_id", requestID,
		"username", requestcontext.Username(ctx),
		"patient_id", record.ID,
		"bmi", record.BMI,
		"has_recommendation", record.Recommendation != nil,
	)
	return record, nil
}

// announce publishes the created event. Failures are logged and counted only.
func (s *Service) announce(ctx context.Context, record *models.PatientRecord, now time.Time) {
	event := models.NewRecordCreatedEvent(record, now)
	_, err := withTimeout(ctx, s.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.publisher.Publish(ctx, s.topic, event)
	})
	if err == nil {
		return
	}
	s.metrics.IncrementPublishFailures()
	trace.SpanFromContext(ctx).AddEvent("announce_failed", trace.WithAttributes(attribute.String("error", err.Error())))
	s.logger.WarnContext(ctx, "record created event not delivered",
		"request_id", requestcontext.RequestID(ctx),
		"patient_id", record.ID,
		"topic", s.topic,
		"error", err,
	)
}

// Recommendation serves the cache-aside read path. A store miss is never
// cached.
func (s *Service) Recommendation(ctx context.Context, id int64) (*models.RecommendationView, error) {
	ctx, span := s.tracer.Start(ctx, "record.Recommendation", trace.WithAttributes(attribute.Int64("patient.id", id)))
	defer span.End()
	requestID := requestcontext.RequestID(ctx)
	key := cache.RecommendationKey(id)

	cached, err := withTimeout(ctx, s.callTimeout, func(ctx context.Context) ([]byte, error) {
		return s.cache.Get(ctx, key)
	})
	switch {
	case err == nil:
		var view models.RecommendationView
		decodeErr := json.Unmarshal(cached, &view)
		if decodeErr == nil {
			s.metrics.IncrementCacheLookup(metrics.CacheHit)
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &view, nil
		}
		s.logger.WarnContext(ctx, "discarding unreadable cache entry",
			"request_id", requestID,
			"key", key,
			"error", decodeErr,
		)
	case errors.Is(err, cache.ErrMiss):
	default:
		s.metrics.IncrementCacheLookup(metrics.CacheError)
		s.logger.ErrorContext(ctx, "recommendation cache read failed",
			"request_id", requestID,
			"key", key,
			"error", err,
		)
		return nil, s.fail(span, dependencyError(err, "recommendation cache unavailable"))
	}
	s.metrics.IncrementCacheLookup(metrics.CacheMiss)
	span.SetAttributes(attribute.Bool("cache.hit", false))

	record, err := withTimeout(ctx, s.callTimeout, func(ctx context.Context) (*models.PatientRecord, error) {
		return s.records.FindByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, s.fail(span, dependencyError(err, "failed to load patient record"))
	}

	view := record.View()
	s.populate(ctx, key, view)
	return &view, nil
}

// populate writes the projection back. The cache is disposable, so failures
// are logged and the caller still gets the loaded value.
func (s *Service) populate(ctx context.Context, key string, view models.RecommendationView) {
	payload, err := json.Marshal(view)
	if err == nil {
		_, err = withTimeout(ctx, s.callTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.cache.SetWithTTL(ctx, key, payload, s.cacheTTL)
		})
	}
	if err != nil {
		s.logger.WarnContext(ctx, "recommendation cache populate failed",
			"request_id", requestcontext.RequestID(ctx),
			"key", key,
			"error", err,
		)
	}
}

// List streams every stored record. The whole listing shares one call
// timeout.
func (s *Service) List(ctx context.Context) iter.Seq2[*models.PatientRecord, error] {
	return func(yield func(*models.PatientRecord, error) bool) {
		ctx, span := s.tracer.Start(ctx, "record.List")
		defer span.End()
		ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
		defer cancel()

		for record, err := range s.records.ListAll(ctx) {
			if err != nil {
				s.logger.ErrorContext(ctx, "listing patient records failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				yield(nil, s.fail(span, dependencyError(err, "failed to list patient records")))
				return
			}
			if !yield(record, nil) {
				return
			}
		}
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// withTimeout runs fn under a derived deadline.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(ctx)
}

func dependencyError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeDependency, msg+": timed out")
	}
	return dErrors.Wrap(err, dErrors.CodeDependency, msg)
}
