package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	authhandler "clinic/internal/auth/handler"
	authservice "clinic/internal/auth/service"
	jwttoken "clinic/internal/jwt_token"
	"clinic/internal/platform/config"
	"clinic/internal/platform/httpserver"
	"clinic/internal/platform/logger"
	"clinic/internal/platform/metrics"
	"clinic/internal/record/events"
	recordhandler "clinic/internal/record/handler"
	recordmetrics "clinic/internal/record/metrics"
	recordservice "clinic/internal/record/service"
	httptransport "clinic/internal/transport/http"
)

// main wires configuration, backends and services, then runs the HTTP server
// until SIGINT or SIGTERM. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.UsesDefaultSigningKey() {
		log.Warn("JWT_SECRET not set, using the development signing key")
	}

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	recMetrics := recordmetrics.New(reg)

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	authSvc := authservice.New(b.userStore(), jwt, cfg.Auth.AccessTokenTTL,
		authservice.WithLogger(log),
		authservice.WithMetrics(httpMetrics),
	)

	publisher, bus := b.publisher(cfg, log, recMetrics)
	recordSvc := recordservice.New(b.allocator(cfg), b.recordStore(), b.cache(), publisher,
		recordservice.WithLogger(log),
		recordservice.WithMetrics(recMetrics),
		recordservice.WithTopic(cfg.Events.Topic),
		recordservice.WithCacheTTL(cfg.CacheTTL),
		recordservice.WithCallTimeout(cfg.CallTimeout),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        httpMetrics,
		Gatherer:       reg,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		Auth:           authhandler.New(authSvc, log),
		Records:        recordhandler.New(recordSvc, log),
		RequestTimeout: 4 * cfg.CallTimeout,
		HealthChecks:   b.healthChecks(),
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting clinic intake service",
		"addr", cfg.Addr,
		"sequence_backend", cfg.Sequence,
		"event_backend", cfg.Events.Backend,
		"topic", cfg.Events.Topic,
		"postgres", b.db != nil,
		"redis", b.redis != nil,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Serve(ctx, srv, log)
	})
	if bus != nil {
		// Without an external broker the logging consumer runs in-process.
		g.Go(func() error {
			return bus.Subscriber(cfg.Events.Topic, 256).Run(ctx, events.LoggingHandler(log))
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
