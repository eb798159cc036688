package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"chronicle/internal/ingest"
	jwttoken "chronicle/internal/jwt_token"
	"chronicle/internal/pipeline"
	"chronicle/internal/platform/config"
	"chronicle/internal/platform/httpserver"
	"chronicle/internal/platform/logger"
	"chronicle/internal/platform/middleware"
	platformredis "chronicle/internal/platform/redis"
	"chronicle/pkg/audit/digest"
	"chronicle/pkg/audit/driver"
	kafkasink "chronicle/pkg/audit/driver/kafka"
	memorysink "chronicle/pkg/audit/driver/memory"
	postgressink "chronicle/pkg/audit/driver/postgres"
	"chronicle/pkg/audit/queue"
	"chronicle/pkg/audit/route"
	"chronicle/pkg/audit/transform"
)

// main wires high-level dependencies, starts the digest engine loop and the
// HTTP ingest surface, and keeps the server lifecycle small. Pipeline logic
// lives in pkg/audit and internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	rules, branches, err := config.LoadRules(cfg.Server.RulesPath)
	if err != nil {
		log.Error("load rules", "path", cfg.Server.RulesPath, "error", err)
		os.Exit(1)
	}

	// Event queue: Redis when configured, in-process otherwise.
	var eventQueue queue.Queue = queue.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		eventQueue = queue.NewRedis(redisClient.Client, cfg.Redis.QueueKey)
	}

	drivers, cleanup, err := buildDrivers(cfg)
	if err != nil {
		log.Error("build drivers", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	deadLetter := memorysink.NewDeadLetter()
	dispatcherOpts := []driver.Option{
		driver.WithLogger(log),
		driver.WithMetrics(driver.NewMetrics()),
		driver.WithDeadLetter(deadLetter),
		driver.WithRetry(3, 200*time.Millisecond),
	}
	for _, d := range drivers {
		dispatcherOpts = append(dispatcherOpts,
			driver.WithBreaker(d.Name(), driver.NewBreaker(5, time.Minute)))
	}
	dispatcher := driver.New(drivers, dispatcherOpts...)

	engine := digest.New(eventQueue, dispatcher,
		digest.WithLogger(log),
		digest.WithMetrics(digest.NewMetrics()),
		digest.WithInterval(cfg.Digest.Interval),
		digest.WithParallelism(cfg.Digest.Parallelism),
	)

	pipe := pipeline.New(
		transform.New(rules),
		route.New(branches...),
		eventQueue,
		dispatcher,
		log,
	)

	var validator middleware.JWTValidator
	if cfg.Server.JWTSigningKey != "" {
		validator = jwttoken.NewJWTService(cfg.Server.JWTSigningKey, "chronicle", "chronicle-publishers")
	} else {
		log.Warn("no JWT signing key configured, ingest endpoint is unauthenticated")
	}

	router := ingest.NewRouter(ingest.New(pipe, log), validator, log)
	srv := httpserver.New(cfg.Server.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("digest engine stopped", "error", err)
		}
	}()

	log.Info("starting chronicle", "addr", cfg.Server.Addr, "tick_interval", cfg.Digest.Interval.String())
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	// One final drain so buffered events are not stranded until restart.
	if err := engine.Tick(shutdownCtx); err != nil {
		log.Error("final digest tick failed", "error", err)
	}
}

// buildDrivers assembles the configured sinks. With no external backend the
// in-memory sink keeps the pipeline functional for development.
func buildDrivers(cfg config.Config) ([]driver.Driver, func(), error) {
	var drivers []driver.Driver
	var closers []func()
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		drivers = append(drivers, postgressink.NewSink(db))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := kafkasink.NewSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, sink.Close)
		drivers = append(drivers, sink)
	}

	if len(drivers) == 0 {
		drivers = append(drivers, memorysink.NewSink())
	}
	return drivers, cleanup, nil
}
