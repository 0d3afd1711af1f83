package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadflow/internal/app"
	"leadflow/internal/scheduler"
	"leadflow/platform/config"
	"leadflow/platform/db"
	"leadflow/platform/logger"
	"leadflow/platform/metrics"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const deadLetterCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting lifecycle worker", "env", cfg.Env, "queue", cfg.GetAsynqQueueName())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sentryEnabled := initSentry(cfg, log)
	if sentryEnabled {
		defer sentry.Flush(2 * time.Second)
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if cfg.MigrationsEnabled {
		if err := db.RunMigrations(ctx, pool); err != nil {
			log.Error("failed to run migrations", "error", err)
			panic("failed to run migrations: " + err.Error())
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	lifecycle, err := app.New(ctx, cfg, pool, m, log)
	if err != nil {
		log.Error("failed to initialize lifecycle modules", "error", err)
		panic("failed to initialize lifecycle modules: " + err.Error())
	}
	defer func() { _ = lifecycle.Close() }()

	recorder := scheduler.NewDeadLetterRecorder(lifecycle.DeadLetters, log)
	recorder.SetMetrics(m)
	if sentryEnabled {
		recorder.EnableSentry()
	}

	worker, err := scheduler.NewWorker(cfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}
	worker.SetMetrics(m)
	worker.OnFailure(recorder.Record)
	worker.RegisterTriggerJobs(lifecycle.Triggers)
	worker.RegisterNurtureJobs(lifecycle.Nurture)

	scanner := scheduler.NewNoResponseScanner(lifecycle.Leads, lifecycle.Queue, log, cfg.GetNoResponseScanSpec(), cfg.GetNoResponseScanBatch())
	cleanup := scheduler.NewDeadLetterCleanup(lifecycle.DeadLetters, log, deadLetterCleanupInterval, cfg.GetDeadLetterRetention())

	metricsServer := &http.Server{
		Addr:              cfg.GetMetricsAddr(),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return scanner.Run(gctx) })
	g.Go(func() error {
		cleanup.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("serving metrics", "addr", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("lifecycle worker stopped", "error", err)
		os.Exit(1)
	}
	log.Info("lifecycle worker stopped")
}

func initSentry(cfg *config.Config, log *logger.Logger) bool {
	dsn := cfg.GetSentryDSN()
	if dsn == "" {
		return false
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Environment: cfg.Env}); err != nil {
		log.Warn("sentry disabled", "error", err)
		return false
	}
	return true
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return errors.New(name + ": " + lastErr.Error())
}
