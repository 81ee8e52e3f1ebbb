package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bloodlink/internal/donors"
	"bloodlink/internal/membership"
	"bloodlink/internal/platform/config"
	"bloodlink/internal/platform/logger"
	"bloodlink/internal/platform/metrics"
	"bloodlink/internal/platform/telemetry"
	"bloodlink/internal/requests"
	"bloodlink/internal/router"
	"bloodlink/pkg/eventstore"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", cfg.ServiceName)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown", "error", err)
		}
	}()

	journal, closeJournal, err := openJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeJournal()

	m := metrics.New()
	limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.AuthRatePerMin)), cfg.AuthRateBurst)

	members := membership.NewService(journal,
		membership.WithLogger(log),
		membership.WithMetrics(m),
		membership.WithRateLimiter(limiter),
	)
	reqs := requests.NewService(journal,
		requests.WithLogger(log),
		requests.WithMetrics(m),
	)
	directory := donors.NewService(members, reqs, donors.WithLogger(log))

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: router.New(router.Options{
			Logger:     log,
			Metrics:    m,
			Tokens:     membership.NewTokenIssuer(cfg.JWTSigningKey, cfg.ServiceName, cfg.TokenTTL),
			Membership: members,
			Requests:   reqs,
			Donors:     directory,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openJournal returns the PostgreSQL journal when a database is configured and
// the in-memory one otherwise.
func openJournal(ctx context.Context, cfg config.Config, log *slog.Logger) (eventstore.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, journaling to memory")
		return eventstore.NewMemoryStore(), func() {}, nil
	}

	db, err := eventstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	es := eventstore.NewEventStore(db)
	if err := es.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Info("journaling to postgres")
	return es, func() { _ = db.Close() }, nil
}
