package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"propshare/internal/platform/config"
	"propshare/internal/platform/httpserver"
	"propshare/internal/platform/logger"
	"propshare/internal/platform/metrics"
	"propshare/internal/registry/service"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("propshare stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("propshare stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.UsingDevSigningKey() {
		log.Warn("using the development JWT signing key; set JWT_SIGNING_KEY outside local runs")
	}
	m := metrics.New()

	journal, closeJournal, err := buildJournal(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeJournal()

	roles, err := buildRoles(cfg, log)
	if err != nil {
		return err
	}

	// Sinks come up after the journal so the projection can catch up from it.
	sinks, closeSinks, err := buildSinks(ctx, cfg, journal, log)
	if err != nil {
		return err
	}
	defer closeSinks()

	dispatcher := newDispatcher(cfg, sinks, log, m)

	svc := service.New(roles, journal,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithDispatcher(dispatcher),
	)
	if err := svc.Restore(ctx); err != nil {
		return err
	}

	limiter := newLimiter(cfg, sinks, log, m)
	srv := httpserver.New(cfg.Addr, newRouter(cfg, svc, dispatcher, sinks, limiter, log), log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Close, not cancellation, stops the relay so queued records drain.
		return dispatcher.Run(context.WithoutCancel(gctx))
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting propshare", "addr", cfg.Addr, "sequence", svc.Sequence())
		serveErr := httpserver.Serve(gctx, srv, cfg.ShutdownTimeout)

		// No handler is running any more, so no new records arrive.
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			log.Warn("relay did not drain before shutdown", "pending", dispatcher.Pending(), "error", err)
		}
		return serveErr
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
