package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-mapper/internal/api"
	"github.com/p-n-ai/pai-mapper/internal/curriculum"
	"github.com/p-n-ai/pai-mapper/internal/planner"
	"github.com/p-n-ai/pai-mapper/internal/platform/cache"
	"github.com/p-n-ai/pai-mapper/internal/platform/config"
	"github.com/p-n-ai/pai-mapper/internal/platform/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log, os.Stdout))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newLogger builds the process logger from LEARN_LOG_LEVEL and LEARN_LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// app is the wired set of components behind the HTTP server.
type app struct {
	handler http.Handler
	service *planner.Service
	broker  *planner.Broker
	cache   *cache.Cache
	db      *database.DB
	sweep   time.Duration
	channel string
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	loader, err := curriculum.NewLoader(cfg.CurriculumPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		broker:  planner.NewBroker(),
		sweep:   cfg.Planner.SweepEvery(),
		channel: cfg.Planner.EstimateChannel,
	}
	var checks []api.HealthChecker
	var events planner.EventLogger = planner.NopEventLogger{}
	var plans planner.PlanStore
	var publisher planner.Publisher = a.broker

	if cfg.HasDatabase() {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			a.close()
			return nil, err
		}
		a.db = db
		checks = append(checks, db)

		store, err := planner.NewPostgresPlanStore(db.Pool)
		if err == nil {
			err = store.EnsureSchema(ctx)
		}
		if err != nil {
			a.close()
			return nil, err
		}
		plans = store

		if cfg.Planner.RecordEvents {
			logger := planner.NewPostgresEventLogger(db.Pool)
			if err := logger.EnsureSchema(ctx); err != nil {
				a.close()
				return nil, err
			}
			events = logger
		}
	}

	if cfg.HasCache() {
		c, err := cache.Open(ctx, cfg.Cache)
		if err != nil {
			a.close()
			return nil, err
		}
		a.cache = c
		checks = append(checks, c)
		// Updates reach the local broker through the relay, so every
		// instance's subscribers see them.
		publisher = planner.NewRedisPublisher(c.Client, cfg.Planner.EstimateChannel)
	}

	a.service, err = planner.NewService(planner.Config{
		Catalog:    loader,
		Publisher:  publisher,
		Events:     events,
		Plans:      plans,
		SessionTTL: cfg.Planner.SessionTTLDuration(),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	srv, err := api.New(api.Config{
		Planner: a.service,
		Catalog: loader,
		Updates: a.broker,
		Checks:  checks,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.handler = srv.Handler()
	return a, nil
}

// start launches the background workers. They stop when ctx is done.
func (a *app) start(ctx context.Context) {
	go a.service.RunSweeper(ctx, a.sweep)
	if a.cache != nil {
		go func() {
			if err := planner.RelayRedis(ctx, a.cache.Client, a.channel, a.broker); err != nil {
				slog.Error("estimate relay stopped", "error", err)
			}
		}()
	}
}

func (a *app) close() {
	a.broker.Close()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	workers, cancel := context.WithCancel(ctx)
	defer cancel()
	a.start(workers)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	// Shutdown does not track hijacked connections; end the estimate streams explicitly.
	a.broker.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
