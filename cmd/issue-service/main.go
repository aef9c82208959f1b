package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/k1networth/issuetracker-lite/internal/issue"
	"github.com/k1networth/issuetracker-lite/internal/outbox"
	"github.com/k1networth/issuetracker-lite/internal/shared/config"
	"github.com/k1networth/issuetracker-lite/internal/shared/db"
	"github.com/k1networth/issuetracker-lite/internal/shared/httpx"
	"github.com/k1networth/issuetracker-lite/internal/shared/logger"
)

const appName = "issue-service"

func main() {
	cfg := config.Load(appName)
	log := logger.New(appName, cfg.AppEnv, cfg.LogLevel)

	ctx := context.Background()

	store, sink, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("store_open_failed", slog.String("driver", cfg.StoreDriver), slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("store_close_failed", slog.String("err", err.Error()))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := &issue.Service{
		Store:   store,
		Log:     log,
		Events:  sink,
		Metrics: issue.NewMetrics(reg),
	}

	issueH := &issue.Handler{Log: log, Service: svc}

	handler := httpx.NewRouter(log, httpx.RouterConfig{
		Gatherer: reg,
		Metrics:  httpx.NewMetrics(reg),
		Ready:    store.Ping,
	}, issueH)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("http_listen",
		slog.String("addr", srv.Addr),
		slog.String("store", cfg.StoreDriver),
		slog.Bool("outbox", sink != nil),
	)

	go func() {
		err := srv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error("http_server_error", slog.String("err", err.Error()))
			os.Exit(1)
		}
	}()

	httpx.WaitAndShutdown(ctx, log, 10*time.Second, srv)
}

// openStore builds the configured document store. The outbox sink is only
// available on postgres, where it shares the issues database.
func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (issue.DocumentStore, issue.EventSink, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		if cfg.OutboxEnabled {
			log.Warn("outbox_disabled", slog.String("reason", "memory store has no outbox table"))
		}
		return issue.NewInMemoryStore(), nil, nil

	case config.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Bootstrap(ctx, conn, db.DialectSQLite); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		if cfg.OutboxEnabled {
			log.Warn("outbox_disabled", slog.String("reason", "sqlite store has no outbox table"))
		}
		return issue.NewSQLiteStore(conn), nil, nil

	case config.DriverPostgres:
		conn, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
		if err != nil {
			return nil, nil, err
		}
		if err := db.Bootstrap(ctx, conn, db.DialectPostgres); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		store := issue.NewPostgresStore(conn)
		if !cfg.OutboxEnabled {
			return store, nil, nil
		}
		return store, outbox.Sink{Store: outbox.NewStore(conn)}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
