package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/k1networth/issuetracker-lite/internal/notify"
	"github.com/k1networth/issuetracker-lite/internal/shared/config"
	"github.com/k1networth/issuetracker-lite/internal/shared/db"
	"github.com/k1networth/issuetracker-lite/internal/shared/events"
	"github.com/k1networth/issuetracker-lite/internal/shared/kafkax"
	"github.com/k1networth/issuetracker-lite/internal/shared/logger"
)

const appName = "notification-service"

func main() {
	cfg := config.Load(appName)
	log := logger.New(appName, cfg.AppEnv, cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		log.Error("config_error", slog.String("err", "DATABASE_URL is empty"))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.OpenPostgres(ctx, db.PostgresConfig{DatabaseURL: cfg.DatabaseURL})
	if err != nil {
		log.Error("db_open_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = pg.Close() }()
	if err := db.Bootstrap(ctx, pg, db.DialectPostgres); err != nil {
		log.Error("db_bootstrap_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	store := notify.NewStore(pg)
	consumer := kafkax.NewConsumer(kafkax.ConsumerConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       cfg.KafkaTopic,
		GroupID:     cfg.KafkaGroupID,
		StartOffset: config.String("KAFKA_START_OFFSET", "last"),
	})
	defer func() { _ = consumer.Close() }()

	reg := prometheus.NewRegistry()
	processed := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "notify_processed_total", Help: "Processed events."},
		[]string{"event_type", "status"},
	)
	reg.MustRegister(processed)

	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("metrics_listen", slog.String("addr", metricsSrv.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics_server_error", slog.String("err", err.Error()))
		}
	}()

	log.Info("consumer_start", slog.String("topic", cfg.KafkaTopic), slog.String("group_id", cfg.KafkaGroupID))

	_ = consumer.Run(ctx, log, func(ctx context.Context, msg kafka.Message) error {
		evType, status, err := handleMessage(ctx, log, store, msg.Value)
		processed.WithLabelValues(evType, status).Inc()
		if err != nil {
			log.Error("message_handle_failed", slog.String("event_type", evType), slog.String("err", err.Error()))
		}
		return err
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("consumer_shutdown")
}

// handleMessage returns the event type and outcome label for metrics. A
// malformed message is logged and committed so it cannot block the partition.
func handleMessage(ctx context.Context, log *slog.Logger, store *notify.Store, value []byte) (string, string, error) {
	env, err := events.Decode(value)
	if err != nil {
		log.Warn("message_malformed", slog.String("err", err.Error()))
		return "unknown", "malformed", nil
	}

	shouldProcess, err := store.StartProcessing(ctx, env)
	if err != nil {
		return env.EventType, "error", err
	}
	if !shouldProcess {
		log.Info("event_skip_done", slog.String("event_id", env.EventID), slog.String("event_type", env.EventType))
		return env.EventType, "duplicate", nil
	}

	n, ok, err := notify.Describe(env)
	if err != nil {
		log.Warn("message_malformed", slog.String("event_id", env.EventID), slog.String("err", err.Error()))
		if err := store.MarkFailed(ctx, env.EventID, err.Error()); err != nil {
			return env.EventType, "error", err
		}
		return env.EventType, "malformed", nil
	}
	if ok {
		log.Info("notify_event",
			slog.String("event_id", env.EventID),
			slog.String("event_type", env.EventType),
			slog.String("project", n.Project),
			slog.String("issue_id", n.IssueID),
			slog.String("recipients", strings.Join(n.Recipients, ",")),
			slog.String("subject", n.Subject),
		)
	}

	if err := store.MarkDone(ctx, env.EventID); err != nil {
		_ = store.MarkFailed(ctx, env.EventID, err.Error())
		return env.EventType, "error", err
	}
	return env.EventType, "ok", nil
}
