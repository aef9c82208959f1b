package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/k1networth/issuetracker-lite/internal/outbox"
	"github.com/k1networth/issuetracker-lite/internal/shared/config"
	"github.com/k1networth/issuetracker-lite/internal/shared/db"
	"github.com/k1networth/issuetracker-lite/internal/shared/kafkax"
	"github.com/k1networth/issuetracker-lite/internal/shared/logger"
)

const appName = "outbox-relay"

type relay struct {
	log      *slog.Logger
	store    *outbox.Store
	producer *kafkax.Producer
	metrics  *outbox.Metrics
	retry    outbox.RetryPolicy
	cfg      config.Config
}

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
	defer func() {
		if err := pg.Close(); err != nil {
			log.Error("db_close_failed", slog.String("err", err.Error()))
		}
	}()
	if err := db.Bootstrap(ctx, pg, db.DialectPostgres); err != nil {
		log.Error("db_bootstrap_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	producer := kafkax.NewProducer(kafkax.ProducerConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		ClientID: appName,
	})
	defer func() { _ = producer.Close() }()

	reg := prometheus.NewRegistry()
	r := &relay{
		log:      log,
		store:    outbox.NewStore(pg),
		producer: producer,
		metrics:  outbox.NewMetrics(reg),
		retry:    outbox.DefaultRetryPolicy(cfg.OutboxMaxAttempts),
		cfg:      cfg,
	}

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

	log.Info("relay_start",
		slog.Int("batch_size", cfg.OutboxBatchSize),
		slog.String("poll_interval", cfg.OutboxPollInterval.String()),
		slog.String("processing_timeout", cfg.OutboxProcessingTimeout.String()),
		slog.Int("max_attempts", cfg.OutboxMaxAttempts),
		slog.String("topic", cfg.KafkaTopic),
	)

	ticker := time.NewTicker(cfg.OutboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = metricsSrv.Shutdown(shutdownCtx)
			cancel()
			log.Info("relay_shutdown")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *relay) tick(ctx context.Context) {
	r.metrics.PollsTotal.Inc()

	if n, err := r.store.ResetStuck(ctx, r.cfg.OutboxProcessingTimeout); err != nil {
		r.metrics.RequeueErrorsTotal.Inc()
		r.log.Error("outbox_requeue_failed", slog.String("err", err.Error()))
	} else if n > 0 {
		r.metrics.RequeuedTotal.Add(float64(n))
		r.log.Warn("outbox_requeued_stuck", slog.Int64("count", n))
	}

	recs, err := r.store.ClaimPending(ctx, r.cfg.OutboxBatchSize)
	if err != nil {
		r.metrics.ClaimErrorsTotal.Inc()
		r.log.Error("outbox_claim_failed", slog.String("err", err.Error()))
		return
	}
	r.metrics.ClaimedTotal.Add(float64(len(recs)))

	for _, rec := range recs {
		r.relayOne(ctx, rec)
	}

	if lag, err := r.store.LagSeconds(ctx); err == nil {
		r.metrics.LagSeconds.Set(lag)
	}
}

func (r *relay) relayOne(ctx context.Context, rec outbox.Record) {
	err := r.producer.PublishEnvelope(ctx, rec.Envelope())
	if err == nil {
		if err := r.store.MarkSent(ctx, rec.ID); err != nil {
			r.metrics.MarkErrorsTotal.Inc()
			r.log.Error("outbox_mark_sent_failed", slog.Int64("id", rec.ID), slog.String("err", err.Error()))
			return
		}
		r.metrics.PublishedTotal.WithLabelValues(rec.EventType).Inc()
		r.log.Debug("outbox_published",
			slog.Int64("id", rec.ID),
			slog.String("event_type", rec.EventType),
			slog.String("aggregate_id", rec.AggregateID),
		)
		return
	}

	if r.retry.Exhausted(rec.Attempts) {
		r.metrics.DeadTotal.WithLabelValues(rec.EventType).Inc()
		r.log.Error("outbox_dead",
			slog.Int64("id", rec.ID),
			slog.String("event_type", rec.EventType),
			slog.Int("attempts", rec.Attempts),
			slog.String("err", err.Error()),
		)
		if err := r.store.MarkDead(ctx, rec.ID, err.Error()); err != nil {
			r.metrics.MarkErrorsTotal.Inc()
			r.log.Error("outbox_mark_dead_failed", slog.Int64("id", rec.ID), slog.String("err", err.Error()))
		}
		return
	}

	r.metrics.FailedTotal.WithLabelValues(rec.EventType).Inc()
	next := r.retry.NextRetryAt(time.Now().UTC(), rec.Attempts)
	r.log.Warn("outbox_publish_failed",
		slog.Int64("id", rec.ID),
		slog.String("event_type", rec.EventType),
		slog.Int("attempts", rec.Attempts),
		slog.Time("next_retry_at", next),
		slog.String("err", err.Error()),
	)
	if err := r.store.MarkFailed(ctx, rec.ID, next, err.Error()); err != nil {
		r.metrics.MarkErrorsTotal.Inc()
		r.log.Error("outbox_mark_failed_failed", slog.Int64("id", rec.ID), slog.String("err", err.Error()))
	}
}
