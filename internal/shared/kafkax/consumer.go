package kafkax

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	mu  sync.Mutex
	r   *kafka.Reader
	cfg ConsumerConfig
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string

	// StartOffset is where a group without committed offsets begins:
	// "first" or "last" (default).
	StartOffset string

	MinBytes int
	MaxBytes int

	// ReopenAfter recreates the reader after this many consecutive fetch
	// failures. Zero means 5.
	ReopenAfter int
}

func NewConsumer(cfg ConsumerConfig) *Consumer {
	if cfg.ReopenAfter <= 0 {
		cfg.ReopenAfter = 5
	}
	c := &Consumer{cfg: cfg}
	c.r = newReader(cfg)
	return c
}

func newReader(cfg ConsumerConfig) *kafka.Reader {
	minB := cfg.MinBytes
	maxB := cfg.MaxBytes
	if minB == 0 {
		minB = 1
	}
	if maxB == 0 {
		maxB = 10e6
	}

	start := kafka.LastOffset
	if strings.EqualFold(cfg.StartOffset, "first") {
		start = kafka.FirstOffset
	}

	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		StartOffset:    start,
		MinBytes:       minB,
		MaxBytes:       maxB,
		MaxWait:        500 * time.Millisecond,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})
}

func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r == nil {
		return nil
	}
	err := c.r.Close()
	c.r = nil
	return err
}

func (c *Consumer) reader() *kafka.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.r
}

// Reopen closes the reader and opens a fresh one with the same config.
func (c *Consumer) Reopen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.r != nil {
		_ = c.r.Close()
	}
	c.r = newReader(c.cfg)
}

// Handler processes one message. A nil return commits it; an error leaves
// it uncommitted so it is delivered again.
type Handler func(ctx context.Context, msg kafka.Message) error

// Run fetches and handles messages until ctx is done. Fetch failures back
// off exponentially and reopen the reader after cfg.ReopenAfter in a row.
func (c *Consumer) Run(ctx context.Context, log *slog.Logger, handle Handler) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		r := c.reader()
		if r == nil {
			return nil
		}
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			log.Error("kafka_fetch_failed", slog.Int("failures", failures), slog.String("err", err.Error()))
			if failures%c.cfg.ReopenAfter == 0 {
				log.Warn("kafka_reader_reopen")
				c.Reopen()
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}
		failures = 0
		bo.Reset()

		if err := handle(ctx, msg); err != nil {
			continue
		}
		if err := r.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Error("kafka_commit_failed", slog.String("err", err.Error()))
		}
	}
}
