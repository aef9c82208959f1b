package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	MetricsAddr string

	OutboxEnabled           bool
	OutboxBatchSize         int
	OutboxPollInterval      time.Duration
	OutboxProcessingTimeout time.Duration
	OutboxMaxAttempts       int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// Load reads .env (without overriding the real environment) and then the
// process environment. groupID is the default consumer group for binaries
// that read from Kafka.
func Load(groupID string) Config {
	loadDotEnv(".env")

	cfg := Config{
		AppEnv:   String("APP_ENV", "dev"),
		HTTPAddr: String("HTTP_ADDR", ":8080"),
		LogLevel: String("LOG_LEVEL", "info"),

		DatabaseURL: String("DATABASE_URL", ""),
		SQLitePath:  String("SQLITE_PATH", "issues.db"),

		MetricsAddr: String("METRICS_ADDR", ":9090"),

		OutboxBatchSize:         Int("OUTBOX_BATCH_SIZE", 50),
		OutboxPollInterval:      Duration("OUTBOX_POLL_INTERVAL", time.Second),
		OutboxProcessingTimeout: Duration("OUTBOX_PROCESSING_TIMEOUT", 30*time.Second),
		OutboxMaxAttempts:       Int("OUTBOX_MAX_ATTEMPTS", 10),

		KafkaBrokers: StringsCSV("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   String("KAFKA_TOPIC", "issues.events"),
		KafkaGroupID: String("KAFKA_GROUP_ID", groupID),
	}

	defDriver := DriverMemory
	if cfg.DatabaseURL != "" {
		defDriver = DriverPostgres
	}
	cfg.StoreDriver = strings.ToLower(String("STORE_DRIVER", defDriver))
	cfg.OutboxEnabled = Bool("OUTBOX_ENABLED", cfg.StoreDriver == DriverPostgres)

	return cfg
}

func String(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func StringsCSV(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func Int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func Bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func Duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
