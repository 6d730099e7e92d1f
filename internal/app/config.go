package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	log "github.com/sirupsen/logrus"
)

// EnvPrefix — префикс переменных окружения сервиса.
const EnvPrefix = "STOCKROOM_"

// Поддерживаемые драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска приложения.
type Config struct {
	GRPCAddr    string `koanf:"grpc_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	LogLevel    string `koanf:"log_level"`

	StorageDriver       string `koanf:"storage_driver"`
	PostgresDSN         string `koanf:"postgres_dsn"`
	PostgresAutoMigrate bool   `koanf:"postgres_auto_migrate"`
	PostgresMaxConns    int    `koanf:"postgres_max_conns"`

	// KafkaBrokers пустой — события outbox только логируются.
	KafkaBrokers  []string `koanf:"kafka_brokers"`
	KafkaTopic    string   `koanf:"kafka_topic"`
	KafkaDLQTopic string   `koanf:"kafka_dlq_topic"`

	OutboxPollInterval time.Duration `koanf:"outbox_poll_interval"`
	OutboxBatchSize    int           `koanf:"outbox_batch_size"`
	OutboxMaxAttempts  int           `koanf:"outbox_max_attempts"`
	OutboxRetryDelay   time.Duration `koanf:"outbox_retry_delay"`

	IdempotencyCleanupInterval  time.Duration `koanf:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `koanf:"idempotency_cleanup_batch_size"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		LogLevel:                    "info",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		PostgresMaxConns:            25,
		KafkaTopic:                  "stockroom.order.events",
		KafkaDLQTopic:               "stockroom.order.dlq",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            50 * time.Millisecond,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		ShutdownTimeout:             5 * time.Second,
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем envFile
// (если он есть), затем переменные окружения STOCKROOM_*. Переменные окружения
// процесса имеют приоритет над .env.
func LoadConfig(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	k := koanf.New(".")
	transform := func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", transform), nil); err != nil {
		return Config{}, fmt.Errorf("load env config: %w", err)
	}

	cfg := DefaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.GRPCAddr) == "" {
		errs = append(errs, errors.New("grpc_addr is required"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres_dsn is required for postgres storage"))
		}
		if c.PostgresMaxConns <= 0 {
			errs = append(errs, errors.New("postgres_max_conns must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver %q", c.StorageDriver))
	}

	if len(c.KafkaBrokers) > 0 && strings.TrimSpace(c.KafkaTopic) == "" {
		errs = append(errs, errors.New("kafka_topic is required when kafka_brokers is set"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("outbox_poll_interval must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox_batch_size must be positive"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox_max_attempts must be positive"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox_retry_delay cannot be negative"))
	}
	if c.IdempotencyCleanupInterval <= 0 {
		errs = append(errs, errors.New("idempotency_cleanup_interval must be positive"))
	}
	if c.IdempotencyCleanupBatchSize <= 0 {
		errs = append(errs, errors.New("idempotency_cleanup_batch_size must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// splitList нормализует список: "a, b" из одной переменной окружения
// превращается в [a b], пустые элементы отбрасываются.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
