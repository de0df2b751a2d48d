package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/graph"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/scheduler"
	"github.com/Ramsey-B/clover/pkg/tracing"
	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
)

type Config struct {
	AppName                       string `env:"APP_NAME" env-default:"clover-api"`
	Version                       string `env:"APP_VERSION" env-default:"dev"`
	Port                          int    `env:"PORT" env-default:"3004"`
	LogLevel                      string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool   `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int    `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int    `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int    `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	MaxHeaderBytes                int    `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"` // 64KB
	ReadHeaderTimeoutSeconds      int    `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	ShutdownTimeoutSeconds        int    `env:"SHUTDOWN_TIMEOUT_SECONDS" env-default:"30"`
	StartupMaxAttempts            int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (CRM contacts and dedupe tables)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"clover"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Graph Database (Memgraph)
	GraphDBEnabled  bool   `env:"GRAPH_DB_ENABLED" env-default:"true"`
	GraphDBHost     string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort     int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser     string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword string `env:"GRAPH_DB_PASSWORD" env-default:""`

	// Redis (scheduler lock and cursor)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka
	KafkaBrokers           []string      `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaConsumerEnabled   bool          `env:"KAFKA_CONSUMER_ENABLED" env-default:"true"`
	KafkaPairRequestTopic  string        `env:"KAFKA_PAIR_REQUEST_TOPIC" env-default:"dedupe-pair-requests"`
	KafkaConsumerGroup     string        `env:"KAFKA_CONSUMER_GROUP" env-default:"clover-consumer"`
	KafkaPairBatchSize     int           `env:"KAFKA_PAIR_BATCH_SIZE" env-default:"100"`
	KafkaPairFlushInterval time.Duration `env:"KAFKA_PAIR_FLUSH_INTERVAL" env-default:"2s"`
	KafkaProducerEnabled   bool          `env:"KAFKA_PRODUCER_ENABLED" env-default:"true"`
	KafkaEventsTopic       string        `env:"KAFKA_EVENTS_TOPIC" env-default:"dedupe-events"`
	KafkaBatchSize         int           `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeoutMS    int           `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks      int           `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression       string        `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Tracing
	TracingEnabled bool          `env:"TRACING_ENABLED" env-default:"false"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol   string        `env:"OTEL_EXPORTER_OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure   bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" env-default:"true"`
	OTLPTimeout    time.Duration `env:"OTEL_EXPORTER_OTLP_TIMEOUT" env-default:"10s"`

	// Dedupe scoring
	DedupeWorkers            int     `env:"DEDUPE_WORKERS" env-default:"8"`
	DedupeWeightEmail        float64 `env:"DEDUPE_WEIGHT_EMAIL" env-default:"0.3"`
	DedupeWeightPhone        float64 `env:"DEDUPE_WEIGHT_PHONE" env-default:"0.1"`
	DedupeWeightName         float64 `env:"DEDUPE_WEIGHT_NAME" env-default:"0.4"`
	DedupeWeightCompany      float64 `env:"DEDUPE_WEIGHT_COMPANY" env-default:"0.1"`
	DedupeWeightAddress      float64 `env:"DEDUPE_WEIGHT_ADDRESS" env-default:"0.1"`
	DedupeReviewThreshold    float64 `env:"DEDUPE_REVIEW_THRESHOLD" env-default:"0.5"`
	DedupeAutoThreshold      float64 `env:"DEDUPE_AUTO_THRESHOLD" env-default:"0.85"`
	DedupePersistBelowReview bool    `env:"DEDUPE_PERSIST_BELOW_REVIEW" env-default:"true"`

	// Normalization scheduler
	SchedulerEnabled          bool          `env:"SCHEDULER_ENABLED" env-default:"true"`
	SchedulerPollInterval     time.Duration `env:"SCHEDULER_POLL_INTERVAL" env-default:"1m"`
	SchedulerLockTTL          time.Duration `env:"SCHEDULER_LOCK_TTL" env-default:"2m"`
	SchedulerPageSize         int           `env:"SCHEDULER_PAGE_SIZE" env-default:"500"`
	SchedulerMaxPagesPerCycle int           `env:"SCHEDULER_MAX_PAGES_PER_CYCLE" env-default:"20"`
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DedupeConfig builds the initial scoring config. It is validated when
// installed in the config holder.
func (c *Config) DedupeConfig() models.DedupeConfig {
	return models.DedupeConfig{
		Weights: models.Weights{
			Email:   c.DedupeWeightEmail,
			Phone:   c.DedupeWeightPhone,
			Name:    c.DedupeWeightName,
			Company: c.DedupeWeightCompany,
			Address: c.DedupeWeightAddress,
		},
		Thresholds: models.Thresholds{
			Review: c.DedupeReviewThreshold,
			Auto:   c.DedupeAutoThreshold,
		},
		PersistBelowReview: c.DedupePersistBelowReview,
	}
}

func (c *Config) Database() database.Config {
	return database.Config{
		Driver:          c.DatabaseDriver,
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUserName,
		Password:        c.DatabasePassword,
		Name:            c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

func (c *Config) Migration() *database.MigrationConfig {
	return &database.MigrationConfig{
		MigrationFolderPath: c.DatabaseMigrationFolderPath,
		Version:             uint(max(c.DatabaseMigrationVersion, 0)),
		Force:               c.DatabaseMigrationForce,
		AutoRollback:        c.DatabaseMigrationAutoRollback,
	}
}

func (c *Config) Graph() graph.Config {
	return graph.Config{
		Host:     c.GraphDBHost,
		Port:     c.GraphDBPort,
		Username: c.GraphDBUser,
		Password: c.GraphDBPassword,
	}
}

func (c *Config) Redis() redis.Config {
	return redis.Config{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}

func (c *Config) Producer() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      c.KafkaBrokers,
		Topic:        c.KafkaEventsTopic,
		BatchSize:    c.KafkaBatchSize,
		BatchTimeout: time.Duration(c.KafkaBatchTimeoutMS) * time.Millisecond,
		RequiredAcks: c.KafkaRequiredAcks,
		Compression:  c.KafkaCompression,
	}
}

func (c *Config) Consumer() kafka.ConsumerConfig {
	return kafka.ConsumerConfig{
		Brokers:       c.KafkaBrokers,
		Topic:         c.KafkaPairRequestTopic,
		ConsumerGroup: c.KafkaConsumerGroup,
		BatchSize:     c.KafkaPairBatchSize,
		FlushInterval: c.KafkaPairFlushInterval,
	}
}

func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		ServiceName: c.AppName,
		Enabled:     c.TracingEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: c.OTLPEndpoint,
			Protocol: c.OTLPProtocol,
			Insecure: c.OTLPInsecure,
			Timeout:  c.OTLPTimeout,
		},
	}
}

func (c *Config) Scheduler() scheduler.Config {
	return scheduler.Config{
		PollInterval:     c.SchedulerPollInterval,
		LockTTL:          c.SchedulerLockTTL,
		PageSize:         c.SchedulerPageSize,
		MaxPagesPerCycle: c.SchedulerMaxPagesPerCycle,
	}
}
