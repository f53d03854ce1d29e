package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the gencore service.
type Config struct {
	Port        int    `env:"GENCORE_PORT" envDefault:"8080"`
	Version     string `env:"GENCORE_VERSION" envDefault:"0.1.0"`
	LogFormat   string `env:"GENCORE_LOG_FORMAT" envDefault:"console"`
	LogLevel    string `env:"GENCORE_LOG_LEVEL" envDefault:"info"`
	CatalogFile string `env:"GENCORE_CATALOG_FILE"`

	Database  DatabaseConfig
	Redis     RedisConfig
	NATS      NATSConfig
	AWS       AWSConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
	Vault     VaultConfig
	Archive   ArchiveConfig
	Trainer   TrainerConfig
	Pipeline  PipelineConfig
	Gateway   GatewayConfig
	Notify    NotifyConfig

	// Catalog is not read from env; it comes from DefaultCatalog and the
	// optional YAML overlay.
	Catalog Catalog `env:"-"`
}

// DatabaseConfig configures PostgreSQL. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL            string `env:"DATABASE_URL"`
	MaxConnections int    `env:"DATABASE_MAX_CONNECTIONS" envDefault:"25"`
}

// RedisConfig configures the preferred quota counter and secondary stores.
type RedisConfig struct {
	URL       string `env:"REDIS_URL"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"gencore:"`
}

type NATSConfig struct {
	URL            string        `env:"NATS_URL"`
	Stream         string        `env:"NATS_STREAM" envDefault:"GENERATION"`
	CompletedTopic string        `env:"NATS_COMPLETED_TOPIC" envDefault:"generation.completed"`
	QueueSubject   string        `env:"NATS_QUEUE_SUBJECT" envDefault:"generation.queue"`
	ConnectWait    time.Duration `env:"NATS_CONNECT_WAIT" envDefault:"2s"`
	MaxReconnects  int           `env:"NATS_MAX_RECONNECTS" envDefault:"10"`
}

// AWSConfig is shared by the S3 archiver, the Batch trigger and the
// Secrets Manager key loader. Static keys are optional; the default
// credential chain is used otherwise.
type AWSConfig struct {
	Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint        string `env:"GENCORE_AWS_ENDPOINT"`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
}

type TelemetryConfig struct {
	Enabled      bool   `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"gencore"`
}

type AuthConfig struct {
	// JWTSecret signs admission tokens (HS256). Required.
	JWTSecret string `env:"GENCORE_JWT_SECRET"`
	Issuer    string `env:"GENCORE_JWT_ISSUER"`
}

// VaultConfig locates the credential master key: either inline (base64) or
// an AWS Secrets Manager secret id holding the base64 key.
type VaultConfig struct {
	MasterKey string `env:"GENCORE_VAULT_KEY"`
	SecretID  string `env:"GENCORE_VAULT_SECRET_ID"`
}

type ArchiveConfig struct {
	Bucket    string `env:"GENCORE_ARCHIVE_BUCKET"`
	LocalPath string `env:"GENCORE_ARCHIVE_DIR"`
	Compress  bool   `env:"GENCORE_ARCHIVE_COMPRESS" envDefault:"false"`
}

type TrainerConfig struct {
	Enabled          bool   `env:"GENCORE_LEARNING_ENABLED" envDefault:"true"`
	JobName          string `env:"GENCORE_TRAINER_JOB_NAME" envDefault:"gencore-retrain"`
	JobQueue         string `env:"GENCORE_TRAINER_JOB_QUEUE"`
	JobDefinition    string `env:"GENCORE_TRAINER_JOB_DEFINITION"`
	BufferSize       int    `env:"GENCORE_FEEDBACK_BUFFER_SIZE" envDefault:"100"`
	Rule             string `env:"GENCORE_TRAINER_RULE" envDefault:"avg_quality < 0.8 || buffer_len >= buffer_size"`
	LearningStateCap int64  `env:"GENCORE_LEARNING_STATE_CAP" envDefault:"1000"`
}

type PipelineConfig struct {
	// Deadline bounds a whole orchestration; zero means none.
	Deadline            time.Duration `env:"GENCORE_PIPELINE_DEADLINE" envDefault:"0s"`
	AgentTimeout        time.Duration `env:"GENCORE_AGENT_TIMEOUT" envDefault:"30s"`
	DispatchConcurrency int           `env:"GENCORE_DISPATCH_CONCURRENCY" envDefault:"8"`
	DefaultCostCeiling  float64       `env:"GENCORE_DEFAULT_COST_CEILING" envDefault:"0.075"`
}

// GatewayConfig selects the agent driver. An empty InferenceURL uses the
// local synthetic driver.
type GatewayConfig struct {
	InferenceURL string        `env:"GENCORE_INFERENCE_URL"`
	APIKey       string        `env:"GENCORE_INFERENCE_API_KEY"`
	Timeout      time.Duration `env:"GENCORE_INFERENCE_TIMEOUT" envDefault:"30s"`
}

type NotifyConfig struct {
	AlertWebhookURL       string `env:"GENCORE_ALERT_WEBHOOK_URL"`
	MarketplaceWebhookURL string `env:"GENCORE_MARKETPLACE_WEBHOOK_URL"`
	WebhookSecret         string `env:"GENCORE_WEBHOOK_SECRET"`

	// MarginRealert repeats the critical margin page while the ledger stays
	// critical; zero pages only on entering the band.
	MarginRealert time.Duration `env:"GENCORE_MARGIN_REALERT_INTERVAL" envDefault:"15m"`
}

// Load reads configuration from environment variables with sensible
// defaults, then applies the catalog overlay when GENCORE_CATALOG_FILE is set.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Catalog = DefaultCatalog()
	if cfg.CatalogFile != "" {
		if err := cfg.Catalog.Overlay(cfg.CatalogFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("GENCORE_JWT_SECRET is required")
	}
	if c.Trainer.BufferSize <= 0 {
		return fmt.Errorf("GENCORE_FEEDBACK_BUFFER_SIZE must be positive, got %d", c.Trainer.BufferSize)
	}
	if c.Pipeline.DispatchConcurrency <= 0 {
		return fmt.Errorf("GENCORE_DISPATCH_CONCURRENCY must be positive, got %d", c.Pipeline.DispatchConcurrency)
	}
	return c.Catalog.Validate()
}
