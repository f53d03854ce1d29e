// Package store opens the backing services the gencore core runs against:
// PostgreSQL, Redis, NATS and AWS. Every backend is optional; an empty URL
// leaves the connection nil and the server wires an in-memory stand-in.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/config"
)

// Connections holds the opened backends. Nil fields are not configured.
type Connections struct {
	DB    *sql.DB
	Redis *goredis.Client
	NATS  *nats.Conn
	JS    nats.JetStreamContext
	AWS   *aws.Config
}

// Open connects every configured backend and migrates the database.
func Open(ctx context.Context, cfg *config.Config) (*Connections, error) {
	c := &Connections{}
	var err error

	if cfg.Database.URL != "" {
		if c.DB, err = OpenPostgres(ctx, cfg.Database); err != nil {
			return nil, err
		}
		if err := Migrate(ctx, c.DB); err != nil {
			c.Close()
			return nil, err
		}
		log.Info().Msg("✅ PostgreSQL connected and migrated")
	}

	if cfg.Redis.URL != "" {
		if c.Redis, err = OpenRedis(ctx, cfg.Redis); err != nil {
			c.Close()
			return nil, err
		}
		log.Info().Msg("✅ Redis connected")
	}

	if cfg.NATS.URL != "" {
		if c.NATS, c.JS, err = OpenNATS(cfg.NATS); err != nil {
			c.Close()
			return nil, err
		}
		log.Info().Str("url", c.NATS.ConnectedUrl()).Msg("✅ NATS connected")
	}

	if needsAWS(cfg) {
		awsCfg, err := LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.AWS = &awsCfg
		log.Info().Str("region", awsCfg.Region).Msg("✅ AWS config loaded")
	}
	return c, nil
}

func needsAWS(cfg *config.Config) bool {
	return cfg.Archive.Bucket != "" || cfg.Trainer.JobQueue != "" || cfg.Vault.SecretID != ""
}

// OpenPostgres opens a pgx-backed database/sql pool.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store/postgres: open: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
		db.SetMaxIdleConns(cfg.MaxConnections / 2)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store/postgres: ping: %w", err)
	}
	return db, nil
}

// OpenRedis parses a redis:// URL and pings the server.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("store/redis: parse url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store/redis: ping: %w", err)
	}
	return client, nil
}

// OpenNATS connects with reconnects enabled and opens a JetStream context.
func OpenNATS(cfg config.NATSConfig) (*nats.Conn, nats.JetStreamContext, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("gencore"),
		nats.Timeout(cfg.ConnectWait),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("store/nats: connect: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("store/nats: jetstream: %w", err)
	}
	return nc, js, nil
}

// LoadAWSConfig builds the shared AWS config. Static keys are used when both
// are set; otherwise the default credential chain applies.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("store/aws: load config: %w", err)
	}
	return awsCfg, nil
}

// Ping checks every opened backend.
func (c *Connections) Ping(ctx context.Context) error {
	var errs []error
	if c.DB != nil {
		if err := c.DB.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Ping(ctx).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if c.NATS != nil && !c.NATS.IsConnected() {
		errs = append(errs, errors.New("nats: not connected"))
	}
	return errors.Join(errs...)
}

// Close releases every opened backend.
func (c *Connections) Close() error {
	var errs []error
	if c.NATS != nil {
		if err := c.NATS.Drain(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
