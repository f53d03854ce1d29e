// Package server composes the gencore core: it opens the configured
// backends, picks an in-memory stand-in for every backend left unset, and
// returns a ready HTTP handler.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/admission"
	"github.com/vortexartec/gencore/internal/api"
	"github.com/vortexartec/gencore/internal/api/handlers"
	"github.com/vortexartec/gencore/internal/archive"
	"github.com/vortexartec/gencore/internal/auth"
	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/internal/credentials"
	"github.com/vortexartec/gencore/internal/gateway"
	"github.com/vortexartec/gencore/internal/ledger"
	"github.com/vortexartec/gencore/internal/notify"
	"github.com/vortexartec/gencore/internal/pipeline"
	"github.com/vortexartec/gencore/internal/quota"
	"github.com/vortexartec/gencore/internal/sinks"
	"github.com/vortexartec/gencore/internal/store"
	"github.com/vortexartec/gencore/internal/telemetry"
	"github.com/vortexartec/gencore/internal/trainer"
	"github.com/vortexartec/gencore/internal/vault"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// Server holds the initialized gencore core.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Conns are the opened backends; nil fields were not configured.
	Conns *store.Connections

	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Ledger   *ledger.Ledger
	Port     int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// New loads configuration from the environment and builds the server.
func New(ctx context.Context) (*Server, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(ctx, cfg)
}

// NewWithConfig builds the server from an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	shutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	conns, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open backends: %w", err)
	}

	srv, err := build(ctx, cfg, conns)
	if err != nil {
		conns.Close()
		return nil, err
	}
	srv.ShutdownFunc = shutdown
	return srv, nil
}

func build(ctx context.Context, cfg *config.Config, conns *store.Connections) (*Server, error) {
	// ── Admission ────────────────────────────────────────────
	v, err := openVault(ctx, cfg, conns)
	if err != nil {
		return nil, err
	}
	controller := admission.New(cfg.Catalog.Tiers, quotaCounter(cfg, conns), credentialStore(conns), v)

	// ── Agents ───────────────────────────────────────────────
	gw := gateway.New(gateway.WithTimeout(cfg.Pipeline.AgentTimeout))
	if cfg.Gateway.InferenceURL != "" {
		gw.RegisterDriver(gateway.NewHTTPDriver(cfg.Gateway.InferenceURL, cfg.Gateway.APIKey, cfg.Gateway.Timeout))
		log.Info().Str("url", cfg.Gateway.InferenceURL).Msg("✅ Inference service driver registered")
	}
	gw.RegisterDriver(gateway.NewLocalDriver())

	// ── Ledger & notifications ───────────────────────────────
	notifier := notify.NewService()
	var alerter contracts.Alerter = &notify.LogAlerter{Log: log.Logger}
	if cfg.Notify.AlertWebhookURL != "" {
		alerter = notify.NewWebhookAlerter(notifier, cfg.Notify.AlertWebhookURL, cfg.Notify.WebhookSecret)
	}
	costLedger := ledger.New(cfg.Catalog.StepCosts, cfg.Catalog.TargetMargin, cfg.Catalog.CriticalMargin,
		ledger.WithAlerter(alerter), ledger.WithRealertInterval(cfg.Notify.MarginRealert))

	var marketplace notify.MarketplaceSync = notify.NopMarketplace{}
	if cfg.Notify.MarketplaceWebhookURL != "" {
		marketplace = notify.NewWebhookMarketplace(notifier, cfg.Notify.MarketplaceWebhookURL, cfg.Notify.WebhookSecret)
	}

	// ── Training ─────────────────────────────────────────────
	var submitter contracts.BatchSubmitter = &trainer.LogSubmitter{Log: log.Logger}
	if cfg.Trainer.JobQueue != "" && conns.AWS != nil {
		submitter = trainer.NewAWSBatchSubmitter(*conns.AWS, cfg.AWS.Endpoint)
		log.Info().Str("queue", cfg.Trainer.JobQueue).Msg("✅ AWS Batch retraining enabled")
	}
	trigger, err := trainer.New(cfg.Trainer, trainer.NewBuffer(), submitter)
	if err != nil {
		return nil, err
	}

	deps := pipeline.Deps{
		Catalog:     cfg.Catalog,
		Config:      cfg.Pipeline,
		Topics:      pipeline.Topics{Completed: cfg.NATS.CompletedTopic, Queue: cfg.NATS.QueueSubject},
		Invoker:     gw,
		Ledger:      costLedger,
		Trainer:     trigger,
		Marketplace: marketplace,
	}
	if err := wireSinks(ctx, cfg, conns, &deps); err != nil {
		return nil, err
	}

	p, err := pipeline.New(deps)
	if err != nil {
		return nil, err
	}

	verifier := auth.NewHMACVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	router := api.NewRouter(cfg, handlers.New(controller, p, costLedger), verifier)

	return &Server{
		Handler:  router,
		Conns:    conns,
		Config:   cfg,
		Pipeline: p,
		Ledger:   costLedger,
		Port:     cfg.Port,
	}, nil
}

// ── Wiring helpers ───────────────────────────────────────────

func quotaCounter(cfg *config.Config, conns *store.Connections) contracts.Counter {
	var pg contracts.Counter
	if conns.DB != nil {
		pg = quota.NewSQLCounter(conns.DB)
	}
	switch {
	case conns.Redis != nil:
		redis := quota.NewRedisCounter(conns.Redis, quota.WithKeyPrefix(cfg.Redis.KeyPrefix+"quota:"))
		log.Info().Bool("sql_failover", pg != nil).Msg("✅ Redis quota counter")
		return &quota.Failover{Primary: redis, Secondary: pg, Log: log.Logger}
	case pg != nil:
		log.Info().Msg("✅ PostgreSQL quota counter")
		return pg
	default:
		log.Warn().Msg("⚠️  In-memory quota counter; usage resets on restart")
		return quota.NewMemoryCounter()
	}
}

func credentialStore(conns *store.Connections) contracts.CredentialStore {
	if conns.DB != nil {
		return credentials.NewSQLStore(conns.DB)
	}
	return credentials.NewMemoryStore()
}

// openVault loads the master key inline or from Secrets Manager. With
// neither configured an ephemeral key is generated.
func openVault(ctx context.Context, cfg *config.Config, conns *store.Connections) (*vault.Vault, error) {
	var (
		key []byte
		err error
	)
	switch {
	case cfg.Vault.MasterKey != "":
		key, err = vault.DecodeKey(cfg.Vault.MasterKey)
	case cfg.Vault.SecretID != "" && conns.AWS != nil:
		client := secretsmanager.NewFromConfig(*conns.AWS, func(o *secretsmanager.Options) {
			if cfg.AWS.Endpoint != "" {
				o.BaseEndpoint = &cfg.AWS.Endpoint
			}
		})
		key, err = vault.KeyFromSecretsManager(ctx, client, cfg.Vault.SecretID)
	default:
		key = make([]byte, vault.KeySize)
		_, err = rand.Read(key)
		log.Warn().Msg("⚠️  Ephemeral vault key; stored credentials will not decrypt after restart")
	}
	if err != nil {
		return nil, fmt.Errorf("vault key: %w", err)
	}
	return vault.New(key)
}

func wireSinks(ctx context.Context, cfg *config.Config, conns *store.Connections, deps *pipeline.Deps) error {
	if conns.Redis != nil {
		deps.Context = pipeline.NewRedisContextSource(conns.Redis, cfg.Redis.KeyPrefix)
		deps.Learning = trainer.NewRedisLearningState(conns.Redis, cfg.Redis.KeyPrefix, cfg.Trainer.LearningStateCap)
		deps.SecondaryMemory = sinks.NewRedisMemoryStore(conns.Redis, cfg.Redis.KeyPrefix, 0)
	} else {
		deps.Context = pipeline.NewStaticContextSource(models.AlgorithmBundle{
			Name:        pipeline.GenericBundle,
			CostCeiling: cfg.Pipeline.DefaultCostCeiling,
		})
		deps.Learning = trainer.NewMemoryLearningState(cfg.Trainer.LearningStateCap)
	}

	if conns.DB != nil {
		deps.PrimaryMemory = sinks.NewSQLMemoryStore(conns.DB)
		deps.Audit = sinks.NewSQLAuditLog(conns.DB)
	}

	if conns.NATS != nil {
		deps.Publisher = sinks.NewNATSPublisher(conns.NATS)
		if err := sinks.EnsureStream(conns.JS, cfg.NATS.Stream, cfg.NATS.QueueSubject); err != nil {
			return err
		}
		deps.Queue = sinks.NewJetStreamQueue(conns.JS)
		log.Info().Str("stream", cfg.NATS.Stream).Msg("✅ JetStream work queue ready")
	}

	switch {
	case cfg.Archive.Bucket != "" && conns.AWS != nil:
		deps.Archive = archive.NewS3Store(*conns.AWS, cfg.Archive.Bucket, cfg.AWS.Endpoint)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("✅ S3 archive")
	case cfg.Archive.LocalPath != "":
		local := archive.NewLocalStore(cfg.Archive.LocalPath, cfg.Archive.Compress)
		if err := local.HealthCheck(ctx); err != nil {
			return err
		}
		deps.Archive = local
		log.Info().Str("path", cfg.Archive.LocalPath).Msg("✅ Local archive")
	default:
		log.Info().Msg("🔕 Archival disabled")
	}
	return nil
}
