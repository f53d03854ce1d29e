// Package admission gates every request against its tier's monthly quota
// and hands back the caller's per-tier API key.
//
// The counter is debited optimistically: the increment happens before the
// limit check, so a rejected attempt still consumes one unit. Over-limit
// callers therefore keep climbing past the quota for the rest of the month,
// which Status reports as used > limit.
package admission

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/quota"
	"github.com/vortexartec/gencore/internal/telemetry"
	"github.com/vortexartec/gencore/internal/vault"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// KeyPrefix marks gencore API keys.
const KeyPrefix = "gk_"

var (
	ErrInvalidTier   = errors.New("invalid tier")
	ErrMissingUser   = errors.New("user id required")
	ErrQuotaExceeded = errors.New("monthly quota exceeded")
)

// QuotaExceededError carries the counter state at rejection.
type QuotaExceededError struct {
	Tier     string
	Limit    int64
	Used     int64
	ResetsAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("tier %s: %d of %d requests used this month", e.Tier, e.Used, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// Admission is a successful admit.
type Admission struct {
	APIKey           string
	Remaining        int64
	Plan             models.TierPlan
	CredentialIssued bool
}

// Controller composes the quota counter, credential store and vault.
type Controller struct {
	plans   map[string]models.TierPlan
	counter contracts.Counter
	creds   contracts.CredentialStore
	vault   contracts.Vault
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithClock replaces the clock that picks the month.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New builds a controller over a fixed plan set.
func New(plans []models.TierPlan, counter contracts.Counter, creds contracts.CredentialStore, v contracts.Vault, opts ...Option) *Controller {
	c := &Controller{
		plans:   make(map[string]models.TierPlan, len(plans)),
		counter: counter,
		creds:   creds,
		vault:   v,
		log:     log.Logger,
		now:     time.Now,
	}
	for _, p := range plans {
		c.plans[p.Name] = p
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Plan looks up a tier.
func (c *Controller) Plan(tier string) (models.TierPlan, bool) {
	p, ok := c.plans[tier]
	return p, ok
}

// Admit debits the caller's monthly counter and returns their API key.
func (c *Controller) Admit(ctx context.Context, userID, tier string, action models.Action, params models.Params) (*Admission, error) {
	plan, ok := c.plans[tier]
	if !ok {
		telemetry.Admissions.WithLabelValues("unknown", "invalid_tier").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if userID == "" {
		telemetry.Admissions.WithLabelValues(tier, "invalid_user").Inc()
		return nil, ErrMissingUser
	}

	now := c.now().UTC()
	key := quota.MonthKey(userID, tier, now)
	used, err := c.counter.Incr(ctx, key, quota.TTLUntilNextMonth(now))
	if err != nil {
		telemetry.Admissions.WithLabelValues(tier, "error").Inc()
		return nil, fmt.Errorf("admission: increment quota: %w", err)
	}
	if used > plan.MonthlyQuota {
		telemetry.Admissions.WithLabelValues(tier, "quota_exceeded").Inc()
		c.log.Info().
			Str("user", userID).
			Str("tier", tier).
			Int64("used", used).
			Int64("limit", plan.MonthlyQuota).
			Msg("Quota exceeded")
		return nil, &QuotaExceededError{
			Tier:     tier,
			Limit:    plan.MonthlyQuota,
			Used:     used,
			ResetsAt: quota.NextMonthStart(now),
		}
	}

	apiKey, issued, err := c.credential(ctx, userID, tier)
	if err != nil {
		telemetry.Admissions.WithLabelValues(tier, "error").Inc()
		return nil, err
	}

	telemetry.Admissions.WithLabelValues(tier, "admitted").Inc()
	c.log.Debug().
		Str("user", userID).
		Str("tier", tier).
		Str("action", string(action)).
		Int64("remaining", plan.MonthlyQuota-used).
		Bool("credential_issued", issued).
		Msg("Admitted")

	return &Admission{
		APIKey:           apiKey,
		Remaining:        plan.MonthlyQuota - used,
		Plan:             plan,
		CredentialIssued: issued,
	}, nil
}

// credential reads the stored key or issues one. Concurrent first admits
// race on Create; the loser re-reads and returns the winner's key.
func (c *Controller) credential(ctx context.Context, userID, tier string) (string, bool, error) {
	aad := vault.OwnerAAD(userID, tier)

	existing, err := c.creds.Get(ctx, userID, tier)
	if err != nil {
		return "", false, fmt.Errorf("admission: load credential: %w", err)
	}
	if existing != nil {
		key, err := c.open(existing, aad)
		return key, false, err
	}

	plain, err := newAPIKey()
	if err != nil {
		return "", false, err
	}
	sealed, err := c.vault.Encrypt([]byte(plain), aad)
	if err != nil {
		return "", false, fmt.Errorf("admission: seal credential: %w", err)
	}
	created, err := c.creds.Create(ctx, &models.ApiCredential{
		UserID:       userID,
		Tier:         tier,
		EncryptedKey: sealed,
		Status:       models.CredentialActive,
		CreatedAt:    c.now().UTC(),
	})
	if err != nil {
		return "", false, fmt.Errorf("admission: store credential: %w", err)
	}
	if created {
		c.log.Info().Str("user", userID).Str("tier", tier).Msg("🔑 API credential issued")
		return plain, true, nil
	}

	winner, err := c.creds.Get(ctx, userID, tier)
	if err != nil {
		return "", false, fmt.Errorf("admission: reload credential: %w", err)
	}
	if winner == nil {
		return "", false, fmt.Errorf("admission: credential for %s/%s vanished after conflict", userID, tier)
	}
	key, err := c.open(winner, aad)
	return key, false, err
}

func (c *Controller) open(cred *models.ApiCredential, aad []byte) (string, error) {
	plain, err := c.vault.Decrypt(cred.EncryptedKey, aad)
	if err != nil {
		return "", fmt.Errorf("admission: open credential: %w", err)
	}
	return string(plain), nil
}

func newAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("admission: generate key: %w", err)
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// Status reports the current month's usage without debiting.
func (c *Controller) Status(ctx context.Context, userID, tier string) (*models.Usage, error) {
	plan, ok := c.plans[tier]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if userID == "" {
		return nil, ErrMissingUser
	}
	now := c.now().UTC()
	used, err := c.counter.Get(ctx, quota.MonthKey(userID, tier, now))
	if err != nil {
		return nil, fmt.Errorf("admission: read quota: %w", err)
	}
	return &models.Usage{
		Used:         used,
		Limit:        plan.MonthlyQuota,
		ComputeClass: plan.ComputeClass,
		Month:        quota.Month(now),
	}, nil
}
