package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENCORE_JWT_SECRET", "test-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.AgentTimeout)
	assert.Equal(t, time.Duration(0), cfg.Pipeline.Deadline)
	assert.Equal(t, 100, cfg.Trainer.BufferSize)
	assert.Equal(t, "generation.completed", cfg.NATS.CompletedTopic)
	assert.Equal(t, "generation.queue", cfg.NATS.QueueSubject)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, 15*time.Minute, cfg.Notify.MarginRealert)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("GENCORE_JWT_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GENCORE_JWT_SECRET")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GENCORE_JWT_SECRET", "s")
	t.Setenv("GENCORE_PORT", "9090")
	t.Setenv("GENCORE_PIPELINE_DEADLINE", "5s")
	t.Setenv("GENCORE_FEEDBACK_BUFFER_SIZE", "7")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Pipeline.Deadline)
	assert.Equal(t, 7, cfg.Trainer.BufferSize)
}

func TestDefaultCatalogIsComplete(t *testing.T) {
	c := config.DefaultCatalog()
	require.NoError(t, c.Validate())

	for _, a := range models.AllActions() {
		assert.NotEmpty(t, c.AgentsFor(a), "agents for %s", a)
		assert.Positive(t, c.PriceFor(a), "price for %s", a)
	}
	for _, s := range models.AllStages() {
		_, ok := c.StepCosts[s]
		assert.True(t, ok, "declared cost for %s", s)
	}
	assert.InDelta(t, 0.0245, c.DeclaredTotal(), 1e-9)
}

func TestDefaultTierPlans(t *testing.T) {
	c := config.DefaultCatalog()

	cases := map[string]int64{
		"basic":        250,
		"essential":    1000,
		"professional": 5000,
		"enterprise":   25000,
	}
	for name, quota := range cases {
		plan, ok := c.Plan(name)
		require.True(t, ok, name)
		assert.Equal(t, quota, plan.MonthlyQuota, name)
	}
	_, ok := c.Plan("platinum")
	assert.False(t, ok)
}

func TestCatalogOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `
prices:
  generate: 0.2
agents:
  analyze: [solo_agent]
target_margin: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c := config.DefaultCatalog()
	require.NoError(t, c.Overlay(path))
	require.NoError(t, c.Validate())

	assert.Equal(t, 0.2, c.PriceFor(models.ActionGenerate))
	assert.Equal(t, 0.08, c.PriceFor(models.ActionAnalyze))
	assert.Equal(t, []string{"solo_agent"}, c.AgentsFor(models.ActionAnalyze))
	assert.Equal(t, 0.7, c.TargetMargin)
	assert.Equal(t, 0.6, c.CriticalMargin)
}

func TestCatalogValidateRejectsMissingAction(t *testing.T) {
	c := config.DefaultCatalog()
	delete(c.Prices, models.ActionOptimize)
	assert.Error(t, c.Validate())
}

func TestAgentsForReturnsCopy(t *testing.T) {
	c := config.DefaultCatalog()
	agents := c.AgentsFor(models.ActionGenerate)
	agents[0] = "mutated"
	assert.NotEqual(t, "mutated", c.AgentsFor(models.ActionGenerate)[0])
}
