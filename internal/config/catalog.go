package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vortexartec/gencore/pkg/models"
)

// Catalog holds the deploy-time tables: tier plans, per-action agent sets and
// prices, declared stage costs and margin thresholds.
type Catalog struct {
	Tiers              []models.TierPlan          `yaml:"tiers"`
	Agents             map[models.Action][]string `yaml:"agents"`
	Prices             map[models.Action]float64  `yaml:"prices"`
	DefaultAgents      []string                   `yaml:"default_agents"`
	StepCosts          map[models.Stage]float64   `yaml:"step_costs"`
	TargetMargin       float64                    `yaml:"target_margin"`
	CriticalMargin     float64                    `yaml:"critical_margin"`
	MarketplaceActions []models.Action            `yaml:"marketplace_actions"`
	AuditActions       []models.Action            `yaml:"audit_actions"`
}

// DefaultCatalog builds the built-in tables.
func DefaultCatalog() Catalog {
	c := Catalog{
		Tiers:              models.DefaultTierPlans(),
		Agents:             make(map[models.Action][]string),
		Prices:             make(map[models.Action]float64),
		DefaultAgents:      []string{"creative_agent", "quality_agent"},
		StepCosts:          make(map[models.Stage]float64),
		TargetMargin:       0.80,
		CriticalMargin:     0.60,
		MarketplaceActions: []models.Action{models.ActionPublish},
		AuditActions:       []models.Action{models.ActionGenerate, models.ActionPublish},
	}
	for _, a := range models.AllActions() {
		c.Agents[a] = defaultAgents(a)
		c.Prices[a] = defaultPrice(a)
	}
	for _, s := range models.AllStages() {
		c.StepCosts[s] = defaultStepCost(s)
	}
	return c
}

func defaultAgents(a models.Action) []string {
	switch a {
	case models.ActionGenerate:
		return []string{"creative_agent", "style_agent", "quality_agent"}
	case models.ActionAnalyze:
		return []string{"analysis_agent", "quality_agent"}
	case models.ActionOptimize:
		return []string{"optimization_agent", "style_agent", "quality_agent"}
	case models.ActionPublish:
		return []string{"publishing_agent", "marketplace_agent"}
	}
	return nil
}

func defaultPrice(a models.Action) float64 {
	switch a {
	case models.ActionGenerate:
		return 0.10
	case models.ActionAnalyze:
		return 0.08
	case models.ActionOptimize:
		return 0.12
	case models.ActionPublish:
		return 0.15
	}
	return 0
}

func defaultStepCost(s models.Stage) float64 {
	switch s {
	case models.StageContextFetch:
		return 0.0005
	case models.StageAgentDispatch:
		return 0.015
	case models.StageMemoryPersistence:
		return 0.001
	case models.StageEventEmission:
		return 0.0005
	case models.StageArchivalWrite:
		return 0.001
	case models.StageTrainingTrigger:
		return 0.005
	case models.StageResponseAssembly:
		return 0.0015
	}
	return 0
}

// Overlay merges a YAML file over the catalog. Only keys present in the file
// replace built-in values.
func (c *Catalog) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", path, err)
	}
	var o Catalog
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse catalog %s: %w", path, err)
	}

	if len(o.Tiers) > 0 {
		c.Tiers = o.Tiers
	}
	for a, agents := range o.Agents {
		c.Agents[a] = agents
	}
	for a, p := range o.Prices {
		c.Prices[a] = p
	}
	for s, cost := range o.StepCosts {
		c.StepCosts[s] = cost
	}
	if len(o.DefaultAgents) > 0 {
		c.DefaultAgents = o.DefaultAgents
	}
	if o.TargetMargin != 0 {
		c.TargetMargin = o.TargetMargin
	}
	if o.CriticalMargin != 0 {
		c.CriticalMargin = o.CriticalMargin
	}
	if o.MarketplaceActions != nil {
		c.MarketplaceActions = o.MarketplaceActions
	}
	if o.AuditActions != nil {
		c.AuditActions = o.AuditActions
	}
	return nil
}

// Validate rejects incomplete tables.
func (c *Catalog) Validate() error {
	if len(c.Tiers) == 0 {
		return fmt.Errorf("catalog: no tier plans")
	}
	seen := make(map[string]bool, len(c.Tiers))
	for _, t := range c.Tiers {
		if t.Name == "" || t.MonthlyQuota <= 0 {
			return fmt.Errorf("catalog: invalid tier plan %+v", t)
		}
		if seen[t.Name] {
			return fmt.Errorf("catalog: duplicate tier %q", t.Name)
		}
		seen[t.Name] = true
	}
	for _, a := range models.AllActions() {
		if len(c.Agents[a]) == 0 {
			return fmt.Errorf("catalog: action %q has no agents", a)
		}
		if c.Prices[a] <= 0 {
			return fmt.Errorf("catalog: action %q has no price", a)
		}
	}
	for _, s := range models.AllStages() {
		if _, ok := c.StepCosts[s]; !ok {
			return fmt.Errorf("catalog: stage %q has no declared cost", s)
		}
	}
	if len(c.DefaultAgents) == 0 {
		return fmt.Errorf("catalog: no default agents")
	}
	if c.CriticalMargin > c.TargetMargin {
		return fmt.Errorf("catalog: critical margin %.2f above target %.2f", c.CriticalMargin, c.TargetMargin)
	}
	return nil
}

// Plan looks up a tier plan by name.
func (c *Catalog) Plan(name string) (models.TierPlan, bool) {
	for _, t := range c.Tiers {
		if t.Name == name {
			return t, true
		}
	}
	return models.TierPlan{}, false
}

// AgentsFor returns a copy of the action's agent set.
func (c *Catalog) AgentsFor(a models.Action) []string {
	return append([]string(nil), c.Agents[a]...)
}

func (c *Catalog) PriceFor(a models.Action) float64 {
	return c.Prices[a]
}

// DeclaredTotal sums the declared stage costs.
func (c *Catalog) DeclaredTotal() float64 {
	var total float64
	for _, s := range models.AllStages() {
		total += c.StepCosts[s]
	}
	return total
}

func (c *Catalog) SyncsMarketplace(a models.Action) bool {
	return containsAction(c.MarketplaceActions, a)
}

func (c *Catalog) Audits(a models.Action) bool {
	return containsAction(c.AuditActions, a)
}

func containsAction(list []models.Action, a models.Action) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}
