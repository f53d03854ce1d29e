// Package models holds the domain types shared by the admission controller,
// the orchestration pipeline and the HTTP surface.
package models

import (
	"time"
)

// ── Tier ─────────────────────────────────────────────────────

// TierPlan is a subscription plan. Plans are fixed at deploy time.
type TierPlan struct {
	Name         string `json:"name" yaml:"name"`
	MonthlyQuota int64  `json:"monthly_quota" yaml:"monthly_quota"`
	ComputeClass string `json:"compute_class" yaml:"compute_class"`
}

// DefaultTierPlans returns the built-in plan set.
func DefaultTierPlans() []TierPlan {
	return []TierPlan{
		{Name: "basic", MonthlyQuota: 250, ComputeClass: "standard-cpu"},
		{Name: "essential", MonthlyQuota: 1000, ComputeClass: "shared-gpu"},
		{Name: "professional", MonthlyQuota: 5000, ComputeClass: "dedicated-gpu"},
		{Name: "enterprise", MonthlyQuota: 25000, ComputeClass: "gpu-cluster"},
	}
}

// ── Usage ────────────────────────────────────────────────────

// UsageCounter is the monthly request counter for a (user, tier) pair.
type UsageCounter struct {
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Month  string `json:"month"` // yyyy-mm, UTC
	Count  int64  `json:"count"`
}

// Usage is the status view returned to callers.
type Usage struct {
	Used         int64  `json:"used"`
	Limit        int64  `json:"limit"`
	ComputeClass string `json:"compute_class"`
	Month        string `json:"month"`
}

// ── Credentials ──────────────────────────────────────────────

type CredentialStatus string

const (
	CredentialActive  CredentialStatus = "active"
	CredentialRevoked CredentialStatus = "revoked"
)

// ApiCredential is the per-(user, tier) API key. EncryptedKey is the vault
// sealed blob; it is excluded from JSON so it cannot leak through responses.
type ApiCredential struct {
	UserID       string           `json:"user_id"`
	Tier         string           `json:"tier"`
	EncryptedKey []byte           `json:"-"`
	Status       CredentialStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// ── Orchestration ────────────────────────────────────────────

// OrchestrationRequest lives only for the duration of one pipeline run.
type OrchestrationRequest struct {
	RequestID string    `json:"request_id"`
	Action    Action    `json:"action"`
	UserID    string    `json:"user_id"`
	Tier      string    `json:"tier"`
	Params    Params    `json:"params"`
	Agents    []string  `json:"agents,omitempty"` // explicit override of the action's agent set
	StartedAt time.Time `json:"started_at"`
}

// AgentInvocationResult is the outcome of one agent call. Failed agents keep
// their slot with Error set.
type AgentInvocationResult struct {
	AgentID       string                 `json:"agent_id"`
	Content       string                 `json:"content,omitempty"`
	Quality       float64                `json:"quality"`
	Cost          float64                `json:"cost"`
	ProviderStats map[string]interface{} `json:"provider_stats,omitempty"`
	Error         string                 `json:"error,omitempty"`
	LatencyMs     int64                  `json:"latency_ms"`
}

// Failed reports whether the agent call errored.
func (r AgentInvocationResult) Failed() bool {
	return r.Error != ""
}

// Efficiency is quality per unit cost. Failed results rank below everything.
func (r AgentInvocationResult) Efficiency() float64 {
	if r.Failed() {
		return -1
	}
	if r.Cost <= 0 {
		return r.Quality / minBillableCost
	}
	return r.Quality / r.Cost
}

// minBillableCost stands in for zero-cost results when ranking efficiency.
const minBillableCost = 1e-6

// CostLedgerEntry is appended once per pipeline stage.
type CostLedgerEntry struct {
	StepName       string    `json:"step_name"`
	UnitCost       float64   `json:"unit_cost"`
	CumulativeCost float64   `json:"cumulative_cost"`
	Timestamp      time.Time `json:"timestamp"`
}

// FeedbackRecord summarizes one request outcome for continuous learning.
type FeedbackRecord struct {
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	Quality   float64   `json:"quality"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// ── Context fetch ────────────────────────────────────────────

// AlgorithmBundle is the per-action algorithm/config bundle resolved in the
// context fetch stage.
type AlgorithmBundle struct {
	Name        string                 `json:"name"`
	Version     string                 `json:"version,omitempty"`
	CostCeiling float64                `json:"cost_ceiling"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
}

// PipelineContext is everything stage 1 hands to the rest of the pipeline.
type PipelineContext struct {
	Bundle      AlgorithmBundle                   `json:"bundle"`
	AgentStates map[string]map[string]interface{} `json:"agent_states,omitempty"`
	UserHistory []map[string]interface{}          `json:"user_history,omitempty"`
	Degraded    bool                              `json:"degraded"`
}
