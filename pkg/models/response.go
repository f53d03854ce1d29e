package models

import "time"

// PipelineResponse is the assembled result of one orchestration.
type PipelineResponse struct {
	RequestID          string                  `json:"request_id"`
	Action             Action                  `json:"action"`
	UserID             string                  `json:"user_id"`
	Tier               string                  `json:"tier"`
	Results            []AgentInvocationResult `json:"results"`
	AgentsUsed         []string                `json:"agents_used"`
	PrunedAgents       []string                `json:"pruned_agents,omitempty"`
	CostAnalysis       CostAnalysis            `json:"cost_analysis"`
	PerformanceMetrics PerformanceMetrics      `json:"performance_metrics"`
	ContinuousLearning ContinuousLearning      `json:"continuous_learning"`
	Fallback           bool                    `json:"fallback"`
	RemainingQuota     *int64                  `json:"remaining_quota,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
}

// CostAnalysis carries two separate numbers: TotalCost is the declared
// per-stage total, MeasuredAgentCost is what the agents reported.
type CostAnalysis struct {
	TotalCost               float64            `json:"total_cost"`
	MeasuredAgentCost       float64            `json:"measured_agent_cost"`
	EstimatedRevenue        float64            `json:"estimated_revenue"`
	ProfitMargin            float64            `json:"profit_margin"`
	TargetMargin            float64            `json:"target_margin"`
	MarginHealthy           bool               `json:"margin_healthy"`
	StageCosts              map[string]float64 `json:"stage_costs,omitempty"`
	OptimizationSuggestions []string           `json:"optimization_suggestions,omitempty"`
}

// PerformanceMetrics reports timings and quality for the run.
type PerformanceMetrics struct {
	WallTimeMs      int64              `json:"wall_time_ms"`
	StageTimingsMs  map[string]int64   `json:"stage_timings_ms,omitempty"`
	AverageQuality  float64            `json:"average_quality"`
	AgentEfficiency map[string]float64 `json:"agent_efficiency,omitempty"`
}

// ContinuousLearning reports whether the run fed or triggered retraining.
type ContinuousLearning struct {
	Enabled            bool   `json:"enabled"`
	BatchTriggered     bool   `json:"batch_triggered"`
	JobID              string `json:"job_id,omitempty"`
	FeedbackBufferSize int    `json:"feedback_buffer_size"`
}
