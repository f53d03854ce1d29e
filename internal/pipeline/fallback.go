package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/vortexartec/gencore/pkg/models"
)

// Fallback is the minimal orchestration: the default agent set, called one
// after another, with no cost tracking or side effects.
func (p *Pipeline) Fallback(ctx context.Context, req models.OrchestrationRequest) *models.PipelineResponse {
	start := p.now()
	agents := p.Catalog.DefaultAgents
	results := make([]models.AgentInvocationResult, 0, len(agents))
	for _, agent := range agents {
		results = append(results, p.Invoker.Invoke(ctx, agentRequest(req, agent, nil)))
	}

	avg, _ := averageQuality(results)
	return &models.PipelineResponse{
		RequestID:  req.RequestID,
		Action:     req.Action,
		UserID:     req.UserID,
		Tier:       req.Tier,
		Results:    results,
		AgentsUsed: agentIDs(results),
		CostAnalysis: models.CostAnalysis{
			MeasuredAgentCost: measuredCost(results),
			EstimatedRevenue:  p.Catalog.PriceFor(req.Action),
			TargetMargin:      p.Catalog.TargetMargin,
		},
		PerformanceMetrics: models.PerformanceMetrics{
			WallTimeMs:     p.now().Sub(start).Milliseconds(),
			AverageQuality: avg,
		},
		Fallback:  true,
		CreatedAt: p.now().UTC(),
	}
}

// defaultFallbackBudget bounds the fallback when no agent timeout is set.
const defaultFallbackBudget = 30 * time.Second

// fallbackContext keeps the request's values but not its cancellation, so a
// fallback after an expired deadline still gets one agent timeout to run.
func (p *Pipeline) fallbackContext(ctx context.Context) (context.Context, context.CancelFunc) {
	budget := p.Config.AgentTimeout
	if budget <= 0 {
		budget = defaultFallbackBudget
	}
	return context.WithTimeout(context.WithoutCancel(ctx), budget)
}

func (p *Pipeline) safeFallback(ctx context.Context, req models.OrchestrationRequest) (resp *models.PipelineResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("fallback panic: %v", r)
		}
	}()
	return p.Fallback(ctx, req), nil
}
