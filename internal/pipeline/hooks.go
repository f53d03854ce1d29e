package pipeline

import (
	"context"

	"github.com/vortexartec/gencore/internal/sinks"
	"github.com/vortexartec/gencore/pkg/models"
)

// postPipeline runs the best-effort hooks that follow a successful stage 7.
func (p *Pipeline) postPipeline(ctx context.Context, req models.OrchestrationRequest, resp *models.PipelineResponse) {
	if p.Catalog.SyncsMarketplace(req.Action) {
		_ = sinks.BestEffort(ctx, p.log, "marketplace", func(ctx context.Context) error {
			return p.Marketplace.Sync(ctx, resp)
		})
	}
	if p.Catalog.Audits(req.Action) {
		_ = sinks.BestEffort(ctx, p.log, "audit", func(ctx context.Context) error {
			return p.Audit.Record(ctx, sinks.AuditEntry{
				RequestID: resp.RequestID,
				UserID:    resp.UserID,
				Tier:      resp.Tier,
				Action:    resp.Action,
				Agents:    resp.AgentsUsed,
				TotalCost: resp.CostAnalysis.TotalCost,
				Fallback:  resp.Fallback,
				At:        resp.CreatedAt,
			})
		})
	}

	if h, ok := p.Context.(HistoryRecorder); ok {
		_ = sinks.BestEffort(ctx, p.log, "history", func(ctx context.Context) error {
			return h.AppendHistory(ctx, req.UserID, map[string]interface{}{
				"request_id": resp.RequestID,
				"action":     string(resp.Action),
				"agents":     resp.AgentsUsed,
				"quality":    resp.PerformanceMetrics.AverageQuality,
			})
		})
	}

	// The feedback record joined the buffer in stage 6; here it only feeds
	// the learning-state store.
	if _, ok := averageQuality(resp.Results); !ok || p.Learning == nil || !resp.ContinuousLearning.Enabled {
		return
	}
	rec := models.FeedbackRecord{
		UserID:    req.UserID,
		Action:    req.Action,
		Quality:   resp.PerformanceMetrics.AverageQuality,
		Cost:      resp.CostAnalysis.MeasuredAgentCost,
		Timestamp: p.now().UTC(),
	}
	_ = sinks.BestEffort(ctx, p.log, "learning_state", func(ctx context.Context) error {
		return p.Learning.Push(ctx, rec)
	})
}
