package pipeline

import (
	"context"
	"encoding/json"

	"github.com/vortexartec/gencore/internal/archive"
	"github.com/vortexartec/gencore/internal/ledger"
	"github.com/vortexartec/gencore/internal/sinks"
	"github.com/vortexartec/gencore/pkg/models"
)

// ── 1. Context fetch ─────────────────────────────────────────

func (p *Pipeline) fetchContext(ctx context.Context, r *run) error {
	pc, err := p.Context.Fetch(ctx, r.req.Action, r.agents, r.req.UserID)
	if err != nil || pc == nil {
		p.log.Warn().Err(err).
			Str("request_id", r.req.RequestID).
			Msg("Context fetch failed, continuing with an empty bundle")
		pc = &models.PipelineContext{
			Bundle:   models.AlgorithmBundle{Name: GenericBundle},
			Degraded: true,
		}
	}
	if pc.Bundle.CostCeiling <= 0 {
		pc.Bundle.CostCeiling = p.Config.DefaultCostCeiling
	}
	r.pctx = pc
	return nil
}

// ── 2. Agent dispatch ────────────────────────────────────────

func (p *Pipeline) dispatch(ctx context.Context, r *run) error {
	results, err := p.Dispatcher.Dispatch(ctx, DispatchRequest{Request: r.req, Agents: r.agents, Context: r.pctx})
	if err != nil {
		return err
	}
	r.results = results
	r.measured = measuredCost(results)

	if ceiling := r.pctx.Bundle.CostCeiling; ceiling > 0 && r.measured > ceiling {
		r.results, r.pruned = Prune(results, KeepOnPrune)
		p.log.Info().
			Str("request_id", r.req.RequestID).
			Float64("measured_cost", r.measured).
			Float64("cost_ceiling", ceiling).
			Strs("pruned", r.pruned).
			Msg("Agent cost above ceiling, pruned to most efficient")
	}
	return nil
}

// ── 3. Memory persistence ────────────────────────────────────

type memoryRecord struct {
	RequestID      string        `json:"request_id"`
	Action         models.Action `json:"action"`
	Query          string        `json:"query,omitempty"`
	Agents         []string      `json:"agents"`
	AverageQuality float64       `json:"average_quality"`
	MeasuredCost   float64       `json:"measured_cost"`
	Failed         int           `json:"failed_agents"`
	At             string        `json:"at"`
}

func (p *Pipeline) persistMemory(ctx context.Context, r *run) error {
	avg, _ := averageQuality(r.results)
	rec := memoryRecord{
		RequestID:      r.req.RequestID,
		Action:         r.req.Action,
		Agents:         agentIDs(r.results),
		AverageQuality: avg,
		MeasuredCost:   measuredCost(r.results),
		At:             p.now().UTC().Format("2006-01-02T15:04:05Z"),
	}
	if r.req.Params != nil {
		rec.Query = r.req.Params.Query()
	}
	for _, res := range r.results {
		if res.Failed() {
			rec.Failed++
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		p.log.Warn().Err(err).Msg("Memory record encode failed")
		return nil
	}

	err = sinks.BestEffort(ctx, p.log, "memory_primary", func(ctx context.Context) error {
		return p.PrimaryMemory.Put(ctx, "user:"+r.req.UserID, r.req.RequestID, data)
	})
	if err == nil {
		return nil
	}
	err = sinks.BestEffort(ctx, p.log, "memory_secondary", func(ctx context.Context) error {
		return p.SecondaryMemory.Put(ctx, GenericBundle, r.req.UserID+":"+r.req.RequestID, data)
	})
	if err != nil {
		p.log.Warn().Str("request_id", r.req.RequestID).Msg("Memory persistence failed on both stores")
	}
	return nil
}

// ── 4. Event emission ────────────────────────────────────────

type completedEvent struct {
	RequestID string        `json:"request_id"`
	Action    models.Action `json:"action"`
	UserID    string        `json:"user_id"`
	Tier      string        `json:"tier"`
	Agents    []string      `json:"agents"`
	Pruned    []string      `json:"pruned_agents,omitempty"`
	At        int64         `json:"at"`
}

func (p *Pipeline) emitEvents(ctx context.Context, r *run) error {
	data, err := json.Marshal(completedEvent{
		RequestID: r.req.RequestID,
		Action:    r.req.Action,
		UserID:    r.req.UserID,
		Tier:      r.req.Tier,
		Agents:    agentIDs(r.results),
		Pruned:    r.pruned,
		At:        p.now().Unix(),
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("Event encode failed")
		return nil
	}
	_ = sinks.BestEffort(ctx, p.log, "publish", func(ctx context.Context) error {
		return p.Publisher.Publish(ctx, p.Topics.Completed, data)
	})
	_ = sinks.BestEffort(ctx, p.log, "enqueue", func(ctx context.Context) error {
		return p.Queue.Enqueue(ctx, p.Topics.Queue, data)
	})
	return nil
}

// ── 5. Archival write ────────────────────────────────────────

type archiveRecord struct {
	Request models.OrchestrationRequest    `json:"request"`
	Context *models.PipelineContext        `json:"context"`
	Results []models.AgentInvocationResult `json:"results"`
	Pruned  []string                       `json:"pruned_agents,omitempty"`
	Costs   []models.CostLedgerEntry       `json:"ledger"`
}

func (p *Pipeline) writeArchive(ctx context.Context, r *run) error {
	if p.Archive == nil {
		return nil
	}
	data, err := json.Marshal(archiveRecord{
		Request: r.req,
		Context: r.pctx,
		Results: r.results,
		Pruned:  r.pruned,
		Costs:   r.session.Entries(),
	})
	if err != nil {
		p.log.Warn().Err(err).Msg("Archive record encode failed")
		return nil
	}
	key := archive.Key(r.req.Action, r.req.UserID, p.now())
	_ = sinks.BestEffort(ctx, p.log, "archive", func(ctx context.Context) error {
		_, err := p.Archive.Put(ctx, key, data, archive.ContentType)
		return err
	})
	return nil
}

// ── 6. Training trigger ──────────────────────────────────────

func (p *Pipeline) triggerTraining(ctx context.Context, r *run) error {
	if p.Trainer == nil || !p.Trainer.Enabled() {
		return nil
	}
	r.learning.Enabled = true
	buffer := p.Trainer.Buffer()
	avg, ok := averageQuality(r.results)
	if ok {
		buffer.Append(models.FeedbackRecord{
			UserID:    r.req.UserID,
			Action:    r.req.Action,
			Quality:   avg,
			Cost:      measuredCost(r.results),
			Timestamp: p.now().UTC(),
		})
	} else {
		// No agent succeeded; the rule still sees the buffered backlog.
		avg = buffer.AverageQuality()
	}

	var out struct {
		triggered bool
		jobID     string
		size      int
	}
	_ = sinks.BestEffort(ctx, p.log, "training_trigger", func(ctx context.Context) error {
		o, err := p.Trainer.Evaluate(ctx, avg)
		out.triggered, out.jobID, out.size = o.Triggered, o.JobID, o.BufferSize
		return err
	})
	r.learning.BatchTriggered = out.triggered
	r.learning.JobID = out.jobID
	r.learning.FeedbackBufferSize = out.size
	return nil
}

// ── 7. Response assembly ─────────────────────────────────────

func (p *Pipeline) assemble(_ context.Context, r *run) error {
	revenue := p.Catalog.PriceFor(r.req.Action)
	total := p.Catalog.DeclaredTotal()
	target := p.Catalog.TargetMargin

	var margin float64
	if revenue > 0 {
		margin = (revenue - total) / revenue
	}
	stageCosts := make(map[string]float64, len(p.Catalog.StepCosts))
	for s, c := range p.Catalog.StepCosts {
		stageCosts[string(s)] = c
	}

	avg, _ := averageQuality(r.results)
	efficiency := make(map[string]float64, len(r.results))
	for _, res := range r.results {
		if !res.Failed() {
			efficiency[res.AgentID] = res.Efficiency()
		}
	}

	r.resp = &models.PipelineResponse{
		RequestID:    r.req.RequestID,
		Action:       r.req.Action,
		UserID:       r.req.UserID,
		Tier:         r.req.Tier,
		Results:      r.results,
		AgentsUsed:   agentIDs(r.results),
		PrunedAgents: r.pruned,
		CostAnalysis: models.CostAnalysis{
			TotalCost:               total,
			MeasuredAgentCost:       measuredCost(r.results),
			EstimatedRevenue:        revenue,
			ProfitMargin:            margin,
			TargetMargin:            target,
			MarginHealthy:           revenue > 0 && margin >= target,
			StageCosts:              stageCosts,
			OptimizationSuggestions: ledger.Suggest(p.Catalog.StepCosts, revenue, target),
		},
		PerformanceMetrics: models.PerformanceMetrics{
			AverageQuality:  avg,
			AgentEfficiency: efficiency,
		},
		ContinuousLearning: r.learning,
		CreatedAt:          p.now().UTC(),
	}
	return nil
}

func agentIDs(results []models.AgentInvocationResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.AgentID
	}
	return ids
}
