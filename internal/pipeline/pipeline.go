// Package pipeline runs the seven-stage orchestration for an admitted
// request: context fetch, concurrent agent dispatch, memory persistence,
// event emission, archival, training trigger and response assembly.
//
// Stages run in strict order inside one failure boundary. A stage that
// returns an error or panics hands the request to the fallback
// orchestration, which dispatches the default agents sequentially without
// cost tracking. Side-effect stages are best-effort and never fail the
// request.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/internal/ledger"
	"github.com/vortexartec/gencore/internal/notify"
	"github.com/vortexartec/gencore/internal/sinks"
	"github.com/vortexartec/gencore/internal/telemetry"
	"github.com/vortexartec/gencore/internal/trainer"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

// ErrOrchestrationFailed is returned when both the pipeline and the
// fallback fail.
var ErrOrchestrationFailed = errors.New("orchestration failed")

// Topics names the broker destinations of stage 4.
type Topics struct {
	Completed string
	Queue     string
}

// Deps are the pipeline collaborators. Invoker, Context and Ledger are
// required; nil sinks are replaced by log-only or in-memory stand-ins.
type Deps struct {
	Catalog  config.Catalog
	Config   config.PipelineConfig
	Topics   Topics
	Invoker  Invoker
	Context  ContextSource
	Ledger   *ledger.Ledger
	Trainer  *trainer.Trigger
	Learning trainer.LearningState

	// Dispatcher defaults to a GatewayDispatcher over Invoker.
	Dispatcher Dispatcher

	PrimaryMemory   contracts.MemoryStore
	SecondaryMemory contracts.MemoryStore
	Publisher       contracts.Publisher
	Queue           contracts.Queue
	Archive         contracts.ObjectStore
	Marketplace     notify.MarketplaceSync
	Audit           sinks.AuditLog
}

// Pipeline orchestrates admitted requests.
type Pipeline struct {
	Deps
	log zerolog.Logger
	now func() time.Time
}

type Option func(*Pipeline)

func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New validates deps and fills defaults.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	if deps.Invoker == nil {
		return nil, fmt.Errorf("pipeline: invoker is required")
	}
	if deps.Context == nil {
		return nil, fmt.Errorf("pipeline: context source is required")
	}
	if deps.Ledger == nil {
		return nil, fmt.Errorf("pipeline: ledger is required")
	}
	p := &Pipeline{Deps: deps, log: log.Logger, now: time.Now}
	for _, o := range opts {
		o(p)
	}

	if p.Dispatcher == nil {
		p.Dispatcher = NewGatewayDispatcher(p.Invoker, p.Config.DispatchConcurrency)
	}
	sink := &sinks.LogSink{Log: p.log}
	if p.PrimaryMemory == nil {
		p.PrimaryMemory = sinks.NewMapMemoryStore()
	}
	if p.SecondaryMemory == nil {
		p.SecondaryMemory = sinks.NewMapMemoryStore()
	}
	if p.Publisher == nil {
		p.Publisher = sink
	}
	if p.Queue == nil {
		p.Queue = sink
	}
	if p.Marketplace == nil {
		p.Marketplace = notify.NopMarketplace{}
	}
	if p.Audit == nil {
		p.Audit = &sinks.LogAuditLog{Log: p.log}
	}
	return p, nil
}

// run carries per-request state between stages.
type run struct {
	req      models.OrchestrationRequest
	start    time.Time
	session  *ledger.Session
	timings  map[string]int64
	agents   []string
	pctx     *models.PipelineContext
	results  []models.AgentInvocationResult
	pruned   []string
	measured float64
	learning models.ContinuousLearning
	resp     *models.PipelineResponse
}

// Orchestrate runs the pipeline for req. It returns an error only when the
// fallback also fails.
func (p *Pipeline) Orchestrate(ctx context.Context, req models.OrchestrationRequest) (*models.PipelineResponse, error) {
	if p.Config.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Config.Deadline)
		defer cancel()
	}
	if req.StartedAt.IsZero() {
		req.StartedAt = p.now()
	}

	ctx, span := telemetry.Tracer().Start(ctx, "pipeline.orchestrate",
		trace.WithAttributes(
			attribute.String("gencore.request_id", req.RequestID),
			attribute.String("gencore.action", string(req.Action)),
			attribute.String("gencore.tier", req.Tier),
		),
	)
	defer span.End()

	resp, err := p.guarded(ctx, req)
	if err == nil {
		p.postPipeline(ctx, req, resp)
		return resp, nil
	}

	span.RecordError(err)
	span.SetAttributes(attribute.Bool("gencore.fallback", true))
	telemetry.Fallbacks.Inc()
	p.log.Error().
		Err(err).
		Str("request_id", req.RequestID).
		Str("action", string(req.Action)).
		Str("user_id", req.UserID).
		Msg("Orchestration failed, serving fallback")

	fctx, cancel := p.fallbackContext(ctx)
	defer cancel()
	resp, ferr := p.safeFallback(fctx, req)
	if ferr != nil {
		span.SetStatus(codes.Error, ferr.Error())
		return nil, fmt.Errorf("%w: %v", ErrOrchestrationFailed, ferr)
	}
	return resp, nil
}

// guarded runs stages 1-7, converting panics into errors.
func (p *Pipeline) guarded(ctx context.Context, req models.OrchestrationRequest) (resp *models.PipelineResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()

	r := &run{
		req:     req,
		start:   p.now(),
		session: p.Ledger.Begin(p.Catalog.PriceFor(req.Action)),
		timings: make(map[string]int64, len(models.AllStages())),
		agents:  req.Agents,
	}
	if len(r.agents) == 0 {
		r.agents = p.Catalog.AgentsFor(req.Action)
	}

	steps := []struct {
		stage models.Stage
		fn    func(context.Context, *run) error
	}{
		{models.StageContextFetch, p.fetchContext},
		{models.StageAgentDispatch, p.dispatch},
		{models.StageMemoryPersistence, p.persistMemory},
		{models.StageEventEmission, p.emitEvents},
		{models.StageArchivalWrite, p.writeArchive},
		{models.StageTrainingTrigger, p.triggerTraining},
		{models.StageResponseAssembly, p.assemble},
	}
	for _, s := range steps {
		if err := p.stage(ctx, r, s.stage, s.fn); err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.stage, err)
		}
	}

	r.resp.PerformanceMetrics.StageTimingsMs = r.timings
	r.resp.PerformanceMetrics.WallTimeMs = p.now().Sub(r.start).Milliseconds()
	return r.resp, nil
}

// stage times fn, books its declared cost and wraps it in a span.
func (p *Pipeline) stage(ctx context.Context, r *run, s models.Stage, fn func(context.Context, *run) error) error {
	ctx, span := telemetry.Tracer().Start(ctx, "stage."+string(s))
	defer span.End()

	t0 := p.now()
	err := fn(ctx, r)
	d := p.now().Sub(t0)

	r.timings[string(s)] = d.Milliseconds()
	telemetry.StageDuration.WithLabelValues(string(s)).Observe(d.Seconds())
	r.session.Track(ctx, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
