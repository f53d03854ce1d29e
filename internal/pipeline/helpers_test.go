package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/internal/ledger"
	"github.com/vortexartec/gencore/internal/sinks"
	"github.com/vortexartec/gencore/pkg/contracts"
	"github.com/vortexartec/gencore/pkg/models"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// stubInvoker answers per agent id; unknown agents succeed with quality 0.9.
type stubInvoker struct {
	mu      sync.Mutex
	calls   []string
	answers map[string]models.AgentInvocationResult
	panics  bool
}

func (s *stubInvoker) Invoke(ctx context.Context, req contracts.AgentRequest) models.AgentInvocationResult {
	s.mu.Lock()
	s.calls = append(s.calls, req.AgentID)
	s.mu.Unlock()
	if s.panics {
		panic("gateway exploded")
	}
	if err := ctx.Err(); err != nil {
		return models.AgentInvocationResult{AgentID: req.AgentID, Error: err.Error()}
	}
	if r, ok := s.answers[req.AgentID]; ok {
		r.AgentID = req.AgentID
		return r
	}
	return models.AgentInvocationResult{AgentID: req.AgentID, Content: req.AgentID + ": " + req.Query, Quality: 0.9, Cost: 0.01}
}

type failingDispatcher struct {
	panics bool
}

func (f failingDispatcher) Dispatch(context.Context, DispatchRequest) ([]models.AgentInvocationResult, error) {
	if f.panics {
		panic("dispatch exploded")
	}
	return nil, errors.New("dispatch unavailable")
}

// stallingDispatcher blocks until the pipeline deadline expires.
type stallingDispatcher struct{}

func (stallingDispatcher) Dispatch(ctx context.Context, _ DispatchRequest) ([]models.AgentInvocationResult, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingContext struct{}

func (failingContext) Fetch(context.Context, models.Action, []string, string) (*models.PipelineContext, error) {
	return nil, errors.New("redis down")
}

type failingMemory struct{}

func (failingMemory) Put(context.Context, string, string, []byte) error { return errors.New("db down") }
func (failingMemory) Get(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("db down")
}

type recordingBroker struct {
	mu     sync.Mutex
	topics []string
	queues []string
	err    error
}

func (b *recordingBroker) Publish(_ context.Context, topic string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	return b.err
}

func (b *recordingBroker) Enqueue(_ context.Context, queue string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues = append(b.queues, queue)
	return nil
}

type recordingArchive struct {
	keys   []string
	bodies [][]byte
}

func (a *recordingArchive) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, body)
	return "mem://" + key, nil
}

type recordingMarketplace struct {
	synced []string
}

func (m *recordingMarketplace) Sync(_ context.Context, resp *models.PipelineResponse) error {
	m.synced = append(m.synced, resp.RequestID)
	return nil
}

type fixture struct {
	pipeline    *Pipeline
	invoker     *stubInvoker
	broker      *recordingBroker
	archive     *recordingArchive
	primary     *sinks.MapMemoryStore
	secondary   *sinks.MapMemoryStore
	audit       *sinks.MemoryAuditLog
	marketplace *recordingMarketplace
	ledger      *ledger.Ledger
	logs        *bytes.Buffer
}

func newFixture(t *testing.T, mutate func(*Deps)) *fixture {
	t.Helper()
	cat := config.DefaultCatalog()
	logs := &bytes.Buffer{}
	lg := zerolog.New(logs)

	f := &fixture{
		invoker:     &stubInvoker{answers: map[string]models.AgentInvocationResult{}},
		broker:      &recordingBroker{},
		archive:     &recordingArchive{},
		primary:     sinks.NewMapMemoryStore(),
		secondary:   sinks.NewMapMemoryStore(),
		audit:       &sinks.MemoryAuditLog{},
		marketplace: &recordingMarketplace{},
		ledger:      ledger.New(cat.StepCosts, cat.TargetMargin, cat.CriticalMargin, ledger.WithLogger(lg), ledger.WithClock(fixedClock)),
		logs:        logs,
	}
	deps := Deps{
		Catalog: cat,
		Config:  config.PipelineConfig{DispatchConcurrency: 4, DefaultCostCeiling: 0.075},
		Topics:  Topics{Completed: "generation.completed", Queue: "generation.queue"},
		Invoker: f.invoker,
		Context: NewStaticContextSource(models.AlgorithmBundle{Name: GenericBundle}),
		Ledger:  f.ledger,

		PrimaryMemory:   f.primary,
		SecondaryMemory: f.secondary,
		Publisher:       f.broker,
		Queue:           f.broker,
		Archive:         f.archive,
		Marketplace:     f.marketplace,
		Audit:           f.audit,
	}
	if mutate != nil {
		mutate(&deps)
	}
	p, err := New(deps, WithLogger(lg), WithClock(fixedClock))
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func (f *fixture) errorLogs() int {
	return strings.Count(f.logs.String(), `"level":"error"`)
}

func generateRequest() models.OrchestrationRequest {
	return models.OrchestrationRequest{
		RequestID: "req-1",
		Action:    models.ActionGenerate,
		UserID:    "42",
		Tier:      "essential",
		Params:    models.GenerateParams{Prompt: "a lighthouse at dusk"},
		StartedAt: testNow,
	}
}
