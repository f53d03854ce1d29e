package trainer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/pkg/contracts"
)

// Outcome reports one trigger evaluation.
type Outcome struct {
	Triggered  bool
	JobID      string
	BufferSize int
}

// Trigger evaluates the rule against the buffer and submits retraining jobs.
type Trigger struct {
	cfg       config.TrainerConfig
	buffer    *Buffer
	rule      *Rule
	submitter contracts.BatchSubmitter
	log       zerolog.Logger
}

type Option func(*Trigger)

func WithLogger(l zerolog.Logger) Option {
	return func(t *Trigger) { t.log = l }
}

// New compiles cfg.Rule and returns a trigger over buffer.
func New(cfg config.TrainerConfig, buffer *Buffer, submitter contracts.BatchSubmitter, opts ...Option) (*Trigger, error) {
	rule, err := CompileRule(cfg.Rule)
	if err != nil {
		return nil, err
	}
	t := &Trigger{cfg: cfg, buffer: buffer, rule: rule, submitter: submitter, log: log.Logger}
	for _, o := range opts {
		o(t)
	}
	return t, nil
}

func (t *Trigger) Enabled() bool   { return t.cfg.Enabled }
func (t *Trigger) Buffer() *Buffer { return t.buffer }

// Evaluate checks the rule for a request of the given average quality and,
// when it holds, drains the buffer into a batch job. A failed submission
// restores the drained records.
func (t *Trigger) Evaluate(ctx context.Context, avgQuality float64) (Outcome, error) {
	if !t.cfg.Enabled {
		return Outcome{BufferSize: t.buffer.Len()}, nil
	}

	env := RuleEnv{
		AvgQuality: avgQuality,
		BufferLen:  t.buffer.Len(),
		BufferSize: t.cfg.BufferSize,
	}
	// An empty buffer has nothing to train on.
	if env.BufferLen == 0 {
		return Outcome{}, nil
	}
	fire, err := t.rule.Eval(env)
	if err != nil {
		return Outcome{BufferSize: env.BufferLen}, err
	}
	if !fire {
		return Outcome{BufferSize: env.BufferLen}, nil
	}

	drained := t.buffer.Drain()
	if len(drained) == 0 {
		return Outcome{}, nil
	}
	params := map[string]string{
		"records":     strconv.Itoa(len(drained)),
		"avg_quality": strconv.FormatFloat(averageQuality(drained), 'f', 4, 64),
		"from":        drained[0].Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
		"to":          drained[len(drained)-1].Timestamp.UTC().Format("2006-01-02T15:04:05Z"),
	}
	jobID, err := t.submitter.Submit(ctx, t.cfg.JobName, t.cfg.JobQueue, t.cfg.JobDefinition, params)
	if err != nil {
		t.buffer.Restore(drained)
		return Outcome{BufferSize: t.buffer.Len()}, fmt.Errorf("submit retraining job: %w", err)
	}

	t.log.Info().
		Str("job_id", jobID).
		Int("records", len(drained)).
		Str("avg_quality", params["avg_quality"]).
		Msg("🧪 Retraining job submitted")
	return Outcome{Triggered: true, JobID: jobID, BufferSize: t.buffer.Len()}, nil
}
