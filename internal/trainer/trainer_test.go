package trainer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vortexartec/gencore/internal/config"
	"github.com/vortexartec/gencore/pkg/models"
)

const defaultRule = "avg_quality < 0.8 || buffer_len >= buffer_size"

func rec(q float64) models.FeedbackRecord {
	return models.FeedbackRecord{UserID: "42", Action: models.ActionGenerate, Quality: q, Cost: 0.01, Timestamp: time.Now()}
}

func trainerConfig(size int) config.TrainerConfig {
	return config.TrainerConfig{
		Enabled:       true,
		JobName:       "gencore-retrain",
		JobQueue:      "retrain-queue",
		JobDefinition: "retrain:1",
		BufferSize:    size,
		Rule:          defaultRule,
	}
}

type fakeSubmitter struct {
	calls  int
	params map[string]string
	err    error
}

func (f *fakeSubmitter) Submit(_ context.Context, _, _, _ string, params map[string]string) (string, error) {
	f.calls++
	f.params = params
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

// ── Buffer ───────────────────────────────────────────────────

func TestBuffer_DrainRestore(t *testing.T) {
	b := NewBuffer()
	assert.Equal(t, 1, b.Append(rec(0.9)))
	assert.Equal(t, 2, b.Append(rec(0.7)))
	assert.InDelta(t, 0.8, b.AverageQuality(), 1e-9)

	drained := b.Drain()
	require.Len(t, drained, 2)
	assert.Zero(t, b.Len())

	b.Append(rec(0.5))
	b.Restore(drained)
	all := b.Drain()
	require.Len(t, all, 3)
	assert.Equal(t, 0.9, all[0].Quality)
	assert.Equal(t, 0.5, all[2].Quality)
}

// ── Rule ─────────────────────────────────────────────────────

func TestRule(t *testing.T) {
	r, err := CompileRule(defaultRule)
	require.NoError(t, err)

	fire, err := r.Eval(RuleEnv{AvgQuality: 0.9, BufferLen: 3, BufferSize: 100})
	require.NoError(t, err)
	assert.False(t, fire)

	fire, err = r.Eval(RuleEnv{AvgQuality: 0.7, BufferLen: 3, BufferSize: 100})
	require.NoError(t, err)
	assert.True(t, fire)

	fire, err = r.Eval(RuleEnv{AvgQuality: 0.95, BufferLen: 100, BufferSize: 100})
	require.NoError(t, err)
	assert.True(t, fire)

	_, err = CompileRule("unknown_var > 1")
	assert.Error(t, err)
	_, err = CompileRule("buffer_len + 1")
	assert.Error(t, err, "non-boolean rules are rejected")
}

// ── Trigger ──────────────────────────────────────────────────

func TestTrigger_NotFired(t *testing.T) {
	b := NewBuffer()
	b.Append(rec(0.95))
	sub := &fakeSubmitter{}
	tr, err := New(trainerConfig(100), b, sub)
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.95)
	require.NoError(t, err)
	assert.False(t, out.Triggered)
	assert.Equal(t, 1, out.BufferSize)
	assert.Zero(t, sub.calls)
}

func TestTrigger_FiresAndDrains(t *testing.T) {
	b := NewBuffer()
	b.Append(rec(0.6))
	b.Append(rec(0.7))
	sub := &fakeSubmitter{}
	tr, err := New(trainerConfig(100), b, sub, WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.7)
	require.NoError(t, err)
	assert.True(t, out.Triggered)
	assert.Equal(t, "job-1", out.JobID)
	assert.Zero(t, out.BufferSize)
	assert.Equal(t, "2", sub.params["records"])
	assert.Equal(t, "0.6500", sub.params["avg_quality"])
}

func TestTrigger_FailureRestores(t *testing.T) {
	b := NewBuffer()
	b.Append(rec(0.5))
	sub := &fakeSubmitter{err: errors.New("queue disabled")}
	tr, err := New(trainerConfig(100), b, sub)
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.5)
	require.Error(t, err)
	assert.False(t, out.Triggered)
	assert.Equal(t, 1, out.BufferSize)
	assert.Equal(t, 1, b.Len())
}

func TestTrigger_Disabled(t *testing.T) {
	cfg := trainerConfig(1)
	cfg.Enabled = false
	b := NewBuffer()
	b.Append(rec(0.1))
	sub := &fakeSubmitter{}
	tr, err := New(cfg, b, sub)
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.1)
	require.NoError(t, err)
	assert.False(t, out.Triggered)
	assert.Zero(t, sub.calls)
}

func TestTrigger_BufferFull(t *testing.T) {
	b := NewBuffer()
	b.Append(rec(0.9))
	b.Append(rec(0.95))
	sub := &fakeSubmitter{}
	tr, err := New(trainerConfig(2), b, sub)
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.99)
	require.NoError(t, err)
	assert.True(t, out.Triggered)
	assert.Equal(t, 1, sub.calls)
}

func TestTrigger_EmptyBufferSkips(t *testing.T) {
	sub := &fakeSubmitter{}
	tr, err := New(trainerConfig(100), NewBuffer(), sub)
	require.NoError(t, err)

	out, err := tr.Evaluate(context.Background(), 0.1)
	require.NoError(t, err)
	assert.False(t, out.Triggered)
	assert.Zero(t, sub.calls)
}

func TestNew_BadRule(t *testing.T) {
	cfg := trainerConfig(10)
	cfg.Rule = "avg_quality <"
	_, err := New(cfg, NewBuffer(), &fakeSubmitter{})
	assert.Error(t, err)
}

// ── Submitters ───────────────────────────────────────────────

type fakeBatch struct {
	in *batch.SubmitJobInput
}

func (f *fakeBatch) SubmitJob(_ context.Context, in *batch.SubmitJobInput, _ ...func(*batch.Options)) (*batch.SubmitJobOutput, error) {
	f.in = in
	return &batch.SubmitJobOutput{JobId: aws.String("aws-job-9"), JobName: in.JobName}, nil
}

func TestAWSBatchSubmitter(t *testing.T) {
	fake := &fakeBatch{}
	s := &AWSBatchSubmitter{client: fake}

	id, err := s.Submit(context.Background(), "gencore-retrain", "q", "def:1", map[string]string{"records": "3"})
	require.NoError(t, err)
	assert.Equal(t, "aws-job-9", id)
	assert.Equal(t, "q", aws.ToString(fake.in.JobQueue))
	assert.Equal(t, "def:1", aws.ToString(fake.in.JobDefinition))
	assert.Equal(t, "3", fake.in.Parameters["records"])
}

func TestLogSubmitter(t *testing.T) {
	var buf bytes.Buffer
	s := &LogSubmitter{Log: zerolog.New(&buf)}
	id, err := s.Submit(context.Background(), "job", "q", "def", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Contains(t, buf.String(), id)
}

// ── Learning state ───────────────────────────────────────────

func TestRedisLearningState_Capped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := NewRedisLearningState(client, "gencore:", 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Push(ctx, rec(float64(i)/10)))
	}
	recent, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 0.5, recent[0].Quality)
	assert.Equal(t, 0.3, recent[2].Quality)
}

func TestMemoryLearningState_Ring(t *testing.T) {
	s := NewMemoryLearningState(3)
	ctx := context.Background()

	recent, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)

	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Push(ctx, rec(float64(i)/10)))
	}
	recent, err = s.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 0.4, recent[0].Quality)
	assert.Equal(t, 0.2, recent[2].Quality)

	recent, err = s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 0.4, recent[0].Quality)
}
