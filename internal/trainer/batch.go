package trainer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vortexartec/gencore/pkg/contracts"
)

var (
	_ contracts.BatchSubmitter = (*AWSBatchSubmitter)(nil)
	_ contracts.BatchSubmitter = (*LogSubmitter)(nil)
)

type submitJobAPI interface {
	SubmitJob(ctx context.Context, in *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
}

// AWSBatchSubmitter starts retraining jobs on AWS Batch.
type AWSBatchSubmitter struct {
	client submitJobAPI
}

func NewAWSBatchSubmitter(awsCfg aws.Config, endpoint string) *AWSBatchSubmitter {
	var opts []func(*batch.Options)
	if endpoint != "" {
		opts = append(opts, func(o *batch.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return &AWSBatchSubmitter{client: batch.NewFromConfig(awsCfg, opts...)}
}

func (s *AWSBatchSubmitter) Submit(ctx context.Context, jobName, jobQueue, jobDefinition string, params map[string]string) (string, error) {
	out, err := s.client.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       aws.String(jobName),
		JobQueue:      aws.String(jobQueue),
		JobDefinition: aws.String(jobDefinition),
		Parameters:    params,
	})
	if err != nil {
		return "", fmt.Errorf("trainer/batch: submit %s: %w", jobName, err)
	}
	return aws.ToString(out.JobId), nil
}

// LogSubmitter accepts jobs without running them.
type LogSubmitter struct {
	Log zerolog.Logger
}

func (s *LogSubmitter) Submit(_ context.Context, jobName, jobQueue, _ string, params map[string]string) (string, error) {
	id := uuid.New().String()
	s.Log.Info().
		Str("job_id", id).
		Str("job_name", jobName).
		Str("job_queue", jobQueue).
		Interface("params", params).
		Msg("🧪 Retraining job accepted (log submitter)")
	return id, nil
}
