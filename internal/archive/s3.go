package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// putObjectAPI is the slice of *s3.Client the archiver needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store archives records to one S3 bucket.
type S3Store struct {
	client putObjectAPI
	bucket string
}

// NewS3Store creates an S3 archiver. A non-empty endpoint targets an
// S3-compatible service (MinIO, LocalStack) with path-style addressing.
func NewS3Store(awsCfg aws.Config, bucket, endpoint string) *S3Store {
	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Store{client: s3.NewFromConfig(awsCfg, opts...), bucket: bucket}
}

func newS3StoreWithClient(client putObjectAPI, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

func (s *S3Store) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("archive/s3: put %s: %w", key, err)
	}

	url := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	log.Debug().Str("url", url).Int("bytes", len(body)).Msg("Archived record to S3")
	return url, nil
}
