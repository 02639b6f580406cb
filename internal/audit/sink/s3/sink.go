// Package s3 archives audit batches as gzip-compressed JSONL objects, one
// object per flush. Object keys are time-prefixed so lifecycle rules and
// range scans by day work without an index.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"mediglot/internal/audit"
)

const DefaultPrefix = "audit"

type putObjectAPI interface {
	PutObject(ctx context.Context, in *awss3.PutObjectInput, opts ...func(*awss3.Options)) (*awss3.PutObjectOutput, error)
}

type Sink struct {
	client putObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// Option configures the Sink.
type Option func(*Sink)

// WithPrefix overrides the object key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Sink) {
		if now != nil {
			s.now = now
		}
	}
}

// New dials AWS with the default credential chain and returns a sink writing
// to the given bucket.
func New(ctx context.Context, bucket, region string, opts ...Option) (*Sink, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	s := &Sink{
		client: awss3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: DefaultPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Deliver encodes the batch as gzip+JSONL and uploads it as one object. The
// upload either fully succeeds or the audit log retries the batch, and the
// uuid suffix keeps a retried upload from colliding with a partial earlier
// attempt.
func (s *Sink) Deliver(ctx context.Context, batch []audit.Event) error {
	body, err := encodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode audit batch: %w", err)
	}

	key := s.objectKey()
	_, err = s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("upload audit batch %s: %w", key, err)
	}
	return nil
}

// objectKey builds a key like audit/2026/08/31/20260831T120000Z-<uuid>.jsonl.gz.
func (s *Sink) objectKey() string {
	now := s.now().UTC()
	return fmt.Sprintf("%s/%s/%s-%s.jsonl.gz",
		s.prefix,
		now.Format("2006/01/02"),
		now.Format("20060102T150405Z"),
		uuid.NewString(),
	)
}
