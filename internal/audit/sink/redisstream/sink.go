// Package redisstream persists audit batches to a Redis stream. Each event
// becomes one XADD entry, so consumers can tail the trail with consumer
// groups and Redis persistence provides durability.
package redisstream

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"mediglot/internal/audit"
)

const DefaultStream = "mediglot:audit"

type Sink struct {
	client *redis.Client
	stream string
}

// Option configures the Sink.
type Option func(*Sink)

// WithStream overrides the stream key.
func WithStream(stream string) Option {
	return func(s *Sink) {
		if stream != "" {
			s.stream = stream
		}
	}
}

func New(client *redis.Client, opts ...Option) *Sink {
	s := &Sink{client: client, stream: DefaultStream}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver appends the batch to the stream inside one pipeline so a partial
// network failure surfaces as a delivery error and the whole batch is
// retried by the audit log.
func (s *Sink) Deliver(ctx context.Context, batch []audit.Event) error {
	pipe := s.client.TxPipeline()
	for _, e := range batch {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: s.stream,
			Values: map[string]any{
				"event_type": string(e.Type),
				"action":     e.Action,
				"user_hash":  e.UserHash,
				"timestamp":  strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
				"success":    strconv.FormatBool(e.Success),
				"ip_address": e.IPAddress,
				"details":    e.Details,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append audit batch to stream %s: %w", s.stream, err)
	}
	return nil
}
