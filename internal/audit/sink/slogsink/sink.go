// Package slogsink writes audit batches to the structured logger. It is the
// default sink for development and for deployments that ship logs to durable
// storage through the log pipeline itself.
package slogsink

import (
	"context"
	"log/slog"

	"mediglot/internal/audit"
)

type Sink struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

// Deliver emits one record per event plus a batch summary. Details arrive
// already scrubbed by the audit log.
func (s *Sink) Deliver(ctx context.Context, batch []audit.Event) error {
	for _, e := range batch {
		s.logger.InfoContext(ctx, "audit event",
			"log_type", "audit",
			"event_type", string(e.Type),
			"action", e.Action,
			"success", e.Success,
			"user_hash", e.UserHash,
			"ip_address", e.IPAddress,
			"details", e.Details,
			"timestamp", e.Timestamp,
		)
	}
	s.logger.InfoContext(ctx, "audit batch flushed",
		"log_type", "audit",
		"event_count", len(batch),
	)
	return nil
}
