// Package postgres persists audit batches to an append-only table. The
// table has no UPDATE or DELETE path in this codebase, which is what makes
// the trail tamper-resistant at the application layer.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mediglot/internal/audit"
)

type Sink struct {
	db *sql.DB
}

func New(db *sql.DB) *Sink {
	return &Sink{db: db}
}

const insertEvent = `
INSERT INTO audit_events (id, event_type, action, user_hash, occurred_at, success, ip_address, details)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// Deliver writes the whole batch in a single transaction so a mid-batch
// failure rolls back cleanly and the audit log can retry the full batch
// without duplicating rows.
func (s *Sink) Deliver(ctx context.Context, batch []audit.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit batch tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, insertEvent)
	if err != nil {
		return fmt.Errorf("prepare audit insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range batch {
		userHash := sql.NullString{String: e.UserHash, Valid: e.UserHash != ""}
		ipAddress := sql.NullString{String: e.IPAddress, Valid: e.IPAddress != ""}
		if _, err := stmt.ExecContext(ctx,
			uuid.New(), string(e.Type), e.Action, userHash, e.Timestamp, e.Success, ipAddress, e.Details,
		); err != nil {
			return fmt.Errorf("insert audit event %s: %w", e.Action, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit batch: %w", err)
	}
	return nil
}
