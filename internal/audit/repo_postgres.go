package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Schema creates the insert-only audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS operator_audit_events (
	id          UUID PRIMARY KEY,
	type        TEXT NOT NULL,
	action      TEXT NOT NULL,
	call_sid    TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	message     TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS operator_audit_events_call_sid_idx ON operator_audit_events (call_sid);
`

// PostgresRepo stores events in Postgres through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("audit: db is nil")
	}
	return &PostgresRepo{db: db}, nil
}

// EnsureSchema creates the table if it does not exist.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("audit: ensure schema: %w", err)
	}
	return nil
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `INSERT INTO operator_audit_events
		(id, type, action, call_sid, outcome, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Type),
		e.Action,
		e.CallSID,
		string(e.Outcome),
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: append event: %w", err)
	}
	return nil
}

// ListByCall returns the trail of one call, oldest first.
func (r *PostgresRepo) ListByCall(ctx context.Context, callSID string) ([]Event, error) {
	const q = `SELECT id, type, action, call_sid, outcome, message, metadata, created_at
		FROM operator_audit_events WHERE call_sid = $1 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, callSID)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			typ     string
			outcome string
			created time.Time
		)
		if err := rows.Scan(&e.ID, &typ, &e.Action, &e.CallSID, &outcome, &e.Message, &e.Metadata, &created); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Type = EventType(typ)
		e.Outcome = Outcome(outcome)
		e.CreatedAt = created
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	return out, nil
}
