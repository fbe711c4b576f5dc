package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tickerchat/tickerchat/internal/agent"
)

// Record is one persisted chat turn.
type Record struct {
	TurnID      int64     `json:"turn_id"`
	SessionID   string    `json:"session_id"`
	Utterance   string    `json:"utterance"`
	Reply       string    `json:"reply"`
	SQL         string    `json:"sql,omitempty"`
	RowCount    int       `json:"row_count"`
	InScope     bool      `json:"in_scope"`
	Blocked     bool      `json:"blocked"`
	BlockReason string    `json:"block_reason,omitempty"`
	ModelError  string    `json:"model_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const bootstrapSchema = `
CREATE TABLE IF NOT EXISTS chat_turn (
    turn_id      BIGSERIAL PRIMARY KEY,
    session_id   TEXT NOT NULL,
    utterance    TEXT NOT NULL,
    reply        TEXT NOT NULL,
    sql_text     TEXT NOT NULL DEFAULT '',
    row_count    INTEGER NOT NULL DEFAULT 0,
    in_scope     BOOLEAN NOT NULL DEFAULT TRUE,
    blocked      BOOLEAN NOT NULL DEFAULT FALSE,
    block_reason TEXT NOT NULL DEFAULT '',
    model_error  TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Bootstrap creates the audit table when it does not exist yet.
func (r *Repository) Bootstrap(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, bootstrapSchema); err != nil {
		return fmt.Errorf("bootstrap chat_turn: %w", err)
	}
	return nil
}

// RecordTurn implements agent.AuditRecorder.
func (r *Repository) RecordTurn(ctx context.Context, audit agent.TurnAudit) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO chat_turn (session_id, utterance, reply, sql_text, row_count, in_scope, blocked, block_reason, model_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		audit.SessionID,
		audit.Utterance,
		audit.Reply,
		audit.SQL,
		audit.RowCount,
		audit.InScope,
		audit.Blocked,
		audit.BlockReason,
		audit.ModelError,
	)
	if err != nil {
		return fmt.Errorf("record chat turn: %w", err)
	}
	return nil
}

// ListRecent returns the newest turns first, capped at limit.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT turn_id, session_id, utterance, reply, sql_text, row_count, in_scope, blocked, block_reason, model_error, created_at
FROM chat_turn
ORDER BY turn_id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat turns: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(
			&rec.TurnID,
			&rec.SessionID,
			&rec.Utterance,
			&rec.Reply,
			&rec.SQL,
			&rec.RowCount,
			&rec.InScope,
			&rec.Blocked,
			&rec.BlockReason,
			&rec.ModelError,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat turns: %w", err)
	}
	return records, nil
}

// HealthCheck pings the underlying pool.
func (r *Repository) HealthCheck(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(pingCtx)
}
