package history

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tickerchat/tickerchat/internal/agent"
)

func TestRecordTurn(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`
INSERT INTO chat_turn (session_id, utterance, reply, sql_text, row_count, in_scope, blocked, block_reason, model_error)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)).
		WithArgs("s1", "show me stocks", "here you go", "SELECT ticker FROM stocks LIMIT 100", 3, true, false, "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.RecordTurn(context.Background(), agent.TurnAudit{
		SessionID: "s1",
		Utterance: "show me stocks",
		Reply:     "here you go",
		SQL:       "SELECT ticker FROM stocks LIMIT 100",
		RowCount:  3,
		InScope:   true,
	})
	if err != nil {
		t.Fatalf("RecordTurn() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordTurnPropagatesError(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec("INSERT INTO chat_turn").
		WillReturnError(errors.New("connection refused"))

	err := repo.RecordTurn(context.Background(), agent.TurnAudit{SessionID: "s1"})
	if err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)
}

func TestListRecent(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
SELECT turn_id, session_id, utterance, reply, sql_text, row_count, in_scope, blocked, block_reason, model_error, created_at
FROM chat_turn
ORDER BY turn_id DESC
LIMIT $1`)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows([]string{
			"turn_id", "session_id", "utterance", "reply", "sql_text", "row_count", "in_scope", "blocked", "block_reason", "model_error", "created_at",
		}).
			AddRow(int64(8), "s1", "show me stocks", "reply-2", "SELECT 1", 1, true, false, "", "", now).
			AddRow(int64(7), "s1", "drop the table", "reply-1", "DROP TABLE stocks", 0, true, true, "Dangerous operation detected", "", now.Add(-time.Minute)))

	records, err := repo.ListRecent(context.Background(), 2)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	if records[0].TurnID != 8 || records[0].RowCount != 1 {
		t.Fatalf("records[0] = %#v", records[0])
	}
	if !records[1].Blocked || records[1].BlockReason == "" {
		t.Fatalf("records[1] = %#v", records[1])
	}
	assertSQLMock(t, mock)
}

func TestListRecentDefaultsLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectQuery("SELECT turn_id").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows([]string{
			"turn_id", "session_id", "utterance", "reply", "sql_text", "row_count", "in_scope", "blocked", "block_reason", "model_error", "created_at",
		}))

	records, err := repo.ListRecent(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("record count = %d, want 0", len(records))
	}
	assertSQLMock(t, mock)
}

func TestBootstrapCreatesTable(t *testing.T) {
	db, mock := newSQLMock(t)
	repo := NewRepository(db)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS chat_turn").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Bootstrap(context.Background()); err != nil {
		t.Fatalf("Bootstrap() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
