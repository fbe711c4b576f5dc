// Package agent orchestrates one chat turn: scope gate, prompt construction,
// model call, sentinel extraction, safety gate, query execution, rendering,
// and session bookkeeping. Every failure along the way degrades to a
// user-visible message; nothing in this pipeline is fatal to the process.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tickerchat/tickerchat/internal/llm"
	"github.com/tickerchat/tickerchat/internal/observability"
	"github.com/tickerchat/tickerchat/internal/safety"
	"github.com/tickerchat/tickerchat/internal/store"
)

// DataStore is the slice of the store the agent needs per turn.
type DataStore interface {
	Execute(ctx context.Context, sqlText string, rowLimit int) (store.Result, error)
	Schema(ctx context.Context) (store.Snapshot, error)
	Exists() bool
	Path() string
}

// TurnAudit is the record of one completed chat turn.
type TurnAudit struct {
	SessionID   string
	Utterance   string
	Reply       string
	SQL         string
	RowCount    int
	InScope     bool
	Blocked     bool
	BlockReason string
	ModelError  string
}

// AuditRecorder persists turn audits. Recording is best-effort: a failing
// recorder is logged and never surfaces to the user.
type AuditRecorder interface {
	RecordTurn(ctx context.Context, audit TurnAudit) error
}

// Reply is the outcome of one chat turn.
type Reply struct {
	Text        string `json:"reply"`
	InScope     bool   `json:"in_scope"`
	SQL         string `json:"sql,omitempty"`
	RowCount    int    `json:"row_count"`
	Blocked     bool   `json:"blocked,omitempty"`
	BlockReason string `json:"block_reason,omitempty"`
}

type Agent struct {
	Store    DataStore
	Model    llm.Client
	Recorder AuditRecorder
	Logger   *slog.Logger
	RowLimit int
}

// Chat handles one utterance against one session. The returned reply is
// always usable; errors from the model or the store are folded into its text.
func (a *Agent) Chat(ctx context.Context, session *Session, utterance string) Reply {
	if a.Model == nil {
		return Reply{Text: "Error: model API key not configured. Please set TICKERCHAT_AI_API_KEY.", InScope: true}
	}

	scoped := inScope(utterance)
	observability.ObserveChatTurn(scoped)
	if !scoped {
		a.logWarn(ctx, "out-of-scope utterance rejected", slog.String("session", session.ID()))
		return Reply{Text: scopeWarning, InScope: false}
	}

	if !a.Store.Exists() {
		return Reply{
			Text:    fmt.Sprintf("Error: Database file '%s' not found. Please wait for stock data to be loaded.", a.Store.Path()),
			InScope: true,
		}
	}

	snapshot, err := a.Store.Schema(ctx)
	if err != nil {
		return a.recordFailure(ctx, session, utterance, err)
	}

	messages := buildMessages(snapshot.RenderText(), session.Window(windowPairs), utterance)

	modelStart := time.Now()
	replyText, err := a.Model.Complete(ctx, messages)
	observability.ObserveModelCall(time.Since(modelStart), err)
	if err != nil {
		a.logWarn(ctx, "model call failed", slog.String("session", session.ID()), slog.Any("error", err))
		return a.recordFailure(ctx, session, utterance, err)
	}

	reply := Reply{Text: replyText, InScope: true}
	if sqlText, ok := extractQuery(replyText); ok {
		reply = a.runEmbeddedQuery(ctx, reply, sqlText)
	}

	session.Append(RoleUser, utterance)
	session.Append(RoleAssistant, reply.Text)
	a.recordAudit(ctx, TurnAudit{
		SessionID:   session.ID(),
		Utterance:   utterance,
		Reply:       reply.Text,
		SQL:         reply.SQL,
		RowCount:    reply.RowCount,
		InScope:     true,
		Blocked:     reply.Blocked,
		BlockReason: reply.BlockReason,
	})
	return reply
}

func (a *Agent) runEmbeddedQuery(ctx context.Context, reply Reply, sqlText string) Reply {
	reply.SQL = sqlText

	verdict := safety.Classify(sqlText)
	if !verdict.Allowed {
		observability.IncrementQueryBlocked(verdict.Code)
		a.logWarn(ctx, "unsafe query blocked", slog.String("sql", sqlText), slog.String("code", verdict.Code))
		reply.Blocked = true
		reply.BlockReason = verdict.Reason
		reply.Text = fmt.Sprintf("%s\n\nError executing query: %s", reply.Text, verdict.Reason)
		return reply
	}

	result, err := a.Store.Execute(ctx, sqlText, a.RowLimit)
	if err != nil {
		reply.Text = fmt.Sprintf("%s\n\nError executing query: %v", reply.Text, err)
		return reply
	}

	observability.ObserveQuery(result.RowCount, result.Duration)
	reply.RowCount = result.RowCount
	reply.Text = fmt.Sprintf("%s\n\n%s", reply.Text, renderResult(result))
	return reply
}

// recordFailure converts a model or schema fault into the fixed apologetic
// message and still records the turn so the session log stays in sync.
func (a *Agent) recordFailure(ctx context.Context, session *Session, utterance string, cause error) Reply {
	text := fmt.Sprintf("I encountered an error: %v. Please try again or check your query.", cause)
	session.Append(RoleUser, utterance)
	session.Append(RoleAssistant, text)
	a.recordAudit(ctx, TurnAudit{
		SessionID:  session.ID(),
		Utterance:  utterance,
		Reply:      text,
		InScope:    true,
		ModelError: cause.Error(),
	})
	return Reply{Text: text, InScope: true}
}

func (a *Agent) recordAudit(ctx context.Context, audit TurnAudit) {
	if a.Recorder == nil {
		return
	}
	if err := a.Recorder.RecordTurn(ctx, audit); err != nil {
		a.logWarn(ctx, "turn audit failed", slog.Any("error", err))
	}
}

func (a *Agent) logWarn(ctx context.Context, msg string, attrs ...any) {
	if a.Logger != nil {
		a.Logger.WarnContext(ctx, msg, attrs...)
	}
}

// extractQuery scans a model reply for the sentinel marker and returns the
// text between the marker and the next line break.
func extractQuery(replyText string) (string, bool) {
	idx := strings.Index(replyText, Sentinel)
	if idx < 0 {
		return "", false
	}
	rest := replyText[idx+len(Sentinel):]
	if newline := strings.IndexByte(rest, '\n'); newline >= 0 {
		rest = rest[:newline]
	}
	sqlText := strings.TrimSpace(rest)
	if sqlText == "" {
		return "", false
	}
	return sqlText, true
}
