package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tickerchat/tickerchat/internal/llm"
	"github.com/tickerchat/tickerchat/internal/store"
)

func TestChatOutOfScopeShortCircuits(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{reply: "should never be called"}
	a := &Agent{Store: st, Model: model, RowLimit: 100}
	session := NewSession("s1")

	reply := a.Chat(context.Background(), session, "what's the weather")
	if reply.InScope {
		t.Fatal("weather question should be out of scope")
	}
	if !strings.Contains(reply.Text, "doesn't appear to be related to stock data") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if model.calls != 0 {
		t.Fatalf("model calls = %d, want 0", model.calls)
	}
	if st.executeCalls != 0 || st.schemaCalls != 0 {
		t.Fatalf("store calls = %d/%d, want 0/0", st.executeCalls, st.schemaCalls)
	}
	if session.Len() != 0 {
		t.Fatalf("session length = %d, want 0 (rejected turns are not recorded)", session.Len())
	}
}

func TestChatInScopeKeywordProceeds(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{reply: "No query needed here."}
	a := &Agent{Store: st, Model: model, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "show me top stocks by volume")
	if !reply.InScope {
		t.Fatal("stock question should be in scope")
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d, want 1", model.calls)
	}
}

func TestChatMissingStoreReturnsNotReady(t *testing.T) {
	st := &fakeStore{exists: false, path: "stock_data.db"}
	model := &fakeModel{}
	a := &Agent{Store: st, Model: model, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "show me stocks")
	if !reply.InScope {
		t.Fatal("missing store reply should stay in scope")
	}
	if !strings.Contains(reply.Text, "Database file 'stock_data.db' not found") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if model.calls != 0 {
		t.Fatalf("model calls = %d, want 0", model.calls)
	}
}

func TestChatExecutesEmbeddedQueryEndToEnd(t *testing.T) {
	st := &fakeStore{
		exists: true,
		result: store.Result{
			Columns:  []string{"ticker"},
			Rows:     [][]any{{"AAPL"}, {"MSFT"}},
			RowCount: 2,
		},
	}
	model := &fakeModel{reply: "SQL_QUERY: SELECT ticker FROM stocks LIMIT 2\nHere are two tickers"}
	recorder := &fakeRecorder{}
	a := &Agent{Store: st, Model: model, Recorder: recorder, RowLimit: 100}
	session := NewSession("s1")

	reply := a.Chat(context.Background(), session, "show me two stock tickers")
	if reply.SQL != "SELECT ticker FROM stocks LIMIT 2" {
		t.Fatalf("extracted SQL = %q", reply.SQL)
	}
	if st.lastSQL != "SELECT ticker FROM stocks LIMIT 2" {
		t.Fatalf("executed SQL = %q", st.lastSQL)
	}
	if st.lastLimit != 100 {
		t.Fatalf("row limit = %d", st.lastLimit)
	}
	if reply.RowCount != 2 {
		t.Fatalf("RowCount = %d", reply.RowCount)
	}
	if !strings.Contains(reply.Text, "Here are two tickers") {
		t.Fatalf("reply lost the explanation: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "Query Results (2 rows):") {
		t.Fatalf("reply lost the table: %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "AAPL") || !strings.Contains(reply.Text, "MSFT") {
		t.Fatalf("reply missing rendered rows: %q", reply.Text)
	}
	if session.Len() != 2 {
		t.Fatalf("session length = %d, want 2", session.Len())
	}
	if len(recorder.audits) != 1 || recorder.audits[0].RowCount != 2 {
		t.Fatalf("audits = %+v", recorder.audits)
	}
}

func TestChatBlocksUnsafeEmbeddedQuery(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{reply: "SQL_QUERY: DROP TABLE stocks\nCleaning up for you"}
	a := &Agent{Store: st, Model: model, RowLimit: 100}
	session := NewSession("s1")

	reply := a.Chat(context.Background(), session, "drop the stocks table")
	if !reply.Blocked {
		t.Fatal("destructive query should be blocked")
	}
	if st.executeCalls != 0 {
		t.Fatalf("executor ran a blocked query (%d calls)", st.executeCalls)
	}
	if !strings.Contains(reply.Text, "Error executing query: Dangerous operation detected") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if session.Len() != 2 {
		t.Fatalf("blocked turn should still be recorded, session length = %d", session.Len())
	}
}

func TestChatExecutionErrorFoldedIntoReply(t *testing.T) {
	st := &fakeStore{exists: true, executeErr: errors.New("no such table: bonds")}
	model := &fakeModel{reply: "SQL_QUERY: SELECT * FROM bonds\nBond data coming up"}
	a := &Agent{Store: st, Model: model, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "show bond prices on the stock market")
	if !strings.Contains(reply.Text, "Error executing query:") || !strings.Contains(reply.Text, "no such table") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if !reply.InScope {
		t.Fatal("execution faults must not flip the scope flag")
	}
}

func TestChatZeroRowsRendered(t *testing.T) {
	st := &fakeStore{exists: true, result: store.Result{Columns: []string{"ticker"}}}
	model := &fakeModel{reply: "SQL_QUERY: SELECT ticker FROM stocks WHERE price > 100000\nUnlikely"}
	a := &Agent{Store: st, Model: model, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "any stocks above 100000?")
	if !strings.Contains(reply.Text, "Query returned 0 rows.") {
		t.Fatalf("reply = %q", reply.Text)
	}
}

func TestChatModelFaultIsRecordedAndApologetic(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{err: errors.New("quota exceeded")}
	recorder := &fakeRecorder{}
	a := &Agent{Store: st, Model: model, Recorder: recorder, RowLimit: 100}
	session := NewSession("s1")

	reply := a.Chat(context.Background(), session, "show me stocks")
	if !reply.InScope {
		t.Fatal("model faults keep in_scope=true")
	}
	if !strings.Contains(reply.Text, "I encountered an error: ") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if session.Len() != 2 {
		t.Fatalf("failed turn should still be recorded, session length = %d", session.Len())
	}
	if len(recorder.audits) != 1 || recorder.audits[0].ModelError == "" {
		t.Fatalf("audits = %+v", recorder.audits)
	}
}

func TestChatProseReplyWithoutSentinel(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{reply: "The market was mixed today."}
	a := &Agent{Store: st, Model: model, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "how did the market do?")
	if reply.Text != "The market was mixed today." {
		t.Fatalf("reply = %q", reply.Text)
	}
	if reply.SQL != "" || st.executeCalls != 0 {
		t.Fatal("prose reply must not trigger execution")
	}
}

func TestChatRecorderFailureDoesNotSurface(t *testing.T) {
	st := &fakeStore{exists: true}
	model := &fakeModel{reply: "All quiet on the market."}
	recorder := &fakeRecorder{err: errors.New("history db down")}
	a := &Agent{Store: st, Model: model, Recorder: recorder, RowLimit: 100}

	reply := a.Chat(context.Background(), NewSession("s1"), "market news?")
	if strings.Contains(reply.Text, "history db down") {
		t.Fatalf("audit failure leaked into reply: %q", reply.Text)
	}
}

func TestChatWithoutModelConfigured(t *testing.T) {
	a := &Agent{Store: &fakeStore{exists: true}, RowLimit: 100}
	reply := a.Chat(context.Background(), NewSession("s1"), "show me stocks")
	if !strings.Contains(reply.Text, "model API key not configured") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if !reply.InScope {
		t.Fatal("configuration errors stay in scope")
	}
}

func TestExtractQuery(t *testing.T) {
	cases := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"marker with prose", "SQL_QUERY: SELECT ticker FROM stocks LIMIT 2\nHere are two tickers", "SELECT ticker FROM stocks LIMIT 2", true},
		{"marker mid-reply", "Sure.\nSQL_QUERY: SELECT 1\nDone", "SELECT 1", true},
		{"marker at end without newline", "SQL_QUERY: SELECT 1", "SELECT 1", true},
		{"no marker", "Just prose, nothing to run.", "", false},
		{"empty after marker", "SQL_QUERY:\nnothing", "", false},
	}
	for _, tc := range cases {
		got, ok := extractQuery(tc.reply)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: extractQuery() = (%q, %v), want (%q, %v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestSessionWindowKeepsLastFivePairs(t *testing.T) {
	session := NewSession("s1")
	for i := 0; i < 7; i++ {
		session.Append(RoleUser, "question")
		session.Append(RoleAssistant, "answer")
	}

	window := session.Window(5)
	if len(window) != 10 {
		t.Fatalf("window length = %d, want 10", len(window))
	}
	if window[0].Role != RoleUser || window[len(window)-1].Role != RoleAssistant {
		t.Fatalf("window boundaries = %q/%q", window[0].Role, window[len(window)-1].Role)
	}
	if session.Len() != 14 {
		t.Fatalf("full log length = %d, want 14", session.Len())
	}
}

func TestSessionTurnsReturnsCopy(t *testing.T) {
	session := NewSession("s1")
	session.Append(RoleUser, "hello stocks")
	turns := session.Turns()
	turns[0].Content = "mutated"
	if session.Turns()[0].Content != "hello stocks" {
		t.Fatal("Turns() must return a copy")
	}
}

type fakeStore struct {
	exists       bool
	path         string
	result       store.Result
	executeErr   error
	schemaErr    error
	lastSQL      string
	lastLimit    int
	executeCalls int
	schemaCalls  int
}

func (f *fakeStore) Execute(_ context.Context, sqlText string, rowLimit int) (store.Result, error) {
	f.executeCalls++
	f.lastSQL = sqlText
	f.lastLimit = rowLimit
	if f.executeErr != nil {
		return store.Result{}, f.executeErr
	}
	return f.result, nil
}

func (f *fakeStore) Schema(context.Context) (store.Snapshot, error) {
	f.schemaCalls++
	if f.schemaErr != nil {
		return store.Snapshot{}, f.schemaErr
	}
	return store.Snapshot{Tables: []store.TableSchema{{
		Name: "stocks",
		Columns: []store.ColumnSchema{
			{Name: "ticker", Type: "TEXT"},
			{Name: "price", Type: "REAL"},
			{Name: "volume", Type: "INTEGER"},
		},
	}}}, nil
}

func (f *fakeStore) Exists() bool {
	return f.exists
}

func (f *fakeStore) Path() string {
	if f.path == "" {
		return "stock_data.db"
	}
	return f.path
}

type fakeModel struct {
	reply    string
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeModel) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.calls++
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeRecorder struct {
	audits []TurnAudit
	err    error
}

func (f *fakeRecorder) RecordTurn(_ context.Context, audit TurnAudit) error {
	if f.err != nil {
		return f.err
	}
	f.audits = append(f.audits, audit)
	return nil
}
