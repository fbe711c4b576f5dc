// Package api exposes the chat pipeline, the direct query endpoint, schema
// introspection, the turn audit log, and parquet exports over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tickerchat/tickerchat/internal/agent"
	"github.com/tickerchat/tickerchat/internal/config"
	"github.com/tickerchat/tickerchat/internal/export"
	"github.com/tickerchat/tickerchat/internal/history"
	"github.com/tickerchat/tickerchat/internal/observability"
	"github.com/tickerchat/tickerchat/internal/store"
)

type ReadinessCheck func(ctx context.Context) error

// QueryStore is the slice of the store the HTTP surface needs.
type QueryStore interface {
	Execute(ctx context.Context, sqlText string, rowLimit int) (store.Result, error)
	Schema(ctx context.Context) (store.Snapshot, error)
	TableSchema(ctx context.Context, table string) (store.TableSchema, error)
	Stats(ctx context.Context) ([]store.TableCount, error)
	Exists() bool
	Path() string
}

type ChatAgent interface {
	Chat(ctx context.Context, session *agent.Session, utterance string) agent.Reply
}

type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]history.Record, error)
}

type ExportStore interface {
	Upload(ctx context.Context, key string, encoded export.EncodeResult) (export.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Store             QueryStore
	Agent             ChatAgent
	Audit             AuditReader
	Export            ExportStore
	RowLimit          int
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	sessions := newSessionRegistry()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/chat", func(w http.ResponseWriter, r *http.Request) {
		handleChat(deps, sessions, w, r)
	})
	protected.HandleFunc("GET /v1/sessions/{session}/history", func(w http.ResponseWriter, r *http.Request) {
		handleSessionHistory(sessions, w, r)
	})
	protected.HandleFunc("POST /v1/query", func(w http.ResponseWriter, r *http.Request) {
		handleQuery(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema", func(w http.ResponseWriter, r *http.Request) {
		handleSchema(deps, w, r)
	})
	protected.HandleFunc("GET /v1/schema/{table}", func(w http.ResponseWriter, r *http.Request) {
		handleTableSchema(deps, w, r)
	})
	protected.HandleFunc("GET /v1/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(deps, w, r)
	})
	protected.HandleFunc("GET /v1/history", func(w http.ResponseWriter, r *http.Request) {
		handleAuditHistory(deps, w, r)
	})
	protected.HandleFunc("POST /v1/export", func(w http.ResponseWriter, r *http.Request) {
		handleExport(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /v1/chat", protectedHandler)
	mux.Handle("GET /v1/sessions/{session}/history", protectedHandler)
	mux.Handle("POST /v1/query", protectedHandler)
	mux.Handle("GET /v1/schema", protectedHandler)
	mux.Handle("GET /v1/schema/{table}", protectedHandler)
	mux.Handle("GET /v1/stats", protectedHandler)
	mux.Handle("GET /v1/history", protectedHandler)
	mux.Handle("POST /v1/export", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

// CheckStoreFile reports not-ready while the database file is absent.
func CheckStoreFile(st QueryStore) ReadinessCheck {
	return func(_ context.Context) error {
		if st == nil {
			return errors.New("store is not configured")
		}
		if !st.Exists() {
			return errors.New("store file is not present yet")
		}
		return nil
	}
}

func CheckModelConfigured(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.AI.APIKey == "" {
			return errors.New("model api key is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// sessionRegistry keys live sessions by ID and serializes turns per session.
type sessionRegistry struct {
	mu      sync.Mutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *agent.Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{entries: make(map[string]*sessionEntry)}
}

func (r *sessionRegistry) acquire(id string) *sessionEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		entry = &sessionEntry{session: agent.NewSession(id)}
		r.entries[id] = entry
	}
	return entry
}

func (r *sessionRegistry) lookup(id string) (*sessionEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	return entry, ok
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
