package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tickerchat/tickerchat/internal/observability"
	"github.com/tickerchat/tickerchat/internal/safety"
	"github.com/tickerchat/tickerchat/internal/store"
)

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type queryResponse struct {
	Columns  []string       `json:"columns"`
	Rows     [][]any        `json:"rows"`
	RowCount int            `json:"row_count"`
	Stats    map[string]any `json:"stats"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}

	verdict := safety.Classify(request.SQL)
	if !verdict.Allowed {
		observability.IncrementQueryBlocked(verdict.Code)
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", verdict.Reason, false, nil)
		return
	}

	rowLimit := request.RowLimit
	if rowLimit <= 0 {
		rowLimit = deps.RowLimit
	}

	result, err := deps.Store.Execute(r.Context(), request.SQL, rowLimit)
	if err != nil {
		if errors.Is(err, store.ErrStoreMissing) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_NOT_READY", "database file is not present yet", true, map[string]any{"path": deps.Store.Path()})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	observability.ObserveQuery(result.RowCount, result.Duration)
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:  result.Columns,
		Rows:     result.Rows,
		RowCount: result.RowCount,
		Stats: map[string]any{
			"duration_ms": result.Duration.Milliseconds(),
		},
	})
}
