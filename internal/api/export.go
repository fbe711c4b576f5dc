package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tickerchat/tickerchat/internal/export"
	"github.com/tickerchat/tickerchat/internal/observability"
	"github.com/tickerchat/tickerchat/internal/safety"
	"github.com/tickerchat/tickerchat/internal/store"
)

type exportRequest struct {
	SQL string `json:"sql"`
	Key string `json:"key"`
}

type exportResponse struct {
	ObjectKey string `json:"object_key"`
	Rows      int64  `json:"rows"`
	Bytes     int64  `json:"bytes"`
	ETag      string `json:"etag,omitempty"`
}

func handleExport(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Export == nil || deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "EXPORT_NOT_CONFIGURED", "export dependencies are not configured", false, nil)
		return
	}

	var request exportRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid export request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if strings.TrimSpace(request.Key) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "KEY_REQUIRED", "key is required", false, nil)
		return
	}

	verdict := safety.Classify(request.SQL)
	if !verdict.Allowed {
		observability.IncrementQueryBlocked(verdict.Code)
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", verdict.Reason, false, nil)
		return
	}

	result, err := deps.Store.Execute(r.Context(), request.SQL, deps.RowLimit)
	if err != nil {
		if errors.Is(err, store.ErrStoreMissing) {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_NOT_READY", "database file is not present yet", true, map[string]any{"path": deps.Store.Path()})
			return
		}
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	encoded, err := export.Encode(result)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_ENCODE_FAILED", "failed to encode result", true, map[string]any{"details": err.Error()})
		return
	}

	info, err := deps.Export.Upload(r.Context(), request.Key, encoded)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "EXPORT_UPLOAD_FAILED", "failed to upload export object", true, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, exportResponse{
		ObjectKey: info.Key,
		Rows:      encoded.RecordCount,
		Bytes:     info.Size,
		ETag:      info.ETag,
	})
}
