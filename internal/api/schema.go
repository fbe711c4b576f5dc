package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tickerchat/tickerchat/internal/store"
)

func handleSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "store is not configured", false, nil)
		return
	}

	snapshot, err := deps.Store.Schema(r.Context())
	if err != nil {
		writeStoreError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func handleTableSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "store is not configured", false, nil)
		return
	}

	table := r.PathValue("table")
	schema, err := deps.Store.TableSchema(r.Context(), table)
	if err != nil {
		if errors.Is(err, store.ErrStoreMissing) {
			writeStoreError(deps, w, r, err)
			return
		}
		if strings.Contains(err.Error(), "not found") {
			writeError(r.Context(), w, http.StatusNotFound, "TABLE_NOT_FOUND", "table was not found", false, map[string]any{"table": table})
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "failed to describe table", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func handleStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STATS_NOT_CONFIGURED", "store is not configured", false, nil)
		return
	}

	counts, err := deps.Store.Stats(r.Context())
	if err != nil {
		writeStoreError(deps, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tables": counts})
}

func writeStoreError(deps Dependencies, w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrStoreMissing) {
		writeError(r.Context(), w, http.StatusServiceUnavailable, "STORE_NOT_READY", "database file is not present yet", true, map[string]any{"path": deps.Store.Path()})
		return
	}
	writeError(r.Context(), w, http.StatusInternalServerError, "STORE_ERROR", "failed to read store", true, map[string]any{"details": err.Error()})
}
