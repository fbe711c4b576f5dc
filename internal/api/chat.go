package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tickerchat/tickerchat/internal/agent"
)

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	agent.Reply
}

func handleChat(deps Dependencies, sessions *sessionRegistry, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "CHAT_NOT_CONFIGURED", "chat dependencies are not configured", false, nil)
		return
	}

	var request chatRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid chat request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SessionID) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SESSION_ID_REQUIRED", "session_id is required", false, nil)
		return
	}
	if strings.TrimSpace(request.Message) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "MESSAGE_REQUIRED", "message is required", false, nil)
		return
	}

	entry := sessions.acquire(request.SessionID)
	entry.mu.Lock()
	reply := deps.Agent.Chat(r.Context(), entry.session, request.Message)
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, chatResponse{SessionID: request.SessionID, Reply: reply})
}

type sessionHistoryResponse struct {
	SessionID string       `json:"session_id"`
	Turns     []agent.Turn `json:"turns"`
}

func handleSessionHistory(sessions *sessionRegistry, w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session")
	entry, ok := sessions.lookup(sessionID)
	if !ok {
		writeError(r.Context(), w, http.StatusNotFound, "SESSION_NOT_FOUND", "session was not found", false, map[string]any{"session_id": sessionID})
		return
	}

	entry.mu.Lock()
	turns := entry.session.Turns()
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, sessionHistoryResponse{SessionID: sessionID, Turns: turns})
}
