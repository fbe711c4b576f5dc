package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompleteSendsMessagesAndParsesReply(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Fatalf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("authorization = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "SQL_QUERY: SELECT 1\nDone."}},
			},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "gpt-5", MaxTokens: 2048})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	reply, err := client.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "instructions"},
		{Role: RoleUser, Content: "show me top stocks"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if !strings.HasPrefix(reply, "SQL_QUERY:") {
		t.Fatalf("reply = %q", reply)
	}
	if captured["model"] != "gpt-5" {
		t.Fatalf("model = %v", captured["model"])
	}
	if captured["max_tokens"] != float64(2048) {
		t.Fatalf("max_tokens = %v", captured["max_tokens"])
	}
	messages, ok := captured["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("messages = %v", captured["messages"])
	}
}

func TestCompleteSurfacesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}

	_, err = client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "status=429") {
		t.Fatalf("error = %v", err)
	}
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewOpenAIClient() error = %v", err)
	}
	if _, err := client.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestNewOpenAIClientValidation(t *testing.T) {
	if _, err := NewOpenAIClient(Config{APIKey: "k"}); err == nil {
		t.Fatal("expected error for missing base URL")
	}
	if _, err := NewOpenAIClient(Config{BaseURL: "https://api.openai.com"}); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
