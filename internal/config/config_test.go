package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("tickerchat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Store.Path != "stock_data.db" {
		t.Fatalf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.RowLimit != 100 {
		t.Fatalf("Store.RowLimit = %d", cfg.Store.RowLimit)
	}
	if cfg.Store.SchemaSampleRows != 5 {
		t.Fatalf("Store.SchemaSampleRows = %d", cfg.Store.SchemaSampleRows)
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.7 {
		t.Fatalf("AI.Temperature = %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 2048 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.History.DSN != "" {
		t.Fatalf("History.DSN = %q, want empty (audit disabled)", cfg.History.DSN)
	}
	if cfg.Export.Enabled {
		t.Fatal("Export.Enabled should default to false")
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	lookup := mapLookup(map[string]string{"TICKERCHAT_PROFILE": "prod"})
	cfg, err := Load("tickerchat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Export.UseSSL {
		t.Fatal("Export.UseSSL should default to true in prod")
	}
	if cfg.Export.AutoCreateBucket {
		t.Fatal("Export.AutoCreateBucket should default to false in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"TICKERCHAT_PROFILE":          "test",
		"TICKERCHAT_HTTP_ADDR":        ":9090",
		"TICKERCHAT_STORE_PATH":       "/data/market.duckdb",
		"TICKERCHAT_STORE_ROW_LIMIT":  "250",
		"TICKERCHAT_AI_MODEL":         "gpt-4o-mini",
		"TICKERCHAT_AI_TIMEOUT":       "5s",
		"TICKERCHAT_HISTORY_DSN":      "postgres://localhost/tickerchat",
		"TICKERCHAT_EXPORT_ENABLED":   "true",
		"TICKERCHAT_LOG_LEVEL":        "error",
		"TICKERCHAT_AUTH_REQUIRED":    "true",
		"TICKERCHAT_AUTH_STATIC_KEYS": "k1:alice:chat_user",
	})
	cfg, err := Load("tickerchat-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Store.Path != "/data/market.duckdb" {
		t.Fatalf("Store.Path = %q", cfg.Store.Path)
	}
	if cfg.Store.RowLimit != 250 {
		t.Fatalf("Store.RowLimit = %d", cfg.Store.RowLimit)
	}
	if cfg.AI.Model != "gpt-4o-mini" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Timeout != 5*time.Second {
		t.Fatalf("AI.Timeout = %v", cfg.AI.Timeout)
	}
	if cfg.History.DSN != "postgres://localhost/tickerchat" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if !cfg.Export.Enabled {
		t.Fatal("Export.Enabled should be overridden to true")
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should be overridden to true")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"profile":   {"TICKERCHAT_PROFILE": "staging"},
		"row limit": {"TICKERCHAT_STORE_ROW_LIMIT": "many"},
		"timeout":   {"TICKERCHAT_AI_TIMEOUT": "soon"},
		"log level": {"TICKERCHAT_LOG_LEVEL": "loud"},
		"bool":      {"TICKERCHAT_AUTH_REQUIRED": "yep"},
	}
	for name, env := range cases {
		if _, err := Load("tickerchat-api", mapLookup(env)); err == nil {
			t.Fatalf("Load() with invalid %s should fail", name)
		}
	}
}

func TestLoadRejectsEmptyStorePath(t *testing.T) {
	lookup := mapLookup(map[string]string{"TICKERCHAT_STORE_PATH": "  "})
	if _, err := Load("tickerchat-api", lookup); err == nil {
		t.Fatal("Load() with empty store path should fail")
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
