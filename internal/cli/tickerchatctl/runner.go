// Package tickerchatctl is the HTTP command line client for the tickerchat
// API, plus a local setup check.
package tickerchatctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tickerchat/tickerchat/internal/config"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Lookup     config.LookupFunc
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("tickerchatctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "TickerChat API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 10s)")
	session := fs.String("session", "cli", "Chat session ID")
	rowLimit := fs.Int("row-limit", 0, "Row limit for query (0 uses the server default)")
	limit := fs.Int("limit", 0, "Max audited turns to list (0 uses the server default)")
	key := fs.String("key", "", "Object key for export")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	method := ""
	path := ""
	var payload any

	switch command {
	case "health":
		method, path = http.MethodGet, "/v1/health"
	case "ready":
		method, path = http.MethodGet, "/v1/ready"
	case "schema":
		method, path = http.MethodGet, "/v1/schema"
		if fs.NArg() > 1 {
			path = "/v1/schema/" + strings.TrimSpace(fs.Arg(1))
		}
	case "stats":
		method, path = http.MethodGet, "/v1/stats"
	case "history":
		method, path = http.MethodGet, "/v1/history"
		if *limit > 0 {
			path = fmt.Sprintf("/v1/history?limit=%d", *limit)
		}
	case "session-history":
		method, path = http.MethodGet, "/v1/sessions/"+strings.TrimSpace(*session)+"/history"
	case "chat":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "chat requires a message argument")
			return 2
		}
		method, path = http.MethodPost, "/v1/chat"
		payload = map[string]any{
			"session_id": strings.TrimSpace(*session),
			"message":    strings.Join(fs.Args()[1:], " "),
		}
	case "query":
		if fs.NArg() < 2 {
			_, _ = fmt.Fprintln(stderr, "query requires a sql argument")
			return 2
		}
		method, path = http.MethodPost, "/v1/query"
		payload = map[string]any{"sql": fs.Arg(1), "row_limit": *rowLimit}
	case "export":
		if fs.NArg() < 2 || strings.TrimSpace(*key) == "" {
			_, _ = fmt.Fprintln(stderr, "export requires a sql argument and -key")
			return 2
		}
		method, path = http.MethodPost, "/v1/export"
		payload = map[string]any{"sql": fs.Arg(1), "key": strings.TrimSpace(*key)}
	case "doctor":
		return runDoctor(ctx, client, *baseURL, *apiKey, defaults.Lookup, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}

	endpoint := strings.TrimRight(*baseURL, "/") + path
	code, responseBody, err := doRequest(ctx, client, method, endpoint, *apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

// runDoctor checks the local setup first, then probes the API. Each check
// prints one line; a failing check flips the exit code but the remaining
// checks still run.
func runDoctor(ctx context.Context, client *http.Client, baseURL, apiKey string, lookup config.LookupFunc, stdout, stderr io.Writer) int {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	ok := true
	report := func(name string, err error) {
		if err != nil {
			ok = false
			_, _ = fmt.Fprintf(stdout, "fail  %s: %v\n", name, err)
			return
		}
		_, _ = fmt.Fprintf(stdout, "ok    %s\n", name)
	}

	cfg, err := config.Load("tickerchatctl", lookup)
	report("config loads", err)

	if err == nil {
		if _, statErr := os.Stat(cfg.Store.Path); statErr != nil {
			report("store file exists", fmt.Errorf("%s: %w", cfg.Store.Path, statErr))
		} else {
			report("store file exists", nil)
		}

		if cfg.AI.APIKey == "" {
			report("model api key configured", fmt.Errorf("TICKERCHAT_AI_API_KEY is not set"))
		} else {
			report("model api key configured", nil)
		}
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/v1/ready"
	code, body, reqErr := doRequest(ctx, client, http.MethodGet, endpoint, apiKey, nil)
	switch {
	case reqErr != nil:
		report("api ready", reqErr)
	case code >= 400:
		report("api ready", fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body))))
	default:
		report("api ready", nil)
	}

	if !ok {
		_, _ = fmt.Fprintln(stderr, "doctor found problems")
		return 1
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: tickerchatctl [flags] <command> [args]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health                  GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                   GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema [table]          GET /v1/schema or /v1/schema/{table}")
	_, _ = fmt.Fprintln(w, "  stats                   GET /v1/stats")
	_, _ = fmt.Fprintln(w, "  chat <message>          POST /v1/chat (use -session to pick a session)")
	_, _ = fmt.Fprintln(w, "  session-history         GET /v1/sessions/{session}/history")
	_, _ = fmt.Fprintln(w, "  query <sql>             POST /v1/query (use -row-limit to cap rows)")
	_, _ = fmt.Fprintln(w, "  history                 GET /v1/history (use -limit to cap turns)")
	_, _ = fmt.Fprintln(w, "  export <sql> -key <k>   POST /v1/export")
	_, _ = fmt.Fprintln(w, "  doctor                  check local setup and API readiness")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
