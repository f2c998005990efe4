package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"BriefScanner/internal/config"
	"BriefScanner/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.AIConfig{APIKey: "test-key-123456", BaseURL: server.URL + "/v1"},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompleteSendsMessages(t *testing.T) {
	t.Parallel()

	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Temperature float32 `json:"temperature"`
		TopP        float32 `json:"top_p"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key-123456" {
			t.Errorf("unexpected authorization header")
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"A short summary."},"finish_reason":"stop"}]}`))
	})

	got, err := client.Complete(context.Background(), ports.CompletionRequest{
		Model:       "glm-4-flash",
		System:      "system",
		User:        "user",
		Temperature: 0.1,
		TopP:        0.7,
	})
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if got != "A short summary." {
		t.Fatalf("unexpected completion: %q", got)
	}
	if body.Model != "glm-4-flash" || len(body.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", body)
	}
	if body.Messages[0].Role != "system" || body.Messages[1].Role != "user" {
		t.Fatalf("unexpected roles: %+v", body.Messages)
	}
	if body.Temperature != 0.1 || body.TopP != 0.7 {
		t.Fatalf("unexpected sampling: %v %v", body.Temperature, body.TopP)
	}
}

func TestCompleteClassifiesFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   ports.FailureClass
	}{
		{http.StatusUnauthorized, ports.FailureAuth},
		{http.StatusTooManyRequests, ports.FailureRateLimit},
		{http.StatusServiceUnavailable, ports.FailureNetwork},
		{http.StatusBadRequest, ports.FailureOther},
	}
	for _, tt := range tests {
		status := tt.status
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"failure","type":"error","code":"x"}}`))
		})
		_, err := client.Complete(context.Background(), ports.CompletionRequest{Model: "m", System: "s", User: "u"})
		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if got := ports.ClassOf(err); got != tt.want {
			t.Errorf("status %d: class = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestUsable(t *testing.T) {
	t.Parallel()

	if Usable(config.AIConfig{APIKey: "short"}) {
		t.Fatalf("short keys must be rejected")
	}
	if Usable(config.AIConfig{APIKey: "your_api_key"}) {
		t.Fatalf("placeholder keys must be rejected")
	}
	if !Usable(config.AIConfig{APIKey: "sk-0123456789"}) {
		t.Fatalf("expected key to be usable")
	}
}
