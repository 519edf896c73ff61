package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) *AnthropicProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewAnthropicProvider(Config{APIKey: "test-key", BaseURL: server.URL, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestAnthropicProvider_Generate(t *testing.T) {
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" || r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("Missing auth headers: %v", r.Header)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.System != "You are a provenance researcher." || req.MaxTokens != 250 {
			t.Errorf("Request not forwarded: %+v", req)
		}
		if req.Model != anthropicDefaultModel {
			t.Errorf("Expected default model, got %s", req.Model)
		}

		_ = json.NewEncoder(w).Encode(anthropicResponse{
			Model: anthropicDefaultModel,
			Content: []anthropicBlock{
				{Type: "text", Text: "Gap between 1933 and 1945."},
				{Type: "tool_use"},
				{Type: "text", Text: "See https://www.nga.gov/provenance."},
			},
			Usage: anthropicUsage{InputTokens: 50, OutputTokens: 50},
		})
	})

	resp, err := provider.Generate(context.Background(), GenerateRequest{
		System:    "You are a provenance researcher.",
		Prompt:    "Explain this record.",
		MaxTokens: 250,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if resp.Text != "Gap between 1933 and 1945.\nSee https://www.nga.gov/provenance." {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if len(resp.CitedURLs) != 1 || resp.CitedURLs[0] != "https://www.nga.gov/provenance" {
		t.Errorf("Unexpected cited URLs: %v", resp.CitedURLs)
	}
	if resp.TokensUsed != 100 || resp.Model != anthropicDefaultModel {
		t.Errorf("Unexpected usage: %d tokens from %s", resp.TokensUsed, resp.Model)
	}
}

func TestAnthropicProvider_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error envelope", http.StatusInternalServerError, `{"type": "error", "error": {"type": "api_error", "message": "Internal Server Error"}}`, "api_error - Internal Server Error"},
		{"plain error body", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"empty content", http.StatusOK, `{"content": []}`, "no text content"},
		{"malformed json", http.StatusOK, `{malformed json`, "unmarshal response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "x"})
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.wantMsg, err)
			}

			var statusErr *StatusError
			if tt.status != http.StatusOK && (!errors.As(err, &statusErr) || statusErr.Code != tt.status) {
				t.Errorf("Expected StatusError %d, got %v", tt.status, err)
			}
		})
	}
}

func TestAnthropicProvider_IsAvailable(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"content": [{"type": "text", "text": "pong"}]}`))
	})

	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	healthy.Store(false)
	if provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewAnthropicProvider_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicProvider(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
