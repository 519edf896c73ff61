package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ppiankov/provenance-radar/internal/model"
)

func newOllamaTestProvider(t *testing.T, modelName string, handler http.HandlerFunc) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL + "/", Model: modelName, Timeout: 5})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	return provider
}

func TestOllamaProvider_Generate(t *testing.T) {
	tests := []struct {
		name       string
		prompt     string
		reply      ollamaResponse
		wantTokens int
	}{
		{
			name:       "reported counts",
			prompt:     "Explain.",
			reply:      ollamaResponse{Model: "llama3.1", Response: " No gap found.\n", Done: true, PromptEvalCount: 10, EvalCount: 20},
			wantTokens: 30,
		},
		{
			name:       "estimated counts",
			prompt:     "abcdefgh",
			reply:      ollamaResponse{Response: "abcdefgh", Done: true},
			wantTokens: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newOllamaTestProvider(t, "llama3.1", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/generate" {
					t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
				}
				var req ollamaRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if req.Stream || req.Options.NumPredict != 600 || req.Model != "llama3.1" {
					t.Errorf("Unexpected request: %+v", req)
				}
				_ = json.NewEncoder(w).Encode(tt.reply)
			})

			resp, err := provider.Generate(context.Background(), GenerateRequest{Prompt: tt.prompt})
			if err != nil {
				t.Fatalf("Generate failed: %v", err)
			}
			if resp.Text != strings.TrimSpace(tt.reply.Response) {
				t.Errorf("Unexpected text: %q", resp.Text)
			}
			if resp.Model != "llama3.1" {
				t.Errorf("Expected model llama3.1, got %s", resp.Model)
			}
			if resp.TokensUsed != tt.wantTokens {
				t.Errorf("Expected %d tokens, got %d", tt.wantTokens, resp.TokensUsed)
			}
			if len(resp.CitedURLs) != 0 {
				t.Errorf("Expected no cited URLs, got %v", resp.CitedURLs)
			}
		})
	}
}

func TestOllamaProvider_Generate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		status  int
		body    string
		wantMsg string
	}{
		{"error envelope", "llama3.1", http.StatusNotFound, `{"error": "model 'llama3.1' not found"}`, "model 'llama3.1' not found"},
		{"malformed json", "llama3.1", http.StatusOK, `{malformed json`, "unmarshal response"},
		{"no model configured", "", http.StatusOK, `{}`, "must be specified"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newOllamaTestProvider(t, tt.model, func(w http.ResponseWriter, r *http.Request) {
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
		})
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	provider := newOllamaTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"models": []}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}

	down := newOllamaTestProvider(t, "", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	if down.IsAvailable(context.Background()) {
		t.Error("Expected available to be false on error")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantName string
		wantNil  bool
		wantErr  bool
	}{
		{"disabled", Config{}, "", true, false},
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false, false},
		{"claude alias", Config{Provider: "Claude", APIKey: "k"}, "anthropic", false, false},
		{"ollama", Config{Provider: "ollama"}, "ollama", false, false},
		{"openai without key", Config{Provider: "openai"}, "", true, true},
		{"unknown", Config{Provider: "gemini"}, "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantNil {
				if p != nil && err == nil {
					t.Fatalf("expected nil provider, got %s", p.Name())
				}
				return
			}
			if p == nil || p.Name() != tt.wantName {
				t.Fatalf("expected provider %s, got %v", tt.wantName, p)
			}
		})
	}
}

func TestExtractURLs(t *testing.T) {
	text := "See https://a.org/x, then (https://b.org/y). Again https://a.org/x."
	urls := extractURLs(text)
	if len(urls) != 2 || urls[0] != "https://a.org/x" || urls[1] != "https://b.org/y" {
		t.Errorf("unexpected urls: %v", urls)
	}
}

func TestConfigFromModel_KeepsDefaults(t *testing.T) {
	config := ConfigFromModel(model.LLMConfig{Provider: "ollama", Model: "mistral"}, model.ProxyConfig{NoProxy: "localhost"})
	if config.Timeout != 30 || config.MaxTokens != 600 {
		t.Errorf("Expected default limits, got timeout %d max tokens %d", config.Timeout, config.MaxTokens)
	}
	if config.Model != "mistral" || config.NoProxy != "localhost" {
		t.Errorf("Fields not mapped: %+v", config)
	}
}

func TestPickModel(t *testing.T) {
	if got := pickModel("", "", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}
	if got := pickModel("", "configured", "fallback"); got != "configured" {
		t.Errorf("Expected configured, got %s", got)
	}
	if got := pickModel("request", "configured", "fallback"); got != "request" {
		t.Errorf("Expected request, got %s", got)
	}
}
