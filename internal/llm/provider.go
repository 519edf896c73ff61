package llm

import (
	"context"
	"regexp"
	"strings"
)

// generationTemperature keeps curator notes close to the catalogue record
const generationTemperature = 0.3

// Provider is a text-generation backend
type Provider interface {
	Name() string

	// Generate produces a completion for the prompt
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)

	// IsAvailable makes a cheap call to confirm the backend accepts requests
	IsAvailable(ctx context.Context) bool
}

// GenerateRequest is one prompt with optional system instruction. Empty
// Model and zero MaxTokens fall back to the provider configuration.
type GenerateRequest struct {
	Prompt    string
	System    string
	Model     string
	MaxTokens int
}

// GenerateResponse is the trimmed completion plus the URLs it cites
type GenerateResponse struct {
	Text       string
	CitedURLs  []string
	Model      string
	TokensUsed int
}

func newResponse(text, model string, tokens int) *GenerateResponse {
	return &GenerateResponse{
		Text:       text,
		CitedURLs:  extractURLs(text),
		Model:      model,
		TokensUsed: tokens,
	}
}

// Config holds provider configuration
type Config struct {
	Provider  string // "openai", "anthropic", "ollama" or "" for none
	Model     string
	APIKey    string
	BaseURL   string
	Timeout   int // seconds
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig leaves generation disabled
func DefaultConfig() Config {
	return Config{
		Timeout:   30,
		MaxTokens: 600,
	}
}

var urlPattern = regexp.MustCompile(`https?://[^\s\)]+`)

// extractURLs returns the URLs in text, deduplicated in order of appearance
func extractURLs(text string) []string {
	var urls []string
	seen := make(map[string]bool)
	for _, u := range urlPattern.FindAllString(text, -1) {
		u = strings.TrimRight(u, ".,;:!?")
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

// maxTokens picks the request limit, then the configured one, then fallback
func maxTokens(req, configured, fallback int) int {
	switch {
	case req > 0:
		return req
	case configured > 0:
		return configured
	default:
		return fallback
	}
}

// pickModel is maxTokens for model names
func pickModel(req, configured, fallback string) string {
	return orDefault(req, orDefault(configured, fallback))
}
