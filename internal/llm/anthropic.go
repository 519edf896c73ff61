package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-haiku-20241022"
)

// AnthropicProvider generates curator notes through the Messages API
type AnthropicProvider struct {
	api    *jsonClient
	config Config
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Model   string           `json:"model"`
	Content []anthropicBlock `json:"content"`
	Usage   anthropicUsage   `json:"usage"`
}

// text joins the text blocks of a reply; tool and image blocks are skipped
func (r *anthropicResponse) text() string {
	var parts []string
	for _, b := range r.Content {
		if b.Type == "text" || b.Type == "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// NewAnthropicProvider creates an Anthropic provider. An API key is required.
func NewAnthropicProvider(config Config) (*AnthropicProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}

	headers := map[string]string{
		"x-api-key":         config.APIKey,
		"anthropic-version": anthropicVersion,
	}
	return &AnthropicProvider{
		api:    newJSONClient(config, "https://api.anthropic.com", 30*time.Second, headers, anthropicErrorText),
		config: config,
	}, nil
}

// anthropicErrorText pulls "type - message" out of an error envelope
func anthropicErrorText(body []byte) string {
	var env struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil || env.Error.Message == "" {
		return ""
	}
	return env.Error.Type + " - " + env.Error.Message
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// IsAvailable sends a one-token message to prove the key is accepted
func (p *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	ping := anthropicRequest{
		Model:     pickModel("", p.config.Model, anthropicDefaultModel),
		MaxTokens: 1,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
	}
	var resp anthropicResponse
	return p.api.post(ctx, "/v1/messages", ping, &resp) == nil
}

// Generate sends one user turn and returns the joined text blocks
func (p *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	apiReq := anthropicRequest{
		Model:       pickModel(req.Model, p.config.Model, anthropicDefaultModel),
		MaxTokens:   maxTokens(req.MaxTokens, p.config.MaxTokens, 600),
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: generationTemperature,
	}

	var resp anthropicResponse
	if err := p.api.post(ctx, "/v1/messages", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("anthropic: %w", err)
	}

	text := resp.text()
	if text == "" {
		return nil, errors.New("anthropic: reply has no text content")
	}

	return newResponse(text, orDefault(resp.Model, apiReq.Model), resp.Usage.InputTokens+resp.Usage.OutputTokens), nil
}
