package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// OllamaProvider generates curator notes with a locally served model
type OllamaProvider struct {
	api    *jsonClient
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count,omitempty"`
	EvalCount       int    `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates an Ollama provider; the base URL defaults to the
// local daemon
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	// Local models load lazily, so the first call can be slow
	api := newJSONClient(config, "http://localhost:11434", 60*time.Second, nil, ollamaErrorText)
	return &OllamaProvider{api: api, config: config}, nil
}

func ollamaErrorText(body []byte) string {
	var env struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &env) != nil {
		return ""
	}
	return env.Error
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

// IsAvailable reports whether the daemon answers its model listing
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	return p.api.get(ctx, "/api/tags", nil) == nil
}

// Generate runs a single non-streaming completion
func (p *OllamaProvider) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	model := pickModel(req.Model, p.config.Model, "")
	if model == "" {
		return nil, errors.New("ollama model must be specified (e.g. llama3.1:8b)")
	}

	apiReq := ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		System: req.System,
		Options: ollamaOptions{
			Temperature: generationTemperature,
			NumPredict:  maxTokens(req.MaxTokens, p.config.MaxTokens, 600),
		},
	}

	var resp ollamaResponse
	if err := p.api.post(ctx, "/api/generate", apiReq, &resp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	resp.Response = strings.TrimSpace(resp.Response)
	tokens := resp.PromptEvalCount + resp.EvalCount
	if tokens == 0 {
		// Estimate at four bytes per token when the model reports no counts
		tokens = (len(req.Prompt) + len(resp.Response)) / 4
	}

	return newResponse(resp.Response, orDefault(resp.Model, model), tokens), nil
}
