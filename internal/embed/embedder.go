package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/util"
)

// ErrEmptyText is returned for blank input
var ErrEmptyText = errors.New("text is empty")

// DefaultDimensions matches the vector column the store was built with
const DefaultDimensions = 1536

// Embedder turns text into fixed-width vectors through an OpenAI-compatible
// /embeddings endpoint
type Embedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

// New creates an embedder from configuration
func New(config model.EmbedConfig, proxy model.ProxyConfig) (*Embedder, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	// Local servers ignore the key but the client insists on one
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "unused"
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout:   30 * time.Second,
		Transport: util.NewTransport(proxy.HTTPProxy, proxy.HTTPSProxy, proxy.NoProxy),
	}

	dims := config.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      config.Model,
		dimensions: dims,
	}, nil
}

// Dimensions returns the width of every vector Embed returns
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Model returns the embedding model name
func (e *Embedder) Model() string {
	return e.model
}

// Embed returns the vector for text, padded or truncated to Dimensions
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("create embedding: empty response")
	}

	return fit(resp.Data[0].Embedding, e.dimensions), nil
}

// fit pads with zeros or truncates vec to n values
func fit(vec []float32, n int) []float32 {
	out := make([]float32, n)
	copy(out, vec)
	return out
}
