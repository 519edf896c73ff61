package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// NewProvider builds the configured provider. An empty provider name means
// generation is off and returns a nil Provider without error.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "":
		return nil, nil
	case "openai":
		return NewOpenAIProvider(config)
	case "anthropic", "claude":
		return NewAnthropicProvider(config)
	case "ollama":
		return NewOllamaProvider(config)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel maps the llm config section onto provider settings,
// keeping defaults for unset limits
func ConfigFromModel(llmConfig model.LLMConfig, proxy model.ProxyConfig) Config {
	config := DefaultConfig()
	config.Provider = llmConfig.Provider
	config.Model = llmConfig.Model
	config.APIKey = llmConfig.APIKey
	config.BaseURL = llmConfig.BaseURL
	if llmConfig.Timeout > 0 {
		config.Timeout = llmConfig.Timeout
	}
	if llmConfig.MaxTokens > 0 {
		config.MaxTokens = llmConfig.MaxTokens
	}
	config.HTTPProxy = proxy.HTTPProxy
	config.HTTPSProxy = proxy.HTTPSProxy
	config.NoProxy = proxy.NoProxy
	return config
}
