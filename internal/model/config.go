package model

import "time"

// Config is the complete provenance-radar configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Embed     EmbedConfig     `yaml:"embed" mapstructure:"embed"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Geocode   GeocodeConfig   `yaml:"geocode" mapstructure:"geocode"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Authority AuthorityConfig `yaml:"authority" mapstructure:"authority"`
	Proxy     ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr           string        `yaml:"addr" mapstructure:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	Verbose        bool          `yaml:"verbose" mapstructure:"verbose"`
}

// StoreConfig controls the SQLite store
type StoreConfig struct {
	Path         string        `yaml:"path" mapstructure:"path"`
	MaxRetries   int           `yaml:"max_retries" mapstructure:"max_retries"`     // Attempts after the first
	RetryBackoff time.Duration `yaml:"retry_backoff" mapstructure:"retry_backoff"` // First retry delay
}

// EmbedConfig controls the embedding service
type EmbedConfig struct {
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
	APIKey     string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	Workers    int    `yaml:"workers" mapstructure:"workers"` // Concurrent requests during ingest
}

// LLMConfig controls the text-generation service used for explanations
type LLMConfig struct {
	Provider  string `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model     string `yaml:"model" mapstructure:"model"`
	APIKey    string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL   string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout   int    `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeocodeConfig controls place lookups for map pins
type GeocodeConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	BaseURL        string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string        `yaml:"user_agent" mapstructure:"user_agent"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`
	RequestsPerSec float64       `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	RespectRobots  bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	Workers        int           `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls the in-process geocode cache. Persistent results live
// in the store's places_cache table.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
	MissTTL time.Duration `yaml:"miss_ttl" mapstructure:"miss_ttl"`
}

// AuthorityConfig lists hosts used to tier stored event citations
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
}

// ProxyConfig routes outbound generation and geocoding requests
type ProxyConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":7860",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   90 * time.Second, // Explanations can take a while
		},
		Store: StoreConfig{
			Path:         "~/.provenance-radar/radar.db",
			MaxRetries:   2,
			RetryBackoff: 500 * time.Millisecond,
		},
		Embed: EmbedConfig{
			BaseURL:    "http://localhost:11434/v1",
			Model:      "all-minilm",
			Dimensions: 1536,
			Workers:    4,
		},
		LLM: LLMConfig{
			Timeout:   30,
			MaxTokens: 600,
		},
		Geocode: GeocodeConfig{
			Enabled:        true,
			BaseURL:        "https://nominatim.openstreetmap.org",
			UserAgent:      "provenance-radar/1.0",
			Timeout:        6 * time.Second,
			RequestsPerSec: 1, // Nominatim usage policy
			RespectRobots:  true,
			Workers:        2,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     6 * time.Hour,
			MissTTL: 15 * time.Minute,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"artic.edu", "metmuseum.org", "nga.gov", "getty.edu", "si.edu",
				"lootedart.com", "state.gov", "unesco.org", "archives.gov",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "wikidata.org", "christies.com", "sothebys.com",
				"bonhams.com", "jstor.org",
			},
		},
	}
}
