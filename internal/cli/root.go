package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/model"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

const (
	envPrefix = "PROVRADAR"
	configDir = ".provenance-radar"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "provenance-radar",
	Short: "Provenance Radar - provenance risk research for museum collections",
	Long: `Provenance Radar serves provenance research data for cultural-heritage
objects: normalized risk scores, ownership graphs with chain-of-custody links,
timelines, map places, keyword and semantic search, and generated research
notes.

Free-text provenance sentences are turned into structured events and
flagged against policy windows such as 1933-1945 and UNESCO 1970.

Scores are research leads, not findings.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "provenance-radar v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.provenance-radar/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("server.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in the config file and PROVRADAR_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, configDir))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// PROVRADAR_STORE_PATH overrides store.path
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(model.DefaultConfig())

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every key so environment variables can override it
func setDefaults(cfg *model.Config) {
	defaults := map[string]any{
		"server.addr":            cfg.Server.Addr,
		"server.allowed_origins": cfg.Server.AllowedOrigins,
		"server.read_timeout":    cfg.Server.ReadTimeout,
		"server.write_timeout":   cfg.Server.WriteTimeout,
		"server.verbose":         cfg.Server.Verbose,

		"store.path":          cfg.Store.Path,
		"store.max_retries":   cfg.Store.MaxRetries,
		"store.retry_backoff": cfg.Store.RetryBackoff,

		"embed.base_url":   cfg.Embed.BaseURL,
		"embed.model":      cfg.Embed.Model,
		"embed.api_key":    cfg.Embed.APIKey,
		"embed.dimensions": cfg.Embed.Dimensions,
		"embed.workers":    cfg.Embed.Workers,

		"llm.provider":   cfg.LLM.Provider,
		"llm.model":      cfg.LLM.Model,
		"llm.api_key":    cfg.LLM.APIKey,
		"llm.base_url":   cfg.LLM.BaseURL,
		"llm.timeout":    cfg.LLM.Timeout,
		"llm.max_tokens": cfg.LLM.MaxTokens,

		"geocode.enabled":          cfg.Geocode.Enabled,
		"geocode.base_url":         cfg.Geocode.BaseURL,
		"geocode.user_agent":       cfg.Geocode.UserAgent,
		"geocode.timeout":          cfg.Geocode.Timeout,
		"geocode.requests_per_sec": cfg.Geocode.RequestsPerSec,
		"geocode.respect_robots":   cfg.Geocode.RespectRobots,
		"geocode.workers":          cfg.Geocode.Workers,

		"cache.enabled":  cfg.Cache.Enabled,
		"cache.ttl":      cfg.Cache.TTL,
		"cache.miss_ttl": cfg.Cache.MissTTL,

		"authority.primary_domains":   cfg.Authority.PrimaryDomains,
		"authority.secondary_domains": cfg.Authority.SecondaryDomains,

		"proxy.http_proxy":  cfg.Proxy.HTTPProxy,
		"proxy.https_proxy": cfg.Proxy.HTTPSProxy,
		"proxy.no_proxy":    cfg.Proxy.NoProxy,
	}
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// loadConfig resolves flags, environment, config file and defaults
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Provider keys follow the usual SDK variables when not configured
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "anthropic", "claude":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if cfg.Proxy.HTTPProxy == "" {
		cfg.Proxy.HTTPProxy = os.Getenv("HTTP_PROXY")
	}
	if cfg.Proxy.HTTPSProxy == "" {
		cfg.Proxy.HTTPSProxy = os.Getenv("HTTPS_PROXY")
	}
	if cfg.Proxy.NoProxy == "" {
		cfg.Proxy.NoProxy = os.Getenv("NO_PROXY")
	}

	return cfg, nil
}

// newLogger returns a development logger in verbose mode and a production
// logger otherwise
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
