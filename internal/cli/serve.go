package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the provenance HTTP API",
	Long: `Serve opens the provenance database and exposes the research API:
leads, object detail, graphs, timelines, places, keyword and semantic search,
vocabularies and generated notes. Prometheus metrics are served at /metrics.

Example:
  provenance-radar serve
  provenance-radar serve --addr :8080 --db ./radar.db
  PROVRADAR_LLM_PROVIDER=openai OPENAI_API_KEY=sk-... provenance-radar serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :7860)")
	serveCmd.Flags().String("db", "", "SQLite database path")
	serveCmd.Flags().Bool("no-geocode", false, "disable remote geocoding (stored coordinates are still used)")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if off, _ := cmd.Flags().GetBool("no-geocode"); off {
		cfg.Geocode.Enabled = false
	}

	logger, err := newLogger(cfg.Server.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h, err := a.pipeline.Health(ctx)
	if err != nil {
		return fmt.Errorf("database check: %w", err)
	}
	logger.Info("starting provenance-radar",
		zap.String("version", Version),
		zap.String("db", cfg.Store.Path),
		zap.Int64("objects", h.Counts.Objects),
		zap.String("generator", h.Generator),
		zap.Bool("embeddings", h.Embeddings),
		zap.Bool("geocoding", cfg.Geocode.Enabled))

	return api.NewServer(a.pipeline, cfg.Server, logger.Named("api")).ListenAndServe(ctx)
}
