package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ppiankov/provenance-radar/internal/pipeline"
)

var (
	ingestTimeout time.Duration
	noEmbed       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.yaml>",
	Short: "Load catalogue records into the provenance database",
	Long: `Ingest reads a YAML batch of objects and writes their catalogue fields,
provenance sentences, curated events and risk signals, replacing what was
stored for each object. New sentences are embedded concurrently when an
embedding model is configured.

File format:
  objects:
    - object_id: 1001
      source: AIC
      title: Still Life
      risk_score: 1.4
      provenance: "Sold to John Smith, Paris, 1938; by descent..."
      events:
        - {type: SOLD, actor: John Smith, place: Paris, date_from: "1938-01-01"}
      risk_signals:
        - {code: GAP_1933_1945, weight: 0.6}

Example:
  provenance-radar ingest objects.yaml
  provenance-radar ingest objects.yaml --db ./radar.db --no-embed`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("db", "", "SQLite database path")
	ingestCmd.Flags().Int("workers", 0, "concurrent embedding requests")
	ingestCmd.Flags().DurationVar(&ingestTimeout, "timeout", 30*time.Minute, "total timeout for the batch")
	ingestCmd.Flags().BoolVar(&noEmbed, "no-embed", false, "skip sentence embeddings")

	_ = viper.BindPFlag("embed.workers", ingestCmd.Flags().Lookup("workers"))
}

func runIngest(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if noEmbed {
		cfg.Embed.Model = ""
	}
	cfg.Geocode.Enabled = false

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	batch, err := pipeline.ParseIngestFile(f)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = newLogger(true); err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
	}

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Database:     %s\n", cfg.Store.Path)
	fmt.Fprintf(os.Stderr, "  Records:      %d\n", len(batch.Objects))
	if cfg.Embed.Model != "" {
		fmt.Fprintf(os.Stderr, "  Embeddings:   %s (%d workers)\n", cfg.Embed.Model, cfg.Embed.Workers)
	} else {
		fmt.Fprintf(os.Stderr, "  Embeddings:   off\n")
	}
	fmt.Fprintf(os.Stderr, "\n")

	report, err := a.pipeline.Ingest(ctx, batch)
	if err != nil {
		if report != nil {
			fmt.Fprintf(os.Stderr, "✗ stopped after %d objects\n", report.Objects)
		}
		return fmt.Errorf("ingest failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Objects:      %d\n", report.Objects)
	fmt.Fprintf(os.Stderr, "✓ Sentences:    %d\n", report.Sentences)
	fmt.Fprintf(os.Stderr, "✓ Events:       %d\n", report.Events)
	fmt.Fprintf(os.Stderr, "✓ Risk signals: %d\n", report.Signals)
	if report.Embedded+report.EmbedFailed > 0 {
		fmt.Fprintf(os.Stderr, "✓ Embedded:     %d\n", report.Embedded)
	}
	if report.EmbedFailed > 0 {
		fmt.Fprintf(os.Stderr, "✗ Not embedded: %d (semantic search will skip them)\n", report.EmbedFailed)
	}
	fmt.Fprintf(os.Stderr, "\n  Run: %s\n\n", report.RunID)

	return nil
}
