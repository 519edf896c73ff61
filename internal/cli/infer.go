package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance-radar/internal/extract"
	"github.com/ppiankov/provenance-radar/internal/model"
	"github.com/ppiankov/provenance-radar/internal/policy"
)

// inferredEvent is an event with the policy windows its date falls in
type inferredEvent struct {
	model.Event
	Policy []string `json:"policy"`
}

var inferCmd = &cobra.Command{
	Use:   "infer [file]",
	Short: "Infer structured events from free-text provenance",
	Long: `Infer splits a provenance paragraph into sentences and extracts the
events they describe (type, actor, place, year), flagged against the policy
windows. Reads the file argument, or standard input when none is given.

Example:
  echo "Sold to John Smith, Paris, 1938; donated by his heirs by 1975." | provenance-radar infer
  provenance-radar infer provenance.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInfer,
}

func init() {
	rootCmd.AddCommand(inferCmd)
}

func runInfer(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	texts := extract.SplitProvenance(string(data))
	sentences := make([]model.Sentence, len(texts))
	for i, t := range texts {
		sentences[i] = model.Sentence{Seq: i, Text: t}
	}

	matcher := policy.NewMatcher(nil)
	events := extract.NewEventInferrer().InferAll(sentences)

	out := make([]inferredEvent, 0, len(events))
	for _, ev := range events {
		out = append(out, inferredEvent{Event: ev, Policy: matcher.Matches(ev.DateFrom)})
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "%d sentences, %d events\n", len(sentences), len(out))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
