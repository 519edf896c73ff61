package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/provenance-radar/internal/score"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize <ratio>...",
	Short: "Show how raw risk ratios map to displayed scores",
	Long: `Normalize prints the 0-1 score and the 0-99 reference value for each
raw risk ratio (1.0 = 100%). Anchors: 1.0 -> 0.55, 2.0 -> 0.80, and a slow
approach to 0.99 beyond that.

Example:
  provenance-radar normalize 0.5 1 2 20`,
	Args: cobra.MinimumNArgs(1),
	RunE: runNormalize,
}

func init() {
	rootCmd.AddCommand(normalizeCmd)
}

func runNormalize(cmd *cobra.Command, args []string) error {
	n := score.NewNormalizer()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RAW\tNORMALIZED\tSCALED (0-99)")
	for _, arg := range args {
		raw, ok := score.CoerceRatio(arg)
		if !ok {
			return fmt.Errorf("not a ratio: %q", arg)
		}
		s := n.Score(raw)
		fmt.Fprintf(w, "%g\t%.6f\t%.2f\n", s.Raw, s.Normalized, s.Scaled)
	}
	return w.Flush()
}
