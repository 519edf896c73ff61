package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/provenance-radar/internal/policy"
)

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "List the policy windows events are flagged against",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(policy.NewMatcher(nil).Windows())
		if err != nil {
			return fmt.Errorf("error marshaling windows: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	rootCmd.AddCommand(windowsCmd)
}
