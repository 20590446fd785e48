package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// newRunCmd creates the 'run' subcommand: one invocation, result printed as JSON.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs one polling invocation",
		Long: `Fetches the review statuses once, persists and announces changes, and
prints the completion signal as JSON. Handled failures still exit zero.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			res := appInstance.Runner().Run(cmd.Context())
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
			return nil
		},
	}
}
