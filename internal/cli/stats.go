package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Display match statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.ErrOrStderr(), "stats")
			if err != nil {
				return err
			}
			defer rt.Close()

			stats, err := rt.store.GetStats()
			if err != nil {
				return fmt.Errorf("failed to get statistics: %w", err)
			}
			PrintStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}
