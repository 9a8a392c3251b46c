package cli

import (
	"github.com/spf13/cobra"
)

func newLinkCommand(opts *rootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "link <extraction-id>",
		Short: "Link one extraction to its purchase order lines",
		Long: `Link one extraction and record the decision.

With --dry-run the decision is recorded but the extraction stays pending.

Example:
  invoice-match link ext-1 --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.open(cmd.ErrOrStderr(), "link")
			if err != nil {
				return err
			}
			defer rt.Close()

			PrintHeader(cmd.OutOrStdout(), "link", dryRun)
			link, err := rt.svc.MatchExtraction(cmd.Context(), args[0], dryRun)
			if err != nil {
				return err
			}
			PrintLink(cmd.OutOrStdout(), link)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record the decision without changing the extraction status")
	return cmd
}
