package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
)

func newBatchCommand(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Link all pending extractions",
		Long: `Link pending extractions, oldest first, and record a match run.

SIGINT stops the batch after the current extraction.

Example:
  invoice-match batch --limit 100 --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("limit must not be negative, got %d", limit)
			}

			rt, err := opts.open(cmd.ErrOrStderr(), "batch")
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			PrintHeader(out, "batch", dryRun)

			result, err := rt.svc.RunBatch(ctx, service.BatchRequest{
				Limit:  limit,
				DryRun: dryRun,
				Progress: func(p service.BatchProgress) {
					fmt.Fprintf(out, "[%d/%d] linked=%d unlinked=%d errors=%d\n",
						p.Processed, p.Total, p.Linked, p.Unlinked, p.Errored)
				},
			})
			if result != nil {
				PrintBatchSummary(out, result)
			}
			if errors.Is(err, context.Canceled) {
				fmt.Fprintln(out, "Batch interrupted")
				return nil
			}
			return err
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "maximum pending extractions to process (0 = all)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "record decisions without changing extraction status")
	return cmd
}
