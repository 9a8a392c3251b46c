package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/export"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		out    string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export recent link decisions as XLSX or PDF",
		Long: `Export recent link decisions and summary statistics.

Example:
  invoice-match report --format xlsx --out links.xlsx
  invoice-match report --format pdf --out links.pdf --limit 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseReportFormat(format)
			if err != nil {
				return err
			}

			rt, err := opts.open(cmd.ErrOrStderr(), "report")
			if err != nil {
				return err
			}
			defer rt.Close()

			links, err := rt.store.ListLinks(limit)
			if err != nil {
				return fmt.Errorf("failed to list links: %w", err)
			}
			stats, err := rt.store.GetStats()
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			var data []byte
			if format == "pdf" {
				data, err = export.BuildLinksPDF(links, stats)
			} else {
				data, err = export.BuildLinksXLSX(links, stats)
			}
			if err != nil {
				return fmt.Errorf("failed to render report: %w", err)
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d links to %s\n", len(links), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "xlsx", "report format: xlsx or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (required)")
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum links to include")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
