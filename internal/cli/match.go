package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/logging"
)

type matchFlags struct {
	goal      string
	amounts   string
	timeout   time.Duration
	tolerance string
}

func newMatchCommand(opts *rootOptions) *cobra.Command {
	flags := &matchFlags{}

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Find the unique subset of amounts that sums to a goal",
		Long: `Run a stateless subset search without touching the database.

Prints the matched amounts when exactly one subset sums to the goal within
the tolerance, and the outcome (ambiguous, timed_out, not_found) otherwise.

Example:
  invoice-match match --goal 100 --amounts 60,40,25
  invoice-match match --goal 99.99 --amounts 50,49.98 --tolerance 0.01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(cmd, opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.goal, "goal", "", "goal total (required)")
	cmd.Flags().StringVar(&flags.amounts, "amounts", "", "comma separated candidate amounts (required)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "search budget (default from config)")
	cmd.Flags().StringVar(&flags.tolerance, "tolerance", "", "absolute tolerance (default from config)")
	_ = cmd.MarkFlagRequired("goal")
	_ = cmd.MarkFlagRequired("amounts")

	return cmd
}

func runMatch(cmd *cobra.Command, opts *rootOptions, flags *matchFlags) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	goal, err := decimal.NewFromString(flags.goal)
	if err != nil {
		return fmt.Errorf("invalid goal %q: %w", flags.goal, err)
	}
	amounts, err := parseAmounts(flags.amounts)
	if err != nil {
		return err
	}
	if len(amounts) == 0 {
		return errors.New("at least one amount is required")
	}

	if flags.tolerance != "" {
		cfg.Matching.Tolerance = flags.tolerance
	}
	logger := logging.NewLoggerWithSystem(cmd.ErrOrStderr(), cfg.Observability.Logging, "match")
	matcher, err := newMatcher(cfg.Matching, logger)
	if err != nil {
		return err
	}
	if matcher.Config().Tolerance.IsNegative() {
		return errors.New("tolerance must not be negative")
	}
	if flags.timeout > 0 {
		mc := matcher.Config()
		mc.Timeout = flags.timeout
		matcher = subsetmatch.NewMatcher(mc, subsetmatch.WithLogger(logger))
	}

	candidates := make([]subsetmatch.Candidate, len(amounts))
	for i, amount := range amounts {
		candidates[i] = subsetmatch.Candidate{
			Line:            strconv.Itoa(i + 1),
			AmountToInvoice: amount,
		}
	}

	result := matcher.FindMatchingSubset(cmd.Context(), candidates, goal)
	PrintMatchResult(cmd.OutOrStdout(), result)
	return nil
}
