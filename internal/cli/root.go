// Package cli implements the invoice-match command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/application/service"
	"github.com/eshaffer321/invoice-match-backend/internal/domain/subsetmatch"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/config"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/logging"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/metrics"
	"github.com/eshaffer321/invoice-match-backend/internal/infrastructure/storage"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	verbose    bool
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "invoice-match",
		Short: "Match vendor bill totals against purchase order lines",
		Long: `invoice-match links OCR-extracted vendor bills to the purchase order
lines they pay, by finding the unique subset of open line amounts that sums
to the bill total.

Example:
  invoice-match match --goal 100 --amounts 60,40,25
  invoice-match import --file data.yaml
  invoice-match batch --dry-run
  invoice-match serve --port 8080`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(opts.envFile)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "config file (falls back to environment variables)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "load environment variables from this file (default .env)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newServeCommand(opts),
		newMatchCommand(opts),
		newImportCommand(opts),
		newLinkCommand(opts),
		newBatchCommand(opts),
		newReportCommand(opts),
		newStatsCommand(opts),
		newTokenCommand(opts),
	)

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// loadConfig loads and validates the configuration.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.LoadOrEnvWithPath(o.configPath)
	if o.verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newMatcher builds a matcher from the matching configuration.
func newMatcher(cfg config.MatchingConfig, logger *slog.Logger) (*subsetmatch.Matcher, error) {
	tol, err := cfg.ToleranceDecimal()
	if err != nil {
		return nil, err
	}
	return subsetmatch.NewMatcher(subsetmatch.Config{
		Tolerance: tol,
		Timeout:   cfg.TimeoutDuration(),
	}, subsetmatch.WithLogger(logger)), nil
}

// runtime bundles what the storage-backed commands need.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.Storage
	svc    *service.MatchService
}

// openRuntime opens storage and wires the match service. Logs go to
// logOut; reg may be nil to skip metrics.
func openRuntime(cfg *config.Config, logOut io.Writer, system string, reg prometheus.Registerer) (*runtime, error) {
	logger := logging.NewLoggerWithSystem(logOut, cfg.Observability.Logging, system)

	matcher, err := newMatcher(cfg.Matching, logger)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}

	return &runtime{
		cfg:    cfg,
		logger: logger,
		store:  store,
		svc:    service.NewMatchService(store, matcher, m, logger),
	}, nil
}

// open loads the configuration, then opens the runtime.
func (o *rootOptions) open(logOut io.Writer, system string) (*runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return openRuntime(cfg, logOut, system, nil)
}

// Close releases the storage.
func (r *runtime) Close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("failed to close storage", "error", err)
	}
}
