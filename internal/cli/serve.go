package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-match-backend/internal/api"
)

// jobCleanupInterval is how often finished and stale batch jobs are swept.
const jobCleanupInterval = 5 * time.Minute

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	Port int
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the HTTP API server until SIGINT or SIGTERM.

Example:
  invoice-match serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunServe(opts, flags)
		},
	}

	cmd.Flags().IntVar(&flags.Port, "port", 0, "port to listen on (default from config)")
	return cmd
}

// RunServe runs the API server.
func RunServe(opts *rootOptions, flags *ServeFlags) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if cfg.Observability.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registerer, gatherer = reg, reg
	}

	rt, err := openRuntime(cfg, os.Stdout, "api", registerer)
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	if !opts.verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	port := rt.cfg.API.Port
	if flags.Port > 0 {
		port = flags.Port
	}

	apiCfg := api.Config{
		Port:           port,
		AllowedOrigins: rt.cfg.API.AllowedOrigins,
		JWTSecret:      rt.cfg.API.JWTSecret,
		Gatherer:       gatherer,
	}

	server := api.NewServer(apiCfg, rt.store, rt.svc, logger)

	rt.svc.StartBackgroundCleanup(jobCleanupInterval)
	defer rt.svc.StopBackgroundCleanup()

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		for _, job := range rt.svc.ListActiveJobs() {
			if err := rt.svc.CancelJob(job.ID); err != nil {
				logger.Warn("failed to cancel batch job", "job_id", job.ID, "error", err)
			}
		}

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
