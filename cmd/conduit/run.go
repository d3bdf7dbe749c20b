package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/audit"
	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/server"
	"mercator-hq/conduit/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	noWatch       bool
	warm          bool
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway operations listener and background schedulers",
	Long: `Start the gateway with the specified configuration.

The operations listener serves /health, /ready, /metrics and the capability
admin endpoints. Capability warm-up and audit retention run on their cron
schedules, and the configuration file is reloaded when it changes.

Examples:
  # Start with default config
  conduit run

  # Start with custom config and probe every model first
  conduit run --config /etc/conduit/config.yaml --warm

  # Validate config without starting
  conduit run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload the config file on change")
	runCmd.Flags().BoolVar(&runFlags.warm, "warm", false, "probe every configured model before serving")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	out := cmd.OutOrStdout()

	if runFlags.dryRun {
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer a.close()

	fmt.Fprintf(out, "Conduit v%s\n", Version)
	fmt.Fprintf(out, "✓ Configuration loaded (%d models)\n", len(cfg.Models))

	if runFlags.warm {
		n := a.detector.Warm(ctx, a.models.Models())
		fmt.Fprintf(out, "✓ Capabilities probed (%d models)\n", n)
	}

	if cfg.Detection.WarmupSchedule != "" {
		warmup, err := capability.NewScheduler(a.detector, cfg.Detection.WarmupSchedule, a.models.Models)
		if err != nil {
			return cli.NewConfigError("detection.warmup_schedule", err.Error())
		}
		warmup.Start(ctx)
		defer warmup.Stop()
	}

	if a.audit != nil {
		if pruner, ok := a.audit.Sink().(audit.Pruner); ok {
			retention := audit.NewRetentionScheduler(pruner, cfg.Audit.PruneSchedule, cfg.Audit.RetentionDays)
			if err := retention.Start(ctx); err != nil {
				slog.Warn("failed to start audit retention", "error", err)
			} else {
				defer retention.Stop()
			}
		}
		fmt.Fprintf(out, "✓ Audit log enabled (%s)\n", cfg.Audit.Backend)
	}

	if !runFlags.noWatch && configPath != "" {
		watcher, err := config.NewWatcher(configPath, config.DefaultDebounceInterval, a.reload)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg.Server, server.Options{
		Metrics:      a.collector.Handler(),
		MetricsPath:  cfg.Telemetry.Metrics.Path,
		Checker:      newChecker(a),
		Capabilities: a.detector,
		Build:        server.Build{Version: Version, Commit: GitCommit, BuildTime: BuildDate},
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	select {
	case err := <-errChan:
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		return nil
	case <-ctx.Done():
		fmt.Fprintln(out, "\nShutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Fprintln(out, "✓ Gateway stopped")
		return nil
	}
}

// newChecker registers the readiness checks for a.
func newChecker(a *app) *health.Checker {
	checker := health.New(a.cfg.Detection.ProbeTimeout)
	checker.Register("models", health.ModelsCheck(func() int { return len(a.models.Models()) }))
	if a.tokens != nil {
		checker.Register("backend_token", health.BackendTokenCheck(a.tokens))
	}
	return checker
}
