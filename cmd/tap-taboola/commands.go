package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/taboola-tap/pkg/config"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/core"
	"github.com/ajitpratap0/taboola-tap/pkg/connector/registry"
	jsonpool "github.com/ajitpratap0/taboola-tap/pkg/json"
	"github.com/ajitpratap0/taboola-tap/pkg/logger"
	"github.com/ajitpratap0/taboola-tap/pkg/metrics"
	"github.com/ajitpratap0/taboola-tap/pkg/observability"
	"github.com/ajitpratap0/taboola-tap/pkg/state"
)

const sourceName = "taboola"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"start-date":   "start_date",
	"streams":      "streams",
	"account-ids":  "account_ids",
	"state-path":   "state.path",
	"output":       "output.path",
	"log-level":    "observability.log_level",
	"metrics-addr": "observability.metrics_addr",
}

func addConfigFlags(cmd *cobra.Command, configFile *string) {
	f := cmd.Flags()
	f.StringVarP(configFile, "config", "c", "", "Path to the YAML configuration file")
	f.String("start-date", "", "Earliest date to sync (YYYY-MM-DD or RFC 3339)")
	f.String("streams", "", "Comma separated streams to emit")
	f.String("account-ids", "", "Comma separated account ids to extract")
	f.String("state-path", "", "State file for the file backend")
	f.String("output", "", "Output file for the jsonl destination, - for stdout")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("metrics-addr", "", "Serve Prometheus metrics on this address")
}

// loadConfig reads the configuration file, then applies environment and
// flag overrides, then validates.
func loadConfig(cmd *cobra.Command, configFile string) (*config.TapConfig, error) {
	cfg := config.NewTapConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	v := config.NewViper()
	if err := bindFlags(v, cmd); err != nil {
		return nil, err
	}
	config.ApplyOverrides(cfg, v)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func initLogging(cfg *config.TapConfig) (*zap.Logger, error) {
	// Records go to stdout, so logs always go to stderr
	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    cfg.Observability.LogEncoding,
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return nil, err
	}
	return logger.Get().With(zap.String("component", "tap-taboola-cli")), nil
}

func newRunCommand() *cobra.Command {
	var configFile string
	var fullRefresh bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract the selected streams",
		Long: `Extract the selected streams into the configured destination.

Example:
  tap-taboola run --config tap.yaml --streams campaigns,campaign_day_report`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSync(ctx, cfg, fullRefresh)
		},
	}
	addConfigFlags(cmd, &configFile)
	cmd.Flags().BoolVar(&fullRefresh, "full-refresh", false, "Ignore saved bookmarks")
	return cmd
}

func runSync(ctx context.Context, cfg *config.TapConfig, fullRefresh bool) error {
	log, err := initLogging(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		Enabled:      cfg.Observability.EnableTracing,
		SamplingRate: cfg.Observability.TracingSampleRate,
	})
	if err != nil {
		return err
	}
	defer func() { _ = shutdown(context.Background()) }()

	if cfg.Observability.MetricsAddr != "" {
		if err := metrics.Serve(ctx, cfg.Observability.MetricsAddr, log); err != nil {
			return err
		}
	}

	source, err := registry.CreateSource(sourceName, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()

	backend, err := registry.CreateStateBackend(ctx, cfg.State.Backend, &cfg.State)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	dest, err := registry.CreateDestination(ctx, cfg.Output.Destination, &cfg.Output)
	if err != nil {
		return err
	}

	summary, syncErr, closeErr := syncAndClose(ctx, source, dest, backend, core.SyncOptions{FullRefresh: fullRefresh})

	if syncErr != nil {
		log.Error("sync failed", zap.Error(syncErr))
		return syncErr
	}
	if closeErr != nil {
		log.Error("failed to close destination or save state", zap.Error(closeErr))
		return closeErr
	}

	log.Info("sync completed",
		zap.Int64("records_emitted", summary.RecordsEmitted),
		zap.Int64("contexts_skipped", summary.ContextsSkipped),
		zap.Duration("duration", summary.Duration))
	return nil
}

// syncAndClose runs the sync and closes dest. State for destinations that
// deliver on Close is persisted only after Close succeeds.
func syncAndClose(ctx context.Context, source core.Source, dest core.Destination, backend core.StateBackend, opts core.SyncOptions) (*core.SyncSummary, error, error) {
	var deferred *state.DeferredBackend
	if core.DeliversOnClose(dest) {
		deferred = state.NewDeferredBackend(backend)
		backend = deferred
	}

	summary, syncErr := source.Sync(ctx, dest, backend, opts)
	closeErr := dest.Close(ctx)
	if deferred == nil {
		return summary, syncErr, closeErr
	}
	if closeErr != nil {
		_ = deferred.Close()
		return summary, syncErr, closeErr
	}
	return summary, syncErr, deferred.Commit(context.WithoutCancel(ctx))
}

func newDiscoverCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Print the stream catalog as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, configFile)
			if err != nil {
				return err
			}
			if _, err := initLogging(cfg); err != nil {
				return err
			}
			source, err := registry.CreateSource(sourceName, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = source.Close() }()

			out, err := jsonpool.MarshalIndent(map[string]interface{}{"streams": source.Discover()}, "", "  ")
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	addConfigFlags(cmd, &configFile)
	return cmd
}
