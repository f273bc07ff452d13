package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/groupcast/internal/cliconfig"
	"github.com/bft-labs/groupcast/pkg/coordinator"
	gclog "github.com/bft-labs/groupcast/pkg/log"
	"github.com/bft-labs/groupcast/plugins/configwatcher"
	"github.com/bft-labs/groupcast/plugins/logsweep"
	"github.com/bft-labs/groupcast/plugins/metrics"
)

const longHelp = `Run a groupcast coordinator.

Participants register over the control plane and receive every multicast
message on a listener of their own. Messages sent while a participant is
disconnected are kept in storage<ID>.txt and replayed on reconnect when they
are no older than the threshold.

Configuration is read from the config file (TOML when it ends in .toml,
otherwise the two-line "port" / "threshold" format), then GROUPCAST_*
environment variables, then flags.`

var exampleUsage = strings.TrimSpace(`
  groupcast-coordinator coordinator.conf
  groupcast-coordinator --config $HOME/.groupcast/coordinator.toml --metrics-addr :9090
  groupcast-coordinator --port 5000 --threshold 60 --log-dir /var/lib/groupcast
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultCoordinatorConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "groupcast-coordinator [config-file]",
		Short:   "Coordinate a persistent, time-bounded multicast group",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" && len(args) == 1 {
				cfgFile = args[0]
			}
			explicit := cfgFile != ""
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath("coordinator")
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if explicit && !cliconfig.FileExists(cfgFile) {
				return fmt.Errorf("config file %s not found", cfgFile)
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadCoordinatorFile(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyCoordinatorFile(&cfg, fc, changed); err != nil {
					return err
				}
			} else {
				cfgFile = ""
			}

			// GROUPCAST_* overrides the file but not explicit flags.
			if err := cliconfig.ApplyCoordinatorEnv(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log = cliconfig.LoggerAt(cfg.LogLevel)
			log.Info().Interface("config", cfg).Str("config_file", cfgFile).Msg("configuration")

			libCfg := coordinator.Config{
				ListenAddr:  cfg.ListenAddr(),
				Threshold:   cfg.Threshold,
				LogDir:      cfg.LogDir,
				StateDir:    cfg.StateDir,
				Capacity:    cfg.Capacity,
				PushTimeout: cfg.PushTimeout,
				ReadTimeout: cfg.ReadTimeout,
			}

			opts := []coordinator.Option{
				coordinator.WithLogger(gclog.NewZerologAdapterWithLogger(log)),
				metrics.WithMetrics(metrics.Config{Addr: cfg.MetricsAddr}),
			}
			if cfg.WatchConfig && cfgFile != "" {
				opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.Config{Path: cfgFile}))
			}
			if cfg.SweepInterval > 0 {
				opts = append(opts, logsweep.WithLogSweep(logsweep.Config{
					Interval:       cfg.SweepInterval,
					MaxAge:         cfg.SweepMaxAge,
					RunImmediately: true,
				}))
			}

			c, err := coordinator.New(libCfg, opts...)
			if err != nil {
				return fmt.Errorf("create coordinator: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := c.Start(ctx); err != nil {
				return fmt.Errorf("start coordinator: %w", err)
			}
			log.Info().Str("addr", c.Addr().String()).Int64("threshold", c.Threshold()).Msg("coordinator started")

			<-ctx.Done()
			log.Info().Msg("received signal, stopping...")

			if err := c.Stop(); err != nil {
				return fmt.Errorf("stop coordinator: %w", err)
			}
			if c.Status() == coordinator.StateCrashed {
				log.Error().Msg("coordinator crashed")
			}
			return nil
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.groupcast/coordinator.toml)")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "control-plane TCP port")
	root.Flags().Int64Var(&cfg.Threshold, "threshold", cfg.Threshold, "replay window in seconds")
	root.Flags().StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "directory for storage<ID>.txt offline logs")
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for registry.json (defaults to log-dir)")
	root.Flags().IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "maximum number of registered participants")
	if err := root.Flags().MarkHidden("capacity"); err != nil {
		log.Info().Err(err).Msg("failed to hide capacity flag")
	}
	root.Flags().DurationVar(&cfg.PushTimeout, "push-timeout", cfg.PushTimeout, "timeout for one push to a participant (0 = none)")
	root.Flags().DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "timeout for reading one control command")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (e.g. :9090)")
	root.Flags().DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often to delete orphaned offline logs (0 = never)")
	root.Flags().DurationVar(&cfg.SweepMaxAge, "sweep-max-age", cfg.SweepMaxAge, "minimum age of an orphaned offline log before it is deleted")
	root.Flags().BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "reload the threshold when the config file changes")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("groupcast-coordinator")
		os.Exit(1)
	}
}
