package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/groupcast/internal/cliconfig"
	gclog "github.com/bft-labs/groupcast/pkg/log"
	"github.com/bft-labs/groupcast/pkg/participant"
)

const longHelp = `Join a groupcast group interactively.

Configuration is read from the config file (TOML when it ends in .toml,
otherwise three lines: id, message log path, "host port" of the
coordinator), then GROUPCAST_* environment variables, then flags.

Every message received is printed and appended to the message log.`

var exampleUsage = strings.TrimSpace(`
  groupcast-participant participant.conf
  groupcast-participant --id 3 --coordinator 127.0.0.1:5000
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// printer serializes prompt output and pushed messages.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *printer) delivery(d participant.Delivery) {
	if d.Replay && len(d.Messages) == 0 {
		fmt.Fprintf(p, "\n%s\n", d.Raw)
		return
	}
	for _, m := range d.Messages {
		fmt.Fprintf(p, "\n%s\n", m)
	}
}

func main() {
	cfg := cliconfig.DefaultParticipantConfig()
	var cfgPath string

	log := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "groupcast-participant [config-file]",
		Short:   "Join a groupcast group interactively",
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
				cfgFile = cliconfig.DefaultConfigPath("participant")
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if explicit && !cliconfig.FileExists(cfgFile) {
				return fmt.Errorf("config file %s not found", cfgFile)
			}
			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadParticipantFile(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyParticipantFile(&cfg, fc, changed); err != nil {
					return err
				}
			}

			if err := cliconfig.ApplyParticipantEnv(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			log = cliconfig.LoggerAt(cfg.LogLevel)
			log.Debug().Interface("config", cfg).Msg("configuration")

			out := &printer{out: cmd.OutOrStdout()}
			p, err := participant.New(participant.Config{
				ID:               int32(cfg.ID),
				Coordinator:      cfg.Coordinator,
				AdvertiseAddress: cfg.AdvertiseAddress,
				InboxPath:        cfg.LogPath,
				DialTimeout:      cfg.DialTimeout,
			},
				participant.WithLogger(gclog.NewZerologAdapterWithLogger(log)),
				participant.WithOnDelivery(out.delivery),
			)
			if err != nil {
				return fmt.Errorf("create participant: %w", err)
			}
			defer p.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(out, "participant %d, coordinator %s, messages logged to %s\n",
				cfg.ID, cfg.Coordinator, p.Inbox().Path())
			fmt.Fprintln(out, usage)
			return runPrompt(ctx, cmd.InOrStdin(), out, p)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.groupcast/participant.toml)")
	root.Flags().IntVar(&cfg.ID, "id", cfg.ID, "participant id")
	root.Flags().StringVar(&cfg.LogPath, "log-path", cfg.LogPath, "file every received message is appended to (default participant<ID>.log)")
	root.Flags().StringVar(&cfg.Coordinator, "coordinator", cfg.Coordinator, "coordinator address as host:port")
	root.Flags().StringVar(&cfg.AdvertiseAddress, "advertise-address", cfg.AdvertiseAddress, "address the coordinator dials to push messages")
	root.Flags().DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "timeout for connecting to the coordinator")
	root.Flags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("groupcast-participant")
		os.Exit(1)
	}
}
