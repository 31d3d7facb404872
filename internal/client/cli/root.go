// Package cli реализует команды клиента minesync поверх cobra.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/iudanet/minesync/internal/client/iocli"
	"github.com/iudanet/minesync/internal/config"
)

// RootOptions глобальные флаги всех команд
type RootOptions struct {
	IO         iocli.IO
	LookupEnv  func(string) (string, bool)
	LogOutput  io.Writer
	ConfigPath string
	ServerURL  string
	DBPath     string
	LogLevel   string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCommand создает корневую команду клиента
func NewRootCommand(stdio iocli.IO) *cobra.Command {
	return newRootCommand(&RootOptions{
		IO:        stdio,
		LookupEnv: os.LookupEnv,
		LogOutput: os.Stderr,
	})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minesync",
		Short: "minesync - offline-first economy sync client",
		Long: "Client for the mining game economy: keeps a local snapshot, queues signed " +
			"operations while offline and replays them against the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.ServerURL, "server", "", "server URL (overrides config and "+config.EnvServer+")")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "path to local database (overrides config and "+config.EnvDB+")")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewStakeCommand(opts))
	cmd.AddCommand(NewClaimCommand(opts))
	cmd.AddCommand(NewSynergyCommand(opts))
	cmd.AddCommand(NewFlushCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewAutoSaveCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// load собирает конфигурацию: значения по умолчанию, файл, окружение, флаги
func (o *RootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}

	if o.LookupEnv != nil {
		cfg.ApplyEnv(o.LookupEnv)
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = o.ServerURL
	}
	if flags.Changed("db") {
		cfg.DBPath = o.DBPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrInvalidConfig, err)
	}

	out := o.LogOutput
	if out == nil {
		out = io.Discard
	}

	o.cfg = cfg
	o.logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return nil
}
