package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/minesync/internal/client/cli"
	"github.com/iudanet/minesync/internal/client/iocli"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdio := iocli.NewStdio()
	root := cli.NewRootCommand(stdio)
	root.AddCommand(newVersionCommand(stdio))

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newVersionCommand(stdio iocli.IO) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		// Не требует конфигурации
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			stdio.Printf("minesync client\n")
			stdio.Printf("Version:    %s\n", Version)
			stdio.Printf("Build Date: %s\n", BuildDate)
			stdio.Printf("Git Commit: %s\n", GitCommit)
		},
	}
}
