package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/minesync/internal/models"
)

// NewStatusCommand печатает состояние синхронизации
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var (
		clearErrors bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync status: connectivity, pending operations, sync errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				ctx := cmd.Context()
				online := a.probe(ctx)

				if clearErrors {
					if err := a.session.ClearErrors(ctx); err != nil {
						return err
					}
				}

				st := a.session.State()

				a.io.Printf("User:      %s\n", a.userID)
				a.io.Printf("Server:    %s (%s)\n", a.cfg.ServerURL, onlineLabel(online))
				a.io.Printf("Pending:   %d operations\n", len(st.PendingOperations))
				a.io.Printf("Errors:    %d sync errors\n", len(st.SyncErrors))
				if st.LastSyncTime > 0 {
					a.io.Printf("Last sync: %s\n", formatMillis(st.LastSyncTime))
				} else {
					a.io.Println("Last sync: never")
				}
				a.io.Printf("Auto-save: %s\n", onOff(st.AutoSaveEnabled))

				if verbose {
					for _, op := range st.PendingOperations {
						a.io.Printf("  #%d %s %s retries=%d\n", op.Seq, op.ID, op.Type, op.RetryCount)
					}
					for _, e := range st.SyncErrors {
						a.io.Printf("  error: %s\n", e)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearErrors, "clear-errors", false, "clear recorded sync errors")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list pending operations and errors")

	return cmd
}

// NewEventsCommand печатает журнал безопасности игрока с сервера
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	var (
		since       time.Duration
		minSeverity string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List security events recorded on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			severity := models.Severity(minSeverity)
			if severity != "" && !severity.Valid() {
				return fmt.Errorf("invalid severity %q", minSeverity)
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				events, err := a.client.ListSecurityEvents(cmd.Context(), a.userID, time.Now().Add(-since), severity)
				if err != nil {
					return err
				}
				if len(events) == 0 {
					a.io.Println("No security events")
					return nil
				}
				for _, e := range events {
					a.io.Printf("%s  %-8s  %s\n", formatMillis(e.Timestamp), e.Severity, e.EventType)
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&since, "since", 24*time.Hour, "how far back to look")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "", "minimum severity (low|medium|high|critical)")

	return cmd
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
