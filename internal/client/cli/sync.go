package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	clientsync "github.com/iudanet/minesync/internal/client/sync"
)

// flushRetryDelay пауза, пока фоновая обработка очереди не завершится
const flushRetryDelay = 50 * time.Millisecond

// NewLoadCommand загружает снапшот (local vs remote) и печатает его
func NewLoadCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the freshest snapshot from the local cache and the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				result, err := a.load(cmd.Context())
				if err != nil {
					return err
				}

				if result.IntegrityViolation {
					a.io.Println("Warning: cached snapshot failed integrity check and was reset")
				}
				snap := result.Snapshot
				a.io.Printf("Source:       %s\n", result.Source)
				a.io.Printf("Balance:      %.2f\n", snap.Balance)
				a.io.Printf("Total earned: %.2f\n", snap.TotalEarned)
				a.io.Printf("Energy:       %.2f/%.2f\n", snap.Energy, snap.MaxEnergy)
				a.io.Printf("Mining rate:  %.2f\n", snap.MiningRate)
				a.io.Printf("Stakes:       %d\n", len(snap.Stakes))
				if snap.LastUpdate > 0 {
					a.io.Printf("Updated:      %s\n", formatMillis(snap.LastUpdate))
				}
				return nil
			})
		},
	}
}

// NewFlushCommand отправляет офлайн очередь на сервер
func NewFlushCommand(opts *RootOptions) *cobra.Command {
	var discard bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Send queued operations to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				ctx := cmd.Context()
				before := a.queue.Len()

				if discard {
					if err := a.queue.Clear(ctx); err != nil {
						return err
					}
					a.io.Printf("Discarded %d operations\n", before)
					return nil
				}

				if !a.probe(ctx) {
					return fmt.Errorf("server is unreachable, %d operations stay queued: %w", before, clientsync.ErrOffline)
				}

				res, err := a.flushAll(ctx)
				if err != nil {
					return err
				}

				a.io.Printf("Processed %d of %d operations\n", before-res.Remaining, before)
				if res.Rejected+res.Dropped+res.Blocked+res.Invalid > 0 {
					a.io.Printf("Rejected: %d, dropped: %d, blocked: %d, invalid signature: %d\n",
						res.Rejected, res.Dropped, res.Blocked, res.Invalid)
				}
				a.io.Printf("Pending: %d\n", res.Remaining)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&discard, "discard", false, "drop all queued operations without sending them")

	return cmd
}

// flushAll обрабатывает очередь пачками, пока она не опустеет или
// очередной проход ничего не продвинет (повторяемые ошибки)
func (a *app) flushAll(ctx context.Context) (*clientsync.DrainResult, error) {
	total := &clientsync.DrainResult{Remaining: a.queue.Len()}

	for {
		res, err := a.session.Flush(ctx)
		if errors.Is(err, clientsync.ErrSyncInProgress) {
			select {
			case <-ctx.Done():
				return total, ctx.Err()
			case <-time.After(flushRetryDelay):
			}
			continue
		}
		if err != nil {
			return total, err
		}

		total.Succeeded += res.Succeeded
		total.Retried += res.Retried
		total.Dropped += res.Dropped
		total.Rejected += res.Rejected
		total.Blocked += res.Blocked
		total.Invalid += res.Invalid
		total.Remaining = res.Remaining

		if res.Remaining == 0 || res.Processed() == 0 {
			return total, nil
		}
	}
}

// NewReconcileCommand сверяет снапшот с сервером
func NewReconcileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the local snapshot with authoritative server values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				ctx := cmd.Context()
				if _, err := a.load(ctx); err != nil {
					return err
				}
				if !a.session.State().IsOnline {
					return fmt.Errorf("server is unreachable: %w", clientsync.ErrOffline)
				}

				// Сначала очередь, иначе сервер отстает от локальных значений
				if _, err := a.flushAll(ctx); err != nil {
					return err
				}

				result, err := a.session.Reconcile(ctx)
				if err != nil {
					return err
				}

				switch {
				case result.Skipped:
					a.io.Println("Nothing to reconcile")
				case len(result.Corrected) == 0:
					a.io.Println("Local snapshot matches the server")
				default:
					a.io.Printf("Corrected from server: %s\n", strings.Join(result.Corrected, ", "))
				}
				return a.printBalance()
			})
		},
	}
}

// NewAutoSaveCommand включает или выключает автосохранение
func NewAutoSaveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "autosave <on|off>",
		Short:     "Enable or disable periodic snapshot upload",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
			default:
				return fmt.Errorf("invalid value %q: must be on or off", args[0])
			}

			return withSession(cmd.Context(), opts, func(a *app) error {
				if err := a.session.SetAutoSave(cmd.Context(), enabled); err != nil {
					return err
				}
				a.io.Printf("Auto-save %s\n", args[0])
				return nil
			})
		},
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format(time.RFC3339)
}
