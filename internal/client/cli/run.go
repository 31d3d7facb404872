package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// DefaultProbeInterval период проверки связи с сервером в режиме run
const DefaultProbeInterval = 10 * time.Second

// RunOptions флаги команды run
type RunOptions struct {
	MetricsAddr   string
	ProbeInterval time.Duration
}

// NewRunCommand держит сессию открытой: таймеры синхронизации и сверки,
// периодическая проверка связи. Завершается по сигналу.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	runOpts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Keep the session running with periodic sync and reconciliation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), opts, func(a *app) error {
				return a.run(cmd.Context(), runOpts)
			})
		},
	}

	cmd.Flags().StringVar(&runOpts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address (e.g. :9100)")
	cmd.Flags().DurationVar(&runOpts.ProbeInterval, "probe-interval", DefaultProbeInterval, "connectivity check interval")

	return cmd
}

func (a *app) run(ctx context.Context, runOpts *RunOptions) error {
	if runOpts.ProbeInterval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}

	result, err := a.load(ctx)
	if err != nil {
		return err
	}
	a.io.Printf("Session for %s loaded from %s, balance %.2f\n", a.userID, result.Source, result.Snapshot.Balance)

	if runOpts.MetricsAddr != "" {
		stop := a.serveMetrics(runOpts.MetricsAddr)
		defer stop()
	}

	a.session.Start(ctx)

	ticker := time.NewTicker(runOpts.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			st := a.session.State()
			a.io.Printf("Stopping, %d operations pending\n", len(st.PendingOperations))
			return nil
		case <-ticker.C:
			a.probe(ctx)
		}
	}
}

// serveMetrics поднимает HTTP сервер с /metrics и возвращает функцию остановки
func (a *app) serveMetrics(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("Serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to stop metrics server", "error", err)
		}
	}
}
