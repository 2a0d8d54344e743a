package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/energy-advisor/internal/server"
	"github.com/ogulcanaydogan/energy-advisor/pkg/alerts"
	"github.com/ogulcanaydogan/energy-advisor/pkg/energy"
	"github.com/ogulcanaydogan/energy-advisor/pkg/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the battery monitor and the HTTP API",
	Long: `Start the periodic battery monitor and serve the advisor API.

The monitor refreshes the battery every energy.tick_interval. Analyses are
requested with POST /api/v1/analysis and Prometheus metrics are exposed on
/metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "Listen address (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := initApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	events, unsubscribe := a.monitor.Model().Subscribe(16)
	defer unsubscribe()
	go watchEvents(ctx, events, a.dispatcher, a.metrics)

	if err := a.monitor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.monitor.Stop(); err != nil {
			a.logger.Error("stop monitor", "error", err)
		}
	}()

	apiServer := server.NewServer(server.Deps{
		Monitor:      a.monitor,
		Orchestrator: a.orch,
		Gate:         a.gate,
		Usage:        a.usage,
		History:      a.store,
		Guard:        a.guard,
		Metrics:      a.metrics,
		Location:     a.location,
	}, a.logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      apiServer.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("advisor started",
			"listen", cfg.Server.Listen,
			"remote", cfg.Remote.Kind,
			"cache_backend", cfg.Cache.Backend,
		)
		fmt.Fprintf(os.Stderr, "Energy Advisor listening on %s\n", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		a.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// watchEvents mirrors battery events into the level gauge and forwards them
// to the battery alert watcher.
func watchEvents(ctx context.Context, events <-chan energy.Event, d *alerts.Dispatcher, m *metrics.Metrics) {
	forward := make(chan energy.Event, cap(events))
	defer close(forward)
	go alerts.WatchBattery(ctx, forward, d)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.SetBattery(ev.Snapshot.CurrentLevel)
			select {
			case forward <- ev:
			default:
			}
		}
	}
}
