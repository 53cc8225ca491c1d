package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/interruptmeter/interruptmeter/server/internal/alerts"
	"github.com/interruptmeter/interruptmeter/server/internal/api"
	"github.com/interruptmeter/interruptmeter/server/internal/auth"
	"github.com/interruptmeter/interruptmeter/server/internal/config"
	"github.com/interruptmeter/interruptmeter/server/internal/metrics"
	"github.com/interruptmeter/interruptmeter/server/internal/ws"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard server",
		Long: `Serve the REST API under /api/v1/ (streak alerts on /api/v1/alerts),
Prometheus metrics on /metrics and dashboard pushes on /ws/stream. The config file is watched and a changed
category table is applied without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, rootOpts, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "HTTP port (overrides server.http_port)")

	return cmd
}

func runServe(ctx context.Context, rootOpts *RootOptions, opts *ServeOptions) error {
	e, err := openEnv(rootOpts)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg
	port := cfg.Server.HTTPPort
	if opts.Port != 0 {
		port = opts.Port
	}

	slog.Info("interruptmeter starting",
		"config", e.configFile,
		"http_port", port,
		"auth_mode", cfg.Server.Auth.Mode,
		"storage", cfg.Storage.Backend,
		"timezone", cfg.Server.Timezone,
	)

	guard := auth.APIKey(cfg.Server.Auth.Mode, cfg.Server.Auth.EffectiveHeader(), cfg.Server.Auth.Key())
	handler := api.New(e.meter, e.streaks, guard)

	hub := ws.New(handler, cfg.Server.BroadcastInterval)
	alertEngine := alerts.New(cfg.Alerts)
	handler.OnChange(func() {
		hub.Notify()
		alertEngine.Trigger()
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", handler)
	mux.Handle("/api/v1/alerts", alertEngine)
	mux.Handle("/ws/stream", hub)
	mux.Handle("/metrics", metrics.Handler(func() (metrics.Sample, error) {
		d, err := handler.Dashboard()
		if err != nil {
			return metrics.Sample{}, err
		}
		return metrics.Sample{
			Streaks:    d.Streaks,
			Iterations: d.Iterations,
			Stats:      e.meter.Stats(),
			Clients:    hub.Count(),
		}, nil
	}))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		hub.Run(egCtx)
		return nil
	})

	eg.Go(func() error {
		alertEngine.Run(egCtx, cfg.Server.BroadcastInterval, handler.Streaks)
		return nil
	})

	eg.Go(func() error {
		slog.Info("HTTP server listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egCtx.Done()
		slog.Info("interruptmeter shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if e.configFile != "" {
		eg.Go(func() error {
			err := config.Watch(egCtx, e.configFile, func(next *config.Config) {
				e.meter.SetStates(next.StateMap())
				slog.Info("config: category table reloaded", "path", e.configFile)
				hub.Notify()
			})
			if err != nil {
				slog.Warn("config: hot reload disabled", "path", e.configFile, "err", err)
			}
			return nil
		})
	}

	return eg.Wait()
}
