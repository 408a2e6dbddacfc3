package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/logsentry/logsentry/internal/config"
	"github.com/logsentry/logsentry/internal/detector"
	"github.com/logsentry/logsentry/internal/handlers"
	"github.com/logsentry/logsentry/internal/logging"
	"github.com/logsentry/logsentry/internal/notifier"
	"github.com/logsentry/logsentry/internal/parser"
	"github.com/logsentry/logsentry/internal/server"
	"github.com/logsentry/logsentry/internal/storage"
	"github.com/logsentry/logsentry/internal/tracker"
	"github.com/logsentry/logsentry/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher and the dashboard API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format)
	logging.SetDefault(log)

	ctx := context.Background()

	if err := runMigrations("migrations", cfg.Database.Postgres); err != nil {
		return err
	}
	log.Info("database migrations applied")

	store, err := storage.New(ctx, cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	det := detector.New(detector.Config{
		BruteForceThreshold:    cfg.Detection.BruteForceThreshold,
		BruteForceWindow:       cfg.Detection.BruteForceWindow,
		PortScanMinConnections: cfg.Detection.PortScanMinConnections,
		PortScanMinPorts:       cfg.Detection.PortScanMinPorts,
	})

	var failures parser.FailureTracker = tracker.NoOp{}
	if cfg.Redis.Enabled {
		tr, err := tracker.New(cfg.Redis.URL, det)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer tr.Close()
		failures = tr
	} else {
		log.Warn("redis disabled, volume-based detection is off")
	}

	var alerts parser.AlertSink = notifier.NoOp{}
	if cfg.NATS.Enabled {
		natsCfg := notifier.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		nt, err := notifier.New(natsCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer nt.Close()
		alerts = nt
	}

	var svc *watcher.Service
	if cfg.Watcher.Enabled {
		sources, err := buildSources(cfg.Watcher.Sources, store, det, failures, alerts, log)
		if err != nil {
			return err
		}

		svc = watcher.NewService(sources, cfg.Watcher.PollInterval, log)
		if cfg.Watcher.ProcessExisting {
			svc.ProcessExisting(ctx)
		}
		svc.Start(ctx)
		defer svc.Stop()
	} else {
		log.Warn("watcher disabled, serving queries only")
	}

	h := handlers.New(store, log)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		log.Info("shutting down", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// buildSources binds each configured source to the parser for its kind.
func buildSources(configs []config.SourceConfig, store *storage.Store, det *detector.Detector, failures parser.FailureTracker, alerts parser.AlertSink, log *logging.Logger) ([]watcher.Source, error) {
	sources := make([]watcher.Source, 0, len(configs))
	for _, src := range configs {
		var p parser.LineParser
		switch src.Kind {
		case "ssh":
			p = parser.NewSSHParser(store, failures, alerts, log)
		case "web-access":
			p = parser.NewAccessParser(store, det, alerts, log)
		case "web-error":
			p = parser.NewErrorParser(store, log)
		default:
			return nil, fmt.Errorf("unknown source kind %q for source %q", src.Kind, src.Name)
		}

		sources = append(sources, watcher.Source{
			Name:   src.Name,
			Path:   src.Path,
			Parser: p,
		})
	}
	return sources, nil
}
