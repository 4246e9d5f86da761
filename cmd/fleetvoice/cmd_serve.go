package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/fleetvoice/internal/server"
	"github.com/yairfalse/fleetvoice/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var (
	serveListen  string
	serveStore   string
	serveDryRun  bool
	serveProfile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the voice skill over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (overrides server.listen)")
	serveCmd.Flags().StringVar(&serveStore, "session-store", "", "Session store: memory or bolt")
	serveCmd.Flags().BoolVar(&serveDryRun, "dry-run", false, "Find untagged instances without terminating them")
	serveCmd.Flags().StringVar(&serveProfile, "profile", "", "AWS shared config profile")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}
	if serveStore != "" {
		cfg.Session.Store = serveStore
	}
	if serveProfile != "" {
		cfg.AWS.Profile = serveProfile
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Workflow.DryRun = serveDryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogging(cfg)
	ctx := cmd.Context()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}
	tp, err := telemetry.NewProvider(ctx, cfg.OTEL, telemetry.WithReader(promExporter))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	inv, err := newInventory(ctx, cfg, logger, tp)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Session)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("session store close failed")
		}
	}()

	handler := newTurnHandler(inv, store, cfg, logger, tp)
	srv := server.New(cfg.Server.Listen, handler, promhttp.Handler(), logger)

	log.Info().
		Str("version", version).
		Str("listen", cfg.Server.Listen).
		Str("session_store", cfg.Session.Store).
		Bool("dry_run", cfg.Workflow.DryRun).
		Msg("fleetvoice starting")

	var g run.Group
	g.Add(func() error {
		srv.SetReady(true)
		return srv.ListenAndServe()
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http shutdown failed")
		}
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	err = g.Run()
	var sigErr run.SignalError
	if errors.As(err, &sigErr) {
		log.Info().Str("signal", sigErr.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}
