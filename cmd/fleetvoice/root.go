package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/fleetvoice/internal/config"
	"github.com/yairfalse/fleetvoice/internal/telemetry"
)

var (
	version = "0.1.0"

	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "fleetvoice",
		Short: "Voice-driven EC2 fleet administration",
		Long: `fleetvoice - voice-driven EC2 fleet administration

fleetvoice serves a voice skill that remembers a selected region for the
session, reports how many instances are running there, and terminates
running instances that carry no identifying tags.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`fleetvoice {{.Version}}
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// loadConfig reads the config file if one was given, otherwise defaults.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// setupLogging configures the global logger and returns it.
func setupLogging(cfg *config.Config) zerolog.Logger {
	logger := telemetry.NewLogger(os.Stderr, cfg.OTEL.ServiceName, cfg.Log.Level, true)
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Log.Level))
	log.Logger = logger
	return logger
}
