package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yairfalse/fleetvoice/internal/config"
	"github.com/yairfalse/fleetvoice/internal/inventory"
	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/skill"
	"github.com/yairfalse/fleetvoice/internal/telemetry"
	"github.com/yairfalse/fleetvoice/internal/workflow"
)

// openStore opens the configured session store.
func openStore(cfg config.SessionConfig) (session.Store, error) {
	switch cfg.Store {
	case config.StoreBolt:
		return session.OpenBolt(cfg.Path)
	case config.StoreMemory, "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Store)
	}
}

// newTurnHandler wires the dispatcher, workflow and session store together.
func newTurnHandler(inv inventory.Client, store session.Store, cfg *config.Config, logger zerolog.Logger, tp *telemetry.Provider) skill.Handler {
	terminator := workflow.New(inv, logger,
		workflow.WithDryRun(cfg.Workflow.DryRun),
		workflow.WithTelemetry(tp),
	)
	dispatcher := skill.New(inv, terminator, logger, tp)
	return skill.NewStateful(dispatcher, store, logger)
}

// newInventory builds the EC2 inventory client from config.
func newInventory(ctx context.Context, cfg *config.Config, logger zerolog.Logger, tp *telemetry.Provider) (*inventory.EC2, error) {
	inv, err := inventory.New(ctx, inventory.Config{
		Profile: cfg.AWS.Profile,
		Timeout: cfg.AWS.CallTimeout,
	}, logger, tp)
	if err != nil {
		return nil, fmt.Errorf("create inventory client: %w", err)
	}
	return inv, nil
}
