// Package workflow finds running instances without identifying tags in the
// selected region and terminates them.
//
// A run moves AwaitingRegion -> Listing -> Deciding -> Terminating -> Done,
// and can end in Errored from Listing or Terminating. Terminating only ever
// sees the ids classified from the list result of the same run.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/fleetvoice/internal/filter"
	"github.com/yairfalse/fleetvoice/internal/inventory"
	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/telemetry"
	"github.com/yairfalse/fleetvoice/pkg/instance"
	"github.com/yairfalse/fleetvoice/pkg/region"
)

// Spoken outcomes.
const (
	MsgNoRegion = "I'm not sure what region you would like to use. Please select a region first by saying, " +
		"Set the region to Virginia."
	MsgListFailed      = "Something went wrong while trying to find untagged instances. Please try again."
	MsgNoneFound       = "I could not find any untagged instances."
	MsgTerminateFailed = "Something went wrong while trying to terminate the untagged instances. Please try again."
)

// State is a workflow state.
type State int

const (
	StateAwaitingRegion State = iota
	StateListing
	StateDeciding
	StateTerminating
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateAwaitingRegion:
		return "awaiting_region"
	case StateListing:
		return "listing"
	case StateDeciding:
		return "deciding"
	case StateTerminating:
		return "terminating"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// Result is the outcome of one run.
type Result struct {
	State      State
	Region     string   // spoken region name
	RegionID   string   // provider region identifier
	Untagged   []string // ids classified as untagged, provider order
	Terminated bool
	DryRun     bool
	Err        error // set only in StateErrored
	Speech     string
}

// Terminator runs the untagged-termination workflow.
type Terminator struct {
	client    inventory.Client
	logger    zerolog.Logger
	telemetry *telemetry.Provider
	dryRun    bool
}

// Option customizes a Terminator.
type Option func(*Terminator)

// WithDryRun stops the workflow after classification.
func WithDryRun(dryRun bool) Option {
	return func(t *Terminator) {
		t.dryRun = dryRun
	}
}

// WithTelemetry records spans and metrics for each run.
func WithTelemetry(tp *telemetry.Provider) Option {
	return func(t *Terminator) {
		t.telemetry = tp
	}
}

// New returns a Terminator using client for all provider calls.
func New(client inventory.Client, logger zerolog.Logger, opts ...Option) *Terminator {
	t := &Terminator{
		client: client,
		logger: logger.With().Str("component", "workflow").Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run executes one workflow invocation for the session's selected region.
// Provider failures are reported in the Result, never returned.
func (t *Terminator) Run(ctx context.Context, attrs session.Attributes) Result {
	ctx, span := t.telemetry.StartSpan(ctx, "workflow.terminate_untagged")
	defer span.End()

	res := Result{State: StateAwaitingRegion, DryRun: t.dryRun}
	var instances []instance.Instance

	for !res.State.Terminal() {
		from := res.State

		switch res.State {
		case StateAwaitingRegion:
			spoken, ok := attrs.SelectedRegion()
			if !ok {
				res.State = StateDone
				res.Speech = MsgNoRegion
				break
			}
			res.Region = spoken
			res.RegionID = region.Resolve(spoken)
			span.SetAttributes(attribute.String("region", res.RegionID))
			res.State = StateListing

		case StateListing:
			listed, err := t.client.ListRunningInstances(ctx, res.RegionID)
			if err != nil {
				t.fail(&res, err, MsgListFailed)
				break
			}
			instances = listed
			t.logger.Debug().
				Ctx(ctx).
				Str("region_id", res.RegionID).
				Strs("running_ids", instance.IDs(listed)).
				Msg("listed running instances")
			res.State = StateDeciding

		case StateDeciding:
			res.Untagged = filter.UntaggedIDs(instances)
			t.logger.Info().
				Ctx(ctx).
				Str("region_id", res.RegionID).
				Int("running", len(instances)).
				Strs("untagged", res.Untagged).
				Msg("classified instances")

			switch {
			case len(res.Untagged) == 0:
				res.State = StateDone
				res.Speech = MsgNoneFound
			case t.dryRun:
				res.State = StateDone
				res.Speech = dryRunMessage(len(res.Untagged))
			default:
				res.State = StateTerminating
			}

		case StateTerminating:
			if err := t.client.TerminateInstances(ctx, res.RegionID, res.Untagged); err != nil {
				t.fail(&res, err, MsgTerminateFailed)
				break
			}
			res.Terminated = true
			res.State = StateDone
			res.Speech = terminatedMessage(len(res.Untagged))
			t.telemetry.RecordTerminated(ctx, res.RegionID, len(res.Untagged))
		}

		t.logger.Debug().
			Ctx(ctx).
			Stringer("from", from).
			Stringer("to", res.State).
			Msg("workflow transition")
	}

	if res.State == StateErrored {
		span.SetStatus(codes.Error, res.Err.Error())
	}
	return res
}

func (t *Terminator) fail(res *Result, err error, speech string) {
	res.State = StateErrored
	res.Err = err
	res.Speech = speech

	event := t.logger.Error().
		Err(err).
		Str("region", res.Region).
		Str("region_id", res.RegionID)
	var failure *inventory.Failure
	if errors.As(err, &failure) {
		event = event.Str("op", failure.Op).Str("code", failure.Code)
	}
	event.Msg("untagged instance workflow failed")
}

func terminatedMessage(n int) string {
	if n == 1 {
		return "1 untagged instance was found and terminated."
	}
	return fmt.Sprintf("%d untagged instances were found and terminated.", n)
}

func dryRunMessage(n int) string {
	if n == 1 {
		return "1 untagged instance was found. Dry run is enabled, so nothing was terminated."
	}
	return fmt.Sprintf("%d untagged instances were found. Dry run is enabled, so nothing was terminated.", n)
}
