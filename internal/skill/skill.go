// Package skill dispatches voice-platform requests to the fleet handlers
// and builds the response envelope.
package skill

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/yairfalse/fleetvoice/internal/inventory"
	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/telemetry"
	"github.com/yairfalse/fleetvoice/internal/workflow"
	"github.com/yairfalse/fleetvoice/pkg/region"
)

// Intent names, as configured in the voice platform's interaction model.
const (
	IntentInstanceCount     = "InstanceCountIntent"
	IntentSetRegion         = "SetRegionIntent"
	IntentGetRegion         = "GetRegionIntent"
	IntentTerminateUntagged = "TerminateUntaggedInstancesIntent"
	IntentHelp              = "AMAZON.HelpIntent"

	// SlotRegion carries the spoken region name for SetRegionIntent.
	SlotRegion = "Region"
)

// Protocol failures. These abort the turn instead of producing speech.
var (
	ErrInvalidIntent  = errors.New("invalid intent")
	ErrInvalidRequest = errors.New("invalid request type")
)

// Outcomes recorded per handled intent.
const (
	outcomeOK            = "ok"
	outcomeUserInput     = "user_input"
	outcomeRemoteFailure = "remote_failure"
)

const (
	welcomeTitle  = "Alexa AWS Admin"
	welcomeSpeech = "Welcome to the Alexa AWS Administration Center. " +
		"Select a region to use by saying, set the region to Virginia."
	welcomeReprompt = "Select a region by saying, set the region to Virginia."

	setRegionSpeech = "You set the region to %s. You can now find out " +
		"how many instances are running in this region by saying, how many instances are running?"
	setRegionReprompt = "You can find out how many instances are running this region by saying, " +
		"how many instances are running?"
	setRegionUnknownSpeech   = "I'm not sure what region you selected. Please try again."
	setRegionUnknownReprompt = "I'm not sure what region you selected. You can set the selected region by saying, " +
		"Set the region to Virginia."

	getRegionSpeech     = "Your region is currently set to %s."
	getRegionNoneSpeech = "I'm not sure what region you would like to select. You can select a region by saying, " +
		"Set the region to Virginia."

	countOneSpeech    = "There is currently 1 instance running."
	countManySpeech   = "There are currently %d instances running."
	countNoneSpeech   = "There are currently no instances running."
	countFailedSpeech = "Something went wrong while trying to count the running instances. Please try again."
)

// Dispatcher routes one request to exactly one handler.
type Dispatcher struct {
	client     inventory.Client
	terminator *workflow.Terminator
	logger     zerolog.Logger
	telemetry  *telemetry.Provider
	handlers   map[string]handlerFunc
}

// New returns a Dispatcher. The terminator runs TerminateUntaggedInstancesIntent;
// client serves the instance count.
func New(client inventory.Client, terminator *workflow.Terminator, logger zerolog.Logger, tp *telemetry.Provider) *Dispatcher {
	d := &Dispatcher{
		client:     client,
		terminator: terminator,
		logger:     logger.With().Str("component", "skill").Logger(),
		telemetry:  tp,
	}
	d.handlers = map[string]handlerFunc{
		IntentInstanceCount:     d.instanceCount,
		IntentSetRegion:         d.setRegion,
		IntentGetRegion:         d.getRegion,
		IntentTerminateUntagged: d.terminateUntagged,
		IntentHelp:              d.welcome,
	}
	return d
}

// turn is what every handler produces.
type turn struct {
	attrs     session.Attributes
	speechlet Speechlet
	outcome   string
}

type handlerFunc func(ctx context.Context, intent Intent, attrs session.Attributes) turn

// Handle processes one request envelope. A SessionEndedRequest yields a nil
// response. Unknown request types and intents return an error wrapping
// ErrInvalidRequest or ErrInvalidIntent.
func (d *Dispatcher) Handle(ctx context.Context, env RequestEnvelope) (*ResponseEnvelope, error) {
	logger := d.logger.With().
		Str("request_id", env.Request.RequestID).
		Str("session_id", env.Session.SessionID).
		Logger()

	if env.Session.New {
		logger.Info().Str("application_id", env.Session.Application.ApplicationID).Msg("session started")
	}

	switch env.Request.Type {
	case RequestLaunch:
		logger.Info().Msg("launch")
		t := d.welcome(ctx, Intent{}, env.Session.Attributes)
		return buildResponse(t.attrs, t.speechlet), nil

	case RequestIntent:
		return d.onIntent(ctx, logger, env)

	case RequestSessionEnded:
		logger.Info().Str("reason", env.Request.Reason).Msg("session ended")
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidRequest, env.Request.Type)
	}
}

func (d *Dispatcher) onIntent(ctx context.Context, logger zerolog.Logger, env RequestEnvelope) (*ResponseEnvelope, error) {
	if env.Request.Intent == nil {
		return nil, fmt.Errorf("%w: intent request without intent", ErrInvalidIntent)
	}
	intent := *env.Request.Intent

	handler, ok := d.handlers[intent.Name]
	if !ok {
		d.telemetry.RecordIntent(ctx, "unknown", "invalid")
		return nil, fmt.Errorf("%w: %q", ErrInvalidIntent, intent.Name)
	}

	ctx, span := d.telemetry.StartSpan(ctx, "skill."+intent.Name)
	defer span.End()

	logger.Info().Str("intent", intent.Name).Msg("intent")
	t := handler(ctx, intent, env.Session.Attributes)
	d.telemetry.RecordIntent(ctx, intent.Name, t.outcome)

	return buildResponse(t.attrs, t.speechlet), nil
}

func (d *Dispatcher) welcome(_ context.Context, _ Intent, attrs session.Attributes) turn {
	return turn{
		attrs:     attrs,
		speechlet: buildSpeechlet(welcomeTitle, welcomeSpeech, text(welcomeReprompt), false),
		outcome:   outcomeOK,
	}
}

func (d *Dispatcher) setRegion(_ context.Context, intent Intent, attrs session.Attributes) turn {
	spoken, ok := intent.SlotValue(SlotRegion)
	if !ok {
		return turn{
			attrs:     attrs,
			speechlet: buildSpeechlet(intent.Name, setRegionUnknownSpeech, text(setRegionUnknownReprompt), false),
			outcome:   outcomeUserInput,
		}
	}

	if !region.Known(spoken) {
		d.logger.Warn().
			Str("region", spoken).
			Str("region_id", region.Default).
			Msg("unrecognized region, falling back to default")
	}

	return turn{
		attrs:     attrs.WithRegion(spoken),
		speechlet: buildSpeechlet(intent.Name, fmt.Sprintf(setRegionSpeech, spoken), text(setRegionReprompt), false),
		outcome:   outcomeOK,
	}
}

func (d *Dispatcher) getRegion(_ context.Context, intent Intent, attrs session.Attributes) turn {
	spoken, ok := attrs.SelectedRegion()
	if !ok {
		return turn{
			attrs:     attrs,
			speechlet: buildSpeechlet(intent.Name, getRegionNoneSpeech, nil, false),
			outcome:   outcomeUserInput,
		}
	}

	return turn{
		attrs:     attrs,
		speechlet: buildSpeechlet(intent.Name, fmt.Sprintf(getRegionSpeech, spoken), nil, true),
		outcome:   outcomeOK,
	}
}

func (d *Dispatcher) instanceCount(ctx context.Context, intent Intent, attrs session.Attributes) turn {
	spoken, ok := attrs.SelectedRegion()
	if !ok {
		return turn{
			attrs:     attrs,
			speechlet: buildSpeechlet(intent.Name, workflow.MsgNoRegion, nil, false),
			outcome:   outcomeUserInput,
		}
	}

	regionID := region.Resolve(spoken)
	d.logger.Info().Str("region", spoken).Str("region_id", regionID).Msg("counting running instances")

	count, err := d.client.CountRunningInstances(ctx, regionID)
	if err != nil {
		d.logger.Error().Err(err).Str("region_id", regionID).Msg("count running instances failed")
		return turn{
			attrs:     attrs,
			speechlet: buildSpeechlet(intent.Name, countFailedSpeech, nil, false),
			outcome:   outcomeRemoteFailure,
		}
	}

	return turn{
		attrs:     attrs,
		speechlet: buildSpeechlet(intent.Name, countSpeech(count), nil, false),
		outcome:   outcomeOK,
	}
}

func countSpeech(count int) string {
	switch {
	case count == 1:
		return countOneSpeech
	case count > 1:
		return fmt.Sprintf(countManySpeech, count)
	default:
		return countNoneSpeech
	}
}

func (d *Dispatcher) terminateUntagged(ctx context.Context, intent Intent, attrs session.Attributes) turn {
	res := d.terminator.Run(ctx, attrs)

	outcome := outcomeOK
	switch {
	case res.State == workflow.StateErrored:
		outcome = outcomeRemoteFailure
	case res.RegionID == "" || len(res.Untagged) == 0:
		outcome = outcomeUserInput
	}

	return turn{
		attrs:     attrs,
		speechlet: buildSpeechlet(intent.Name, res.Speech, nil, false),
		outcome:   outcome,
	}
}
