package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/skill"
)

var (
	invokeRequest   string
	invokeIntent    string
	invokeSlots     []string
	invokeRegion    string
	invokeSessionID string
	invokeDryRun    bool
)

// invokeCmd represents the invoke command
var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Dispatch one turn locally and print the response",
	Long: `Build a request envelope from flags, dispatch it through the skill
and print the JSON response.

Sessions are kept in the configured session store, so with the bolt
store a --session id carries the selected region across invocations.`,
	Example: `  fleetvoice invoke --request launch
  fleetvoice invoke --intent SetRegionIntent --slot Region=Oregon
  fleetvoice invoke --intent InstanceCountIntent --region Oregon
  fleetvoice invoke --intent TerminateUntaggedInstancesIntent --region Tokyo --dry-run`,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVar(&invokeRequest, "request", "intent", "Request type: launch, intent or ended")
	invokeCmd.Flags().StringVar(&invokeIntent, "intent", "", "Intent name for intent requests")
	invokeCmd.Flags().StringArrayVar(&invokeSlots, "slot", nil, "Intent slot as Name=Value (repeatable)")
	invokeCmd.Flags().StringVar(&invokeRegion, "region", "", "Spoken region already selected in the session")
	invokeCmd.Flags().StringVar(&invokeSessionID, "session", "", "Session id (a new session is started when empty)")
	invokeCmd.Flags().BoolVar(&invokeDryRun, "dry-run", false, "Find untagged instances without terminating them")
	rootCmd.AddCommand(invokeCmd)
}

// envelopeOptions describes one locally built turn.
type envelopeOptions struct {
	Request   string
	Intent    string
	Slots     map[string]string
	Region    string
	SessionID string
}

func runInvoke(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Workflow.DryRun = invokeDryRun
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slots, err := parseSlots(invokeSlots)
	if err != nil {
		return err
	}
	env, err := buildEnvelope(envelopeOptions{
		Request:   invokeRequest,
		Intent:    invokeIntent,
		Slots:     slots,
		Region:    invokeRegion,
		SessionID: invokeSessionID,
	})
	if err != nil {
		return err
	}

	logger := setupLogging(cfg)
	ctx := cmd.Context()

	inv, err := newInventory(ctx, cfg, logger, nil)
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

	resp, err := newTurnHandler(inv, store, cfg, logger, nil).Handle(ctx, env)
	if err != nil {
		return err
	}
	return writeResponse(cmd.OutOrStdout(), resp)
}

// parseSlots turns Name=Value pairs into a slot map.
func parseSlots(pairs []string) (map[string]string, error) {
	slots := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid slot %q: want Name=Value", pair)
		}
		slots[name] = value
	}
	return slots, nil
}

// buildEnvelope builds the request envelope the voice platform would post.
func buildEnvelope(opts envelopeOptions) (skill.RequestEnvelope, error) {
	req := skill.Request{
		RequestID: "fleetvoice.request." + uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Locale:    "en-US",
	}

	switch opts.Request {
	case "launch":
		req.Type = skill.RequestLaunch
	case "ended":
		req.Type = skill.RequestSessionEnded
		req.Reason = "USER_INITIATED"
	case "intent", "":
		if opts.Intent == "" {
			return skill.RequestEnvelope{}, fmt.Errorf("--intent is required for intent requests")
		}
		req.Type = skill.RequestIntent
		req.Intent = &skill.Intent{Name: opts.Intent}
		if len(opts.Slots) > 0 {
			req.Intent.Slots = make(map[string]skill.Slot, len(opts.Slots))
			for name, value := range opts.Slots {
				req.Intent.Slots[name] = skill.Slot{Name: name, Value: value}
			}
		}
	default:
		return skill.RequestEnvelope{}, fmt.Errorf("unknown request type %q (want launch, intent or ended)", opts.Request)
	}

	sessionID := opts.SessionID
	isNew := sessionID == ""
	if isNew {
		sessionID = "fleetvoice.session." + uuid.NewString()
	}

	var attrs session.Attributes
	if opts.Region != "" {
		attrs = attrs.WithRegion(opts.Region)
	}

	return skill.RequestEnvelope{
		Version: "1.0",
		Session: skill.Session{
			New:         isNew,
			SessionID:   sessionID,
			Application: skill.Application{ApplicationID: "fleetvoice.cli"},
			Attributes:  attrs,
		},
		Request: req,
	}, nil
}

// writeResponse prints the response envelope as indented JSON.
// SessionEnded turns have no response and print nothing.
func writeResponse(w io.Writer, resp *skill.ResponseEnvelope) error {
	if resp == nil {
		return nil
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	return nil
}
