package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/fleetvoice/internal/config"
	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/skill"
	"github.com/yairfalse/fleetvoice/pkg/instance"
)

// stubInventory answers every call with fixed data.
type stubInventory struct {
	count      int
	terminated []string
}

func (s *stubInventory) ListRunningInstances(_ context.Context, _ string) ([]instance.Instance, error) {
	return []instance.Instance{{ID: "i-1", State: instance.StateRunning}}, nil
}

func (s *stubInventory) CountRunningInstances(_ context.Context, _ string) (int, error) {
	return s.count, nil
}

func (s *stubInventory) TerminateInstances(_ context.Context, _ string, ids []string) error {
	s.terminated = append(s.terminated, ids...)
	return nil
}

func TestParseSlots(t *testing.T) {
	slots, err := parseSlots([]string{"Region=Oregon", "Empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Region": "Oregon", "Empty": ""}, slots)

	_, err = parseSlots([]string{"Oregon"})
	assert.Error(t, err)

	_, err = parseSlots([]string{"=Oregon"})
	assert.Error(t, err)
}

func TestBuildEnvelope_Intent(t *testing.T) {
	env, err := buildEnvelope(envelopeOptions{
		Intent: skill.IntentSetRegion,
		Slots:  map[string]string{skill.SlotRegion: "Tokyo"},
	})
	require.NoError(t, err)

	assert.Equal(t, skill.RequestIntent, env.Request.Type)
	assert.True(t, strings.HasPrefix(env.Request.RequestID, "fleetvoice.request."))
	assert.True(t, env.Session.New)
	assert.True(t, strings.HasPrefix(env.Session.SessionID, "fleetvoice.session."))
	require.NotNil(t, env.Request.Intent)
	value, ok := env.Request.Intent.SlotValue(skill.SlotRegion)
	assert.True(t, ok)
	assert.Equal(t, "Tokyo", value)
	assert.True(t, env.Session.Attributes.IsZero())
}

func TestBuildEnvelope_ExistingSession(t *testing.T) {
	env, err := buildEnvelope(envelopeOptions{
		Request:   "launch",
		Region:    "Oregon",
		SessionID: "abc",
	})
	require.NoError(t, err)

	assert.Equal(t, skill.RequestLaunch, env.Request.Type)
	assert.False(t, env.Session.New)
	assert.Equal(t, "abc", env.Session.SessionID)
	spoken, ok := env.Session.Attributes.SelectedRegion()
	assert.True(t, ok)
	assert.Equal(t, "Oregon", spoken)
}

func TestBuildEnvelope_Errors(t *testing.T) {
	_, err := buildEnvelope(envelopeOptions{Request: "intent"})
	assert.Error(t, err)

	_, err = buildEnvelope(envelopeOptions{Request: "bogus"})
	assert.Error(t, err)
}

func TestBuildEnvelope_Ended(t *testing.T) {
	env, err := buildEnvelope(envelopeOptions{Request: "ended", SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, skill.RequestSessionEnded, env.Request.Type)
	assert.Nil(t, env.Request.Intent)
}

func TestWriteResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResponse(&buf, nil))
	assert.Empty(t, buf.String())

	resp := &skill.ResponseEnvelope{Version: "1.0"}
	require.NoError(t, writeResponse(&buf, resp))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "1.0", decoded["version"])
}

func TestPrintRegions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRegions(&buf))

	out := buf.String()
	assert.Contains(t, out, "SPOKEN")
	assert.Contains(t, out, "Oregon")
	assert.Contains(t, out, "us-west-2")
	assert.Contains(t, out, "Seoul")
	assert.Contains(t, out, "ap-northeast-2")
	assert.Contains(t, out, "(anything else)")
}

func TestLoadConfig_Defaults(t *testing.T) {
	configPath, debug = "", false
	t.Cleanup(func() { configPath, debug = "", false })

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, "info", cfg.Log.Level)

	debug = true
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), "missing.toml")
	t.Cleanup(func() { configPath = "" })

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	store, err := openStore(config.SessionConfig{Store: config.StoreMemory})
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, store)
	require.NoError(t, store.Close())

	store, err = openStore(config.SessionConfig{
		Store: config.StoreBolt,
		Path:  filepath.Join(t.TempDir(), "sessions.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &session.BoltStore{}, store)
	require.NoError(t, store.Close())

	_, err = openStore(config.SessionConfig{Store: "redis"})
	assert.Error(t, err)
}

func TestTurnHandler_RegionSurvivesAcrossTurns(t *testing.T) {
	ctx := context.Background()
	inv := &stubInventory{count: 3}
	store := session.NewMemoryStore()
	handler := newTurnHandler(inv, store, config.Default(), zerolog.Nop(), nil)

	setEnv, err := buildEnvelope(envelopeOptions{
		Intent:    skill.IntentSetRegion,
		Slots:     map[string]string{skill.SlotRegion: "Oregon"},
		SessionID: "s-1",
	})
	require.NoError(t, err)
	_, err = handler.Handle(ctx, setEnv)
	require.NoError(t, err)

	countEnv, err := buildEnvelope(envelopeOptions{
		Intent:    skill.IntentInstanceCount,
		SessionID: "s-1",
	})
	require.NoError(t, err)
	resp, err := handler.Handle(ctx, countEnv)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "There are currently 3 instances running.", resp.Response.OutputSpeech.Text)
}

func TestTurnHandler_DryRun(t *testing.T) {
	inv := &stubInventory{}
	cfg := config.Default()
	cfg.Workflow.DryRun = true
	handler := newTurnHandler(inv, session.NewMemoryStore(), cfg, zerolog.Nop(), nil)

	env, err := buildEnvelope(envelopeOptions{
		Intent: skill.IntentTerminateUntagged,
		Region: "Virginia",
	})
	require.NoError(t, err)
	resp, err := handler.Handle(context.Background(), env)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Empty(t, inv.terminated)
	assert.Contains(t, resp.Response.OutputSpeech.Text, "Dry run")
}

func TestTurnHandler_InvalidIntent(t *testing.T) {
	handler := newTurnHandler(&stubInventory{}, session.NewMemoryStore(), config.Default(), zerolog.Nop(), nil)

	env, err := buildEnvelope(envelopeOptions{Intent: "OrderPizzaIntent"})
	require.NoError(t, err)
	_, err = handler.Handle(context.Background(), env)
	assert.ErrorIs(t, err, skill.ErrInvalidIntent)
}
