package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/fleetvoice/internal/session"
	"github.com/yairfalse/fleetvoice/internal/skill"
)

type mockHandler struct {
	got  skill.RequestEnvelope
	resp *skill.ResponseEnvelope
	err  error
}

func (m *mockHandler) Handle(_ context.Context, env skill.RequestEnvelope) (*skill.ResponseEnvelope, error) {
	m.got = env
	return m.resp, m.err
}

func newTestServer(h skill.Handler) *Server {
	return New(":0", h, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	}), zerolog.Nop())
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHandleHealthz(t *testing.T) {
	w := do(t, newTestServer(&mockHandler{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
}

func TestHandleReadyz(t *testing.T) {
	s := newTestServer(&mockHandler{})

	w := do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", w.Body.String())

	s.SetReady(true)
	w = do(t, s, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestMetricsMounted(t *testing.T) {
	w := do(t, newTestServer(&mockHandler{}), http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestHandleSkill(t *testing.T) {
	h := &mockHandler{resp: &skill.ResponseEnvelope{
		Version:           "1.0",
		SessionAttributes: session.Attributes{Region: "Virginia"},
		Response: skill.Speechlet{
			OutputSpeech: skill.OutputSpeech{Type: "PlainText", Text: "You set the region to Virginia."},
		},
	}}
	body := `{"session":{"sessionId":"s-1"},"request":{"type":"IntentRequest","requestId":"r-1","intent":{"name":"SetRegionIntent","slots":{"Region":{"name":"Region","value":"Virginia"}}}}}`

	w := do(t, newTestServer(h), http.MethodPost, "/skill", body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json;charset=UTF-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "s-1", h.got.Session.SessionID)
	require.NotNil(t, h.got.Request.Intent)
	assert.Equal(t, "SetRegionIntent", h.got.Request.Intent.Name)

	var resp skill.ResponseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Virginia", resp.SessionAttributes.Region)
	assert.Equal(t, "You set the region to Virginia.", resp.Response.OutputSpeech.Text)
}

func TestHandleSkill_SessionEnded(t *testing.T) {
	w := do(t, newTestServer(&mockHandler{}), http.MethodPost, "/skill", `{"request":{"type":"SessionEndedRequest"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleSkill_InvalidIntent(t *testing.T) {
	h := &mockHandler{err: errors.Join(skill.ErrInvalidIntent, errors.New("OrderPizzaIntent"))}

	w := do(t, newTestServer(h), http.MethodPost, "/skill", `{"request":{"type":"IntentRequest","intent":{"name":"OrderPizzaIntent"}}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid intent")
}

func TestHandleSkill_InternalError(t *testing.T) {
	h := &mockHandler{err: errors.New("unexpected")}

	w := do(t, newTestServer(h), http.MethodPost, "/skill", `{"request":{"type":"LaunchRequest"}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleSkill_BadJSON(t *testing.T) {
	w := do(t, newTestServer(&mockHandler{}), http.MethodPost, "/skill", `{"request":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleSkill_MethodNotAllowed(t *testing.T) {
	w := do(t, newTestServer(&mockHandler{}), http.MethodGet, "/skill", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}
