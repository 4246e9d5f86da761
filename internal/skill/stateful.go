package skill

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/yairfalse/fleetvoice/internal/session"
)

// Handler handles one turn.
type Handler interface {
	Handle(ctx context.Context, env RequestEnvelope) (*ResponseEnvelope, error)
}

// Stateful wraps a Handler with a session store for clients that do not
// echo sessionAttributes back. Attributes in the envelope always win; the
// store is consulted only when the envelope carries none, and the entry is
// dropped when the session ends, either by SessionEndedRequest or by a
// response that ends the session. Store errors are logged, not returned.
type Stateful struct {
	next   Handler
	store  session.Store
	logger zerolog.Logger
}

// NewStateful returns a Stateful handler.
func NewStateful(next Handler, store session.Store, logger zerolog.Logger) *Stateful {
	return &Stateful{
		next:   next,
		store:  store,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Handle implements Handler.
func (s *Stateful) Handle(ctx context.Context, env RequestEnvelope) (*ResponseEnvelope, error) {
	id := env.Session.SessionID
	if id == "" {
		return s.next.Handle(ctx, env)
	}

	if env.Session.Attributes.IsZero() && env.Request.Type != RequestSessionEnded {
		attrs, found, err := s.store.Get(ctx, id)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("session_id", id).Msg("load session attributes failed")
		case found:
			env.Session.Attributes = attrs
		}
	}

	resp, err := s.next.Handle(ctx, env)
	if err != nil {
		return nil, err
	}

	switch {
	case env.Request.Type == RequestSessionEnded:
		s.forget(ctx, id)
	case resp == nil:
	case resp.Response.ShouldEndSession:
		// The platform sends no SessionEndedRequest when the skill ends the session.
		s.forget(ctx, id)
	default:
		if err := s.store.Put(ctx, id, resp.SessionAttributes); err != nil {
			s.logger.Warn().Err(err).Str("session_id", id).Msg("save session attributes failed")
		}
	}
	return resp, nil
}

func (s *Stateful) forget(ctx context.Context, id string) {
	if err := s.store.Delete(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("session_id", id).Msg("delete session attributes failed")
	}
}
