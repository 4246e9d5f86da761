// Package session holds the per-session state carried between turns.
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSessionID is returned when a store operation has no session id.
var ErrNoSessionID = errors.New("session id required")

// Attributes is the only state kept for a session: the selected region,
// as spoken by the user. An empty Region means none is selected.
type Attributes struct {
	Region string `json:"region,omitempty"`
}

// SelectedRegion returns the spoken region name and whether one is set.
func (a Attributes) SelectedRegion() (string, bool) {
	return a.Region, a.Region != ""
}

// WithRegion returns a copy with the region replaced.
func (a Attributes) WithRegion(spoken string) Attributes {
	a.Region = spoken
	return a
}

// IsZero reports whether no attribute is set.
func (a Attributes) IsZero() bool {
	return a.Region == ""
}

// Store keeps attributes for clients that do not echo them back.
type Store interface {
	Get(ctx context.Context, id string) (Attributes, bool, error)
	Put(ctx context.Context, id string, attrs Attributes) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Attributes
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Attributes)}
}

// Get returns the attributes stored for id.
func (s *MemoryStore) Get(_ context.Context, id string) (Attributes, bool, error) {
	if id == "" {
		return Attributes{}, false, ErrNoSessionID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, ok := s.sessions[id]
	return attrs, ok, nil
}

// Put stores attrs for id.
func (s *MemoryStore) Put(_ context.Context, id string, attrs Attributes) error {
	if id == "" {
		return ErrNoSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = attrs
	return nil
}

// Delete forgets id. Deleting an unknown session is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrNoSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
