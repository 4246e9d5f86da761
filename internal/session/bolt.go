package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var bucketSessions = []byte("sessions")

// BoltStore is a Store backed by a bbolt file, so session attributes
// survive a restart of the transport between turns.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) a bbolt session store at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Get returns the attributes stored for id.
func (s *BoltStore) Get(_ context.Context, id string) (Attributes, bool, error) {
	if id == "" {
		return Attributes{}, false, ErrNoSessionID
	}

	var (
		attrs Attributes
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessions).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &attrs)
	})
	if err != nil {
		return Attributes{}, false, fmt.Errorf("get session %s: %w", id, err)
	}
	return attrs, found, nil
}

// Put stores attrs for id.
func (s *BoltStore) Put(_ context.Context, id string, attrs Attributes) error {
	if id == "" {
		return ErrNoSessionID
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", id, err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Put([]byte(id), data)
	})
	if err != nil {
		return fmt.Errorf("put session %s: %w", id, err)
	}
	return nil
}

// Delete forgets id.
func (s *BoltStore) Delete(_ context.Context, id string) error {
	if id == "" {
		return ErrNoSessionID
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketSessions).Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
