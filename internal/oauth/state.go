// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultStateTTL bounds the time between redirect and callback.
const DefaultStateTTL = 10 * time.Minute

// DefaultMaxStates caps the pending states a MemoryStateStore holds.
const DefaultMaxStates = 10000

var (
	// ErrStateNotFound is returned for an unknown, expired or already used state.
	ErrStateNotFound = errors.New("oauth state not found")

	// ErrStateStoreFull is returned by Save when the store is at capacity.
	ErrStateStoreFull = errors.New("oauth state store full")
)

// State is what the flow remembers between redirect and callback.
type State struct {
	Provider  string    `json:"provider"`
	Nonce     string    `json:"nonce"`
	Verifier  string    `json:"code_verifier"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s State) request(key string) AuthRequest {
	return AuthRequest{State: key, Nonce: s.Nonce, CodeVerifier: s.Verifier}
}

// newCodeVerifier returns a PKCE code verifier (RFC 7636 section 4.1).
func newCodeVerifier() string {
	return base64.RawURLEncoding.EncodeToString([]byte(uuid.NewString()))
}

// StateStore keeps pending authorization states. Consume returns a state at
// most once.
type StateStore interface {
	Save(ctx context.Context, key string, state State) error
	Consume(ctx context.Context, key string) (State, error)
}

// MemoryStateStore is a process-local StateStore with a bounded number of
// pending states.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]State
	limit  int
	now    func() time.Time
}

var _ StateStore = (*MemoryStateStore)(nil)

// NewMemoryStateStore creates an empty store capped at DefaultMaxStates.
func NewMemoryStateStore() *MemoryStateStore {
	return NewMemoryStateStoreWithLimit(DefaultMaxStates)
}

// NewMemoryStateStoreWithLimit creates an empty store holding at most limit
// states. A limit below 1 means DefaultMaxStates.
func NewMemoryStateStoreWithLimit(limit int) *MemoryStateStore {
	if limit < 1 {
		limit = DefaultMaxStates
	}
	return &MemoryStateStore{states: make(map[string]State), limit: limit, now: time.Now}
}

// Save implements StateStore. A full store first drops expired states and
// fails with ErrStateStoreFull if none could be dropped.
func (s *MemoryStateStore) Save(_ context.Context, key string, state State) error {
	if key == "" {
		return errors.New("state key cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.states[key]; !exists && len(s.states) >= s.limit {
		if s.dropExpired() == 0 {
			return ErrStateStoreFull
		}
	}
	s.states[key] = state
	return nil
}

// Consume implements StateStore.
func (s *MemoryStateStore) Consume(_ context.Context, key string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[key]
	if !ok {
		return State{}, ErrStateNotFound
	}
	delete(s.states, key)
	if !s.now().Before(state.ExpiresAt) {
		return State{}, ErrStateNotFound
	}
	return state, nil
}

// CleanupExpired drops expired states and returns how many were removed.
func (s *MemoryStateStore) CleanupExpired(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropExpired(), nil
}

// dropExpired must be called with mu held.
func (s *MemoryStateStore) dropExpired() int {
	now := s.now()
	removed := 0
	for key, state := range s.states {
		if !now.Before(state.ExpiresAt) {
			delete(s.states, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored states.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// badgerStateKeyPrefix namespaces states in a shared database.
const badgerStateKeyPrefix = "oauth_state:"

// BadgerStateStore keeps states in badger with a per-entry TTL, so states
// survive a restart between redirect and callback.
type BadgerStateStore struct {
	db *badger.DB
}

var _ StateStore = (*BadgerStateStore)(nil)

// NewBadgerStateStore creates a store over an open database. The caller
// owns db.
func NewBadgerStateStore(db *badger.DB) *BadgerStateStore {
	return &BadgerStateStore{db: db}
}

// Save implements StateStore.
func (s *BadgerStateStore) Save(_ context.Context, key string, state State) error {
	if key == "" {
		return errors.New("state key cannot be empty")
	}
	ttl := time.Until(state.ExpiresAt)
	if ttl <= 0 {
		return errors.New("state already expired")
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(badgerStateKeyPrefix+key), data).WithTTL(ttl))
	})
}

// Consume implements StateStore. Of two concurrent consumers of the same
// key, the one whose transaction conflicts gets ErrStateNotFound.
func (s *BadgerStateStore) Consume(_ context.Context, key string) (State, error) {
	if key == "" {
		return State{}, ErrStateNotFound
	}
	var state State
	err := s.db.Update(func(txn *badger.Txn) error {
		k := []byte(badgerStateKeyPrefix + key)
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrStateNotFound
		}
		if err != nil {
			return fmt.Errorf("get state: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &state)
		}); err != nil {
			return fmt.Errorf("unmarshal state: %w", err)
		}
		return txn.Delete(k)
	})
	switch {
	case errors.Is(err, badger.ErrConflict):
		return State{}, ErrStateNotFound
	case err != nil:
		return State{}, err
	}
	if !time.Now().Before(state.ExpiresAt) {
		return State{}, ErrStateNotFound
	}
	return state, nil
}
