// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package member

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Members are lost on restart.
type MemoryStore struct {
	mu         sync.RWMutex
	nextID     uint64
	byID       map[string]*Member
	byUsername map[string]string
	byProvider map[ProviderLink]string
	now        func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*Member),
		byUsername: make(map[string]string),
		byProvider: make(map[ProviderLink]string),
		now:        time.Now,
	}
}

func (s *MemoryStore) allocID() string {
	s.nextID++
	return strconv.FormatUint(s.nextID, 10)
}

func clone(m *Member) *Member {
	c := *m
	return &c
}

// FindByID returns the member with the given id.
func (s *MemoryStore) FindByID(_ context.Context, id string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(m), nil
}

// FindByUsername returns the local member with the given username.
func (s *MemoryStore) FindByUsername(_ context.Context, username string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[NormalizeUsername(username)]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s.byID[id]), nil
}

// Create stores a new local member.
func (s *MemoryStore) Create(_ context.Context, m *Member) (*Member, error) {
	rec, err := prepareLocal(m, s.now())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[rec.Username]; taken {
		return nil, ErrDuplicate
	}
	rec.ID = s.allocID()
	s.byID[rec.ID] = rec
	s.byUsername[rec.Username] = rec.ID
	return clone(rec), nil
}

// Update applies fn to the member with the given id.
func (s *MemoryStore) Update(_ context.Context, id string, fn Mutation) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	next, err := applyMutation(current, fn, s.now())
	if err != nil {
		return nil, err
	}
	s.byID[id] = next
	return clone(next), nil
}

// FindOrCreateByProvider returns or creates the member linked to link.
// The whole check-and-insert runs under the write lock.
func (s *MemoryStore) FindOrCreateByProvider(_ context.Context, link ProviderLink, template Member) (*Member, bool, error) {
	rec, err := prepareLinked(link, template, s.now())
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byProvider[link]; ok {
		return clone(s.byID[id]), false, nil
	}
	rec.ID = s.allocID()
	s.byID[rec.ID] = rec
	s.byProvider[link] = rec.ID
	return clone(rec), true, nil
}

// Len returns the number of stored members.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
