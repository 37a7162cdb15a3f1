// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package member

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/metrics"
)

// Key prefixes for BadgerDB storage
const (
	memberKeyPrefix   = "member:"
	usernameKeyPrefix = "member_username:"
	providerKeyPrefix = "member_provider:"
	sequenceKey       = "member_seq"
)

// maxConflictRetries bounds retries of a transaction that lost a write race.
const maxConflictRetries = 5

// BadgerStore implements Store on BadgerDB.
//
// Uniqueness of usernames and provider links is enforced by index keys
// written in the same transaction as the member record. Badger's
// serializable transactions reject a commit whose reads were invalidated by
// a concurrent commit (badger.ErrConflict); the losing transaction is
// retried and then observes the winner's record.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
	now func() time.Time
}

var _ Store = (*BadgerStore)(nil)

// OpenBadger opens a BadgerDB at path, or an in-memory instance when path
// is empty. Badger's own logging is routed through the process logger.
func OpenBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// NewBadgerStore creates a store on db. The caller owns db; Close only
// releases the id sequence.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), 64)
	if err != nil {
		return nil, fmt.Errorf("member id sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq, now: time.Now}, nil
}

// Close releases the id sequence lease.
func (s *BadgerStore) Close() error {
	return s.seq.Release()
}

func (s *BadgerStore) allocID() (string, error) {
	n, err := s.seq.Next()
	if err != nil {
		return "", fmt.Errorf("next member id: %w", err)
	}
	// Sequences start at zero; member ids start at one.
	return strconv.FormatUint(n+1, 10), nil
}

func providerKey(link ProviderLink) []byte {
	return []byte(providerKeyPrefix + link.Provider + ":" + link.Subject)
}

func getMember(txn *badger.Txn, id string) (*Member, error) {
	item, err := txn.Get([]byte(memberKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	var m Member
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &m)
	}); err != nil {
		return nil, fmt.Errorf("decode member: %w", err)
	}
	return &m, nil
}

func getIndex(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get index: %w", err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", fmt.Errorf("read index: %w", err)
	}
	return string(val), nil
}

func putMember(txn *badger.Txn, m *Member) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal member: %w", err)
	}
	if err := txn.Set([]byte(memberKeyPrefix+m.ID), data); err != nil {
		return fmt.Errorf("set member: %w", err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on write conflicts.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		metrics.MemberStoreConflictRetries.Inc()
		logging.Debug().Int("attempt", attempt+1).Msg("member store transaction conflict, retrying")
	}
	return fmt.Errorf("member store: giving up after %d conflicts: %w", maxConflictRetries, err)
}

func observe(op string, start time.Time, err error) {
	metrics.RecordMemberStoreOp(op, resultLabel(err), time.Since(start))
}

// FindByID returns the member with the given id.
func (s *BadgerStore) FindByID(_ context.Context, id string) (m *Member, err error) {
	defer func(start time.Time) { observe("find_by_id", start, err) }(time.Now())
	err = s.db.View(func(txn *badger.Txn) error {
		m, err = getMember(txn, id)
		return err
	})
	return m, err
}

// FindByUsername returns the local member with the given username.
func (s *BadgerStore) FindByUsername(_ context.Context, username string) (m *Member, err error) {
	defer func(start time.Time) { observe("find_by_username", start, err) }(time.Now())
	err = s.db.View(func(txn *badger.Txn) error {
		id, err := getIndex(txn, []byte(usernameKeyPrefix+NormalizeUsername(username)))
		if err != nil {
			return err
		}
		m, err = getMember(txn, id)
		return err
	})
	return m, err
}

// Create stores a new local member with a unique username.
func (s *BadgerStore) Create(_ context.Context, in *Member) (m *Member, err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())
	rec, err := prepareLocal(in, s.now())
	if err != nil {
		return nil, err
	}
	id, err := s.allocID()
	if err != nil {
		return nil, err
	}
	rec.ID = id

	usernameKey := []byte(usernameKeyPrefix + rec.Username)
	err = s.update(func(txn *badger.Txn) error {
		if _, err := getIndex(txn, usernameKey); err == nil {
			return ErrDuplicate
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := putMember(txn, rec); err != nil {
			return err
		}
		return txn.Set(usernameKey, []byte(rec.ID))
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update applies fn to the member with the given id.
func (s *BadgerStore) Update(_ context.Context, id string, fn Mutation) (m *Member, err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	err = s.update(func(txn *badger.Txn) error {
		current, err := getMember(txn, id)
		if err != nil {
			return err
		}
		next, err := applyMutation(current, fn, s.now())
		if err != nil {
			return err
		}
		if err := putMember(txn, next); err != nil {
			return err
		}
		m = next
		return nil
	})
	return m, err
}

// FindOrCreateByProvider returns or creates the member linked to link as
// one compare-and-create transaction.
func (s *BadgerStore) FindOrCreateByProvider(_ context.Context, link ProviderLink, template Member) (m *Member, created bool, err error) {
	defer func(start time.Time) { observe("find_or_create_by_provider", start, err) }(time.Now())
	rec, err := prepareLinked(link, template, s.now())
	if err != nil {
		return nil, false, err
	}

	key := providerKey(link)
	err = s.update(func(txn *badger.Txn) error {
		m, created = nil, false

		id, err := getIndex(txn, key)
		if err == nil {
			m, err = getMember(txn, id)
			return err
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if rec.ID == "" {
			if rec.ID, err = s.allocID(); err != nil {
				return err
			}
		}
		if err := putMember(txn, rec); err != nil {
			return err
		}
		if err := txn.Set(key, []byte(rec.ID)); err != nil {
			return fmt.Errorf("set provider index: %w", err)
		}
		m, created = rec, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

// Len counts stored members.
func (s *BadgerStore) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(memberKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// gcDiscardRatio is the fraction of stale data a value log file needs
// before it is rewritten.
const gcDiscardRatio = 0.5

// CollectGarbage runs badger value log GC until nothing is left to rewrite
// or ctx is done. It returns the number of files rewritten.
func CollectGarbage(ctx context.Context, db *badger.DB) (int, error) {
	if db.Opts().InMemory {
		return 0, nil
	}
	n := 0
	for ctx.Err() == nil {
		err := db.RunValueLogGC(gcDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("value log gc: %w", err)
		}
		n++
	}
	return n, ctx.Err()
}

// badgerLogger adapts badger's logger to the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(strings.TrimSpace(format), args...)
}
