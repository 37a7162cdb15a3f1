// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package member

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/cafegate/internal/logging"
	"github.com/tomtom215/cafegate/internal/metrics"
)

// ErrUnavailable is returned while the breaker rejects calls to the store.
var ErrUnavailable = errors.New("member store unavailable")

// BreakerConfig configures the store circuit breaker.
type BreakerConfig struct {
	Name         string
	MaxRequests  uint32        // probes allowed while half-open
	Interval     time.Duration // closed-state count reset period
	Timeout      time.Duration // open-state duration before probing
	MinRequests  uint32        // requests in a window before the ratio is considered
	FailureRatio float64       // failure ratio that opens the breaker
}

// DefaultBreakerConfig returns the production breaker settings.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "member-store",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// BreakerStore wraps a Store with a circuit breaker so a failing backend
// turns login and OAuth2 callbacks into fast authentication failures
// instead of piling up blocked requests.
//
// Not-found and duplicate results are normal answers, not failures.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	name := cfg.Name
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
		IsSuccessful: healthyResult,
	})

	return &BreakerStore{next: next, cb: cb, name: name}
}

// healthyResult reports whether err says nothing about store health.
// Caller mistakes and canceled requests count as successes.
func healthyResult(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrInvalid) || errors.Is(err, context.Canceled)
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return nil, errors.Join(ErrUnavailable, err)
	case !healthyResult(err):
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	default:
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	}
	return result, err
}

// FindByID implements Store.
func (b *BreakerStore) FindByID(ctx context.Context, id string) (*Member, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Member), nil
}

// FindByUsername implements Store.
func (b *BreakerStore) FindByUsername(ctx context.Context, username string) (*Member, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.FindByUsername(ctx, username)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Member), nil
}

// Create implements Store.
func (b *BreakerStore) Create(ctx context.Context, m *Member) (*Member, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Member), nil
}

// Update implements Store.
func (b *BreakerStore) Update(ctx context.Context, id string, fn Mutation) (*Member, error) {
	res, err := b.execute(func() (interface{}, error) {
		return b.next.Update(ctx, id, fn)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Member), nil
}

type linkResult struct {
	m       *Member
	created bool
}

// FindOrCreateByProvider implements Store.
func (b *BreakerStore) FindOrCreateByProvider(ctx context.Context, link ProviderLink, template Member) (*Member, bool, error) {
	res, err := b.execute(func() (interface{}, error) {
		m, created, err := b.next.FindOrCreateByProvider(ctx, link, template)
		if err != nil {
			return nil, err
		}
		return linkResult{m: m, created: created}, nil
	})
	if err != nil {
		return nil, false, err
	}
	lr := res.(linkResult)
	return lr.m, lr.created, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
