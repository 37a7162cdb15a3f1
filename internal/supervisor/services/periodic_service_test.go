// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestPeriodicService_RunsUntilCanceled(t *testing.T) {
	var runs atomic.Int32
	svc := NewPeriodicService("sweeper", 5*time.Millisecond, func(context.Context) (int, error) {
		runs.Add(1)
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Serve() = %v, want deadline exceeded", err)
	}
	if runs.Load() < 2 {
		t.Errorf("task ran %d times, want at least 2", runs.Load())
	}
	if svc.String() != "sweeper" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestPeriodicService_SurvivesTaskErrors(t *testing.T) {
	var runs atomic.Int32
	svc := NewPeriodicService("flaky", 5*time.Millisecond, func(context.Context) (int, error) {
		runs.Add(1)
		return 0, errors.New("backend unavailable")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if runs.Load() < 2 {
		t.Errorf("task ran %d times after failures, want at least 2", runs.Load())
	}
}

func TestNewPeriodicService_PanicsOnBadWiring(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		task     Task
	}{
		{"zero interval", 0, func(context.Context) (int, error) { return 0, nil }},
		{"nil task", time.Second, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			NewPeriodicService("x", tt.interval, tt.task)
		})
	}
}
