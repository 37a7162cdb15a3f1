// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package services

import (
	"context"
	"time"

	"github.com/tomtom215/cafegate/internal/logging"
)

// Task is one run of a periodic job. It returns how many items it handled.
type Task func(ctx context.Context) (int, error)

// PeriodicService runs a Task every interval.
type PeriodicService struct {
	name     string
	interval time.Duration
	task     Task
}

// NewPeriodicService creates a PeriodicService. It panics on a non-positive
// interval or a nil task, both wiring errors.
func NewPeriodicService(name string, interval time.Duration, task Task) *PeriodicService {
	if interval <= 0 {
		panic("services: periodic interval must be positive")
	}
	if task == nil {
		panic("services: periodic task is nil")
	}
	return &PeriodicService{name: name, interval: interval, task: task}
}

// Serve implements suture.Service. A failing task is logged and retried on
// the next tick rather than restarting the service.
func (p *PeriodicService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *PeriodicService) run(ctx context.Context) {
	n, err := p.task(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Str("service", p.name).Msg("Periodic task failed")
		}
		return
	}
	if n > 0 {
		logging.Debug().Str("service", p.name).Int("count", n).Msg("Periodic task completed")
	}
}

// String implements fmt.Stringer for suture log lines.
func (p *PeriodicService) String() string {
	return p.name
}
