// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Stage names, in the only order a pipeline accepts them.
const (
	StageCORS      = "cors"
	StageVerify    = "verify"
	StageAuthorize = "authorize"
)

var stageOrder = []string{StageCORS, StageVerify, StageAuthorize}

// ErrPipelineOrder is returned for a pipeline whose stages are missing,
// repeated or out of order.
var ErrPipelineOrder = errors.New("invalid pipeline stage order")

// Stage is one named middleware of the security pipeline.
type Stage struct {
	Name       string
	Middleware func(http.Handler) http.Handler
}

// Pipeline is the ordered security middleware chain.
type Pipeline struct {
	stages []Stage
}

// NewPipeline checks that stages are exactly cors, verify, authorize in
// that order.
func NewPipeline(stages ...Stage) (*Pipeline, error) {
	if len(stages) != len(stageOrder) {
		return nil, fmt.Errorf("%w: want %v, got %d stages", ErrPipelineOrder, stageOrder, len(stages))
	}
	for i, s := range stages {
		if s.Name != stageOrder[i] {
			return nil, fmt.Errorf("%w: stage %d is %q, want %q", ErrPipelineOrder, i, s.Name, stageOrder[i])
		}
		if s.Middleware == nil {
			return nil, fmt.Errorf("%w: stage %q has no middleware", ErrPipelineOrder, s.Name)
		}
	}
	return &Pipeline{stages: append([]Stage(nil), stages...)}, nil
}

// Names returns the stage names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

func (p *Pipeline) slice(from, to int) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, 0, to-from)
	for _, s := range p.stages[from:to] {
		out = append(out, s.Middleware)
	}
	return out
}

// Edge returns the stages every route passes, exempt routes included.
// They must be installed on the root router so preflight requests reach
// them even for routes without an OPTIONS handler.
func (p *Pipeline) Edge() []func(http.Handler) http.Handler {
	return p.slice(0, 1)
}

// Guard returns the identity stages, verify then authorize.
func (p *Pipeline) Guard() []func(http.Handler) http.Handler {
	return p.slice(1, len(p.stages))
}
