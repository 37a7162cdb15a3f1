// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-chi/chi/v5"
)

// tracing returns a stage that appends its name to trace.
func tracing(name string, trace *[]string) Stage {
	return Stage{Name: name, Middleware: func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trace = append(*trace, name)
			next.ServeHTTP(w, r)
		})
	}}
}

func TestNewPipeline_Order(t *testing.T) {
	var trace []string
	cors, verify, authorize := tracing(StageCORS, &trace), tracing(StageVerify, &trace), tracing(StageAuthorize, &trace)

	tests := []struct {
		name    string
		stages  []Stage
		wantErr bool
	}{
		{"canonical", []Stage{cors, verify, authorize}, false},
		{"authorize before verify", []Stage{cors, authorize, verify}, true},
		{"verify first", []Stage{verify, cors, authorize}, true},
		{"missing verify", []Stage{cors, authorize}, true},
		{"repeated stage", []Stage{cors, verify, verify}, true},
		{"extra stage", []Stage{cors, verify, authorize, authorize}, true},
		{"nil middleware", []Stage{cors, {Name: StageVerify}, authorize}, true},
		{"empty", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPipeline(tt.stages...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewPipeline() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPipelineOrder) {
				t.Errorf("error %v is not ErrPipelineOrder", err)
			}
		})
	}
}

func TestPipeline_ExecutionOrder(t *testing.T) {
	var trace []string
	p, err := NewPipeline(tracing(StageCORS, &trace), tracing(StageVerify, &trace), tracing(StageAuthorize, &trace))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	h := chi.Chain(append(p.Edge(), p.Guard()...)...).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace = append(trace, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{StageCORS, StageVerify, StageAuthorize, "handler"}
	if !reflect.DeepEqual(trace, want) {
		t.Errorf("trace = %v, want %v", trace, want)
	}
	if got := p.Names(); !reflect.DeepEqual(got, want[:3]) {
		t.Errorf("Names() = %v", got)
	}
	if len(p.Edge()) != 1 || len(p.Guard()) != 2 {
		t.Errorf("Edge/Guard sizes = %d/%d, want 1/2", len(p.Edge()), len(p.Guard()))
	}
}
