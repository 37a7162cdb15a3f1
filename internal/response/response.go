// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

// Package response writes the JSON envelope shared by every endpoint,
// including the authentication and authorization failures produced by
// middleware before a handler runs.
package response

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cafegate/internal/logging"
)

// Envelope is the response wrapper for all API endpoints.
type Envelope struct {
	// Success indicates whether the request was successful
	Success bool `json:"success"`

	// Data contains the response payload (null on error)
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success)
	Error *Error `json:"error,omitempty"`

	// Meta contains response metadata
	Meta *Meta `json:"meta,omitempty"`
}

// Error represents an error response.
type Error struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Message is a human-readable error message
	Message string `json:"message"`

	// Details contains additional error details (optional)
	Details interface{} `json:"details,omitempty"`
}

// Meta contains response metadata.
type Meta struct {
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error codes for responses that are not authentication failures.
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeTooManyRequests  = "TOO_MANY_REQUESTS"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnavailable      = "SERVICE_UNAVAILABLE"
)

func meta(r *http.Request) *Meta {
	return &Meta{
		RequestID: logging.RequestIDFromContext(r.Context()),
		Timestamp: time.Now().UTC(),
	}
}

// Success writes a 200 response with data.
func Success(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data, Meta: meta(r)})
}

// Created writes a 201 response with data.
func Created(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data, Meta: meta(r)})
}

// Fail writes an error response with the given status code.
func Fail(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	FailWithDetails(w, r, statusCode, code, message, nil)
}

// FailWithDetails writes an error response with additional details.
func FailWithDetails(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details interface{}) {
	writeJSON(w, statusCode, Envelope{
		Error: &Error{Code: code, Message: message, Details: details},
		Meta:  meta(r),
	})
}

// BadRequest writes a 400 error.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Fail(w, r, http.StatusBadRequest, CodeBadRequest, message)
}

// ValidationError writes a 400 error with per-field details.
func ValidationError(w http.ResponseWriter, r *http.Request, details interface{}) {
	FailWithDetails(w, r, http.StatusBadRequest, CodeValidationFailed, "request validation failed", details)
}

// NotFound writes a 404 error.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Fail(w, r, http.StatusNotFound, CodeNotFound, message)
}

// Conflict writes a 409 error.
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	Fail(w, r, http.StatusConflict, CodeConflict, message)
}

// Unavailable writes a 503 error.
func Unavailable(w http.ResponseWriter, r *http.Request, message string) {
	Fail(w, r, http.StatusServiceUnavailable, CodeUnavailable, message)
}

// InternalError logs err and writes a generic 500 error.
func InternalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	Fail(w, r, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
