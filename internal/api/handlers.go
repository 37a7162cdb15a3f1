// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/validation"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 16 << 10

// SignUpRequest is the registration payload.
type SignUpRequest struct {
	Username    string `json:"username" validate:"required,username"`
	Password    string `json:"password" validate:"required,min=8,max=72"`
	Email       string `json:"email" validate:"omitempty,email,max=254"`
	DisplayName string `json:"display_name" validate:"omitempty,max=64"`
}

// UpdateRequest is the profile update payload.
type UpdateRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=64"`
}

// MemberView is the public representation of a member.
type MemberView struct {
	ID          string    `json:"id"`
	Username    string    `json:"username,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	Provider    string    `json:"provider,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func viewOf(m *member.Member) MemberView {
	return MemberView{
		ID:          m.ID,
		Username:    m.Username,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		Role:        string(m.Role),
		Provider:    m.Provider,
		CreatedAt:   m.CreatedAt,
	}
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Handler serves the member endpoints.
type Handler struct {
	members member.Store
	hasher  *member.Hasher
	health  HealthCheck
}

// NewHandler creates a Handler. health may be nil.
func NewHandler(members member.Store, hasher *member.Hasher, health HealthCheck) *Handler {
	return &Handler{members: members, hasher: hasher, health: health}
}

// decode reads and validates a JSON body into dst. It writes the error
// response and returns false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.BadRequest(w, r, "request body must be a valid JSON object")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		response.ValidationError(w, r, verr.Fields())
		return false
	}
	return true
}

// storeFailure maps member store errors to responses.
func storeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, member.ErrNotFound):
		response.NotFound(w, r, "member not found")
	case errors.Is(err, member.ErrDuplicate):
		response.Conflict(w, r, "username already taken")
	case errors.Is(err, member.ErrInvalid):
		response.BadRequest(w, r, "invalid member data")
	default:
		response.InternalError(w, r, err)
	}
}

// SignUp returns the registration handler for role.
func (h *Handler) SignUp(role identity.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SignUpRequest
		if !decode(w, r, &req) {
			return
		}

		hash, err := h.hasher.Hash(req.Password)
		if err != nil {
			response.BadRequest(w, r, "password cannot be used")
			return
		}

		m, err := h.members.Create(r.Context(), &member.Member{
			Username:     req.Username,
			Email:        req.Email,
			DisplayName:  req.DisplayName,
			PasswordHash: hash,
			Role:         role,
		})
		if err != nil {
			storeFailure(w, r, err)
			return
		}
		response.Created(w, r, viewOf(m))
	}
}

// currentSubject reads the caller from the request context. It writes
// UNAUTHENTICATED and returns false for an anonymous request.
func currentSubject(w http.ResponseWriter, r *http.Request) (string, bool) {
	subject, err := identity.CurrentSubjectID(r.Context())
	if err != nil {
		auth.WriteFailure(w, r, auth.KindOf(err))
		return "", false
	}
	return subject, true
}

// MyPage returns the caller's profile.
func (h *Handler) MyPage(w http.ResponseWriter, r *http.Request) {
	subject, ok := currentSubject(w, r)
	if !ok {
		return
	}
	m, err := h.members.FindByID(r.Context(), subject)
	if err != nil {
		storeFailure(w, r, err)
		return
	}
	response.Success(w, r, viewOf(m))
}

// UpdateMember changes the caller's display name.
func (h *Handler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	subject, ok := currentSubject(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.members.Update(r.Context(), subject, func(m *member.Member) error {
		m.DisplayName = req.DisplayName
		return nil
	})
	if err != nil {
		storeFailure(w, r, err)
		return
	}
	response.Success(w, r, viewOf(m))
}

// Healthz reports liveness, and the health check result when one is set.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			response.Fail(w, r, http.StatusServiceUnavailable, "UNHEALTHY", err.Error())
			return
		}
	}
	response.Success(w, r, map[string]string{"status": "ok"})
}
