// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package logging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging.
type SecurityEvent struct {
	// Event is the type of event (e.g., "login_success", "token_rejected").
	Event string
	// SubjectID is the local subject identifier (if known).
	SubjectID string
	// Username is the submitted or resolved username (if known).
	Username string
	// Provider is the authentication provider (local or an OAuth2 provider name).
	Provider string
	// IPAddress is the client's IP address.
	IPAddress string
	// Success indicates if the operation was successful.
	Success bool
	// Reason is the failure reason. It is sanitized before being written.
	Reason string
	// Details contains additional details, sanitized by key name.
	Details map[string]string
}

// SecurityLogger provides secure logging for authentication events.
// It sanitizes sensitive data before logging.
type SecurityLogger struct {
	logger *zerolog.Logger
}

// NewSecurityLogger creates a new security logger on top of the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	l := logger.With().Str("component", "security").Logger()
	return &SecurityLogger{logger: &l}
}

func (l *SecurityLogger) base(ctx context.Context) *zerolog.Logger {
	if l.logger != nil {
		return l.logger
	}
	lg := Ctx(ctx).With().Str("component", "security").Logger()
	return &lg
}

// LogEvent logs a security event with automatic sanitization.
func (l *SecurityLogger) LogEvent(ctx context.Context, event *SecurityEvent) {
	base := l.base(ctx)
	e := base.Info()
	if !event.Success {
		e = base.Warn()
	}
	e = e.Str("event", event.Event)

	if event.Success {
		e = e.Str("status", "success")
	} else {
		e = e.Str("status", "failed")
	}
	if event.SubjectID != "" {
		e = e.Str("subject", event.SubjectID)
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.Provider != "" {
		e = e.Str("provider", event.Provider)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", SanitizeError(event.Reason))
	}
	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("security event")
}

// LogLoginSuccess logs a successful login, local or federated.
func (l *SecurityLogger) LogLoginSuccess(ctx context.Context, subjectID, username, provider, ip string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "login_success",
		SubjectID: subjectID,
		Username:  username,
		Provider:  provider,
		IPAddress: ip,
		Success:   true,
	})
}

// LogLoginFailure logs a failed login. The reason is only ever written to
// the log, never returned to the client.
func (l *SecurityLogger) LogLoginFailure(ctx context.Context, username, provider, ip, reason string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "login_failed",
		Username:  username,
		Provider:  provider,
		IPAddress: ip,
		Reason:    reason,
	})
}

// LogTokenRejected logs a presented token that failed verification.
func (l *SecurityLogger) LogTokenRejected(ctx context.Context, kind, path, ip string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "token_rejected",
		IPAddress: ip,
		Reason:    kind,
		Details:   map[string]string{"path": path},
	})
}

// LogTokenRefresh logs a refresh token exchange.
func (l *SecurityLogger) LogTokenRefresh(ctx context.Context, subjectID string, success bool, reason string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "token_refresh",
		SubjectID: subjectID,
		Success:   success,
		Reason:    reason,
	})
}

// LogAccessDenied logs an authorization denial.
func (l *SecurityLogger) LogAccessDenied(ctx context.Context, subjectID, role, method, path, reason string) {
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "access_denied",
		SubjectID: subjectID,
		Reason:    reason,
		Details: map[string]string{
			"role":   role,
			"method": method,
			"path":   path,
		},
	})
}

// LogMemberLinked logs the outcome of linking an external identity.
func (l *SecurityLogger) LogMemberLinked(ctx context.Context, subjectID, provider string, created bool) {
	outcome := "reused"
	if created {
		outcome = "created"
	}
	l.LogEvent(ctx, &SecurityEvent{
		Event:     "member_linked",
		SubjectID: subjectID,
		Provider:  provider,
		Success:   true,
		Details:   map[string]string{"outcome": outcome},
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..." -> "eyJh...kpXV"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeEmail masks an email address.
// Example: "john.doe@example.com" -> "jo***@example.com"
func SanitizeEmail(email string) string {
	if email == "" {
		return ""
	}
	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}
	localPart := email[:atIndex]
	domain := email[atIndex:]
	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{"password", "secret", "bearer", "authorization", "cookie"}
	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "access_token", "refresh_token", "id_token", "token", "password",
		"secret", "authorization", "bearer", "code", "state":
		return SanitizeToken(value)
	}
	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return SanitizeEmail(value)
	}
	return value
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
