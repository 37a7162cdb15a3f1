// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/token"
)

var testSecret = []byte("auth-test-secret-with-32-bytes-or-more")

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}
}

func newTestCodec(t *testing.T, clock *testClock) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		Secret:     testSecret,
		Issuer:     "cafegate-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

// decodeEnvelope reads the JSON envelope written to rec.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

// assertFailure checks status and error code of a failure response.
func assertFailure(t *testing.T, rec *httptest.ResponseRecorder, kind Kind) {
	t.Helper()
	if rec.Code != kind.Status() {
		t.Errorf("status = %d, want %d", rec.Code, kind.Status())
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("Success = true, want false")
	}
	if env.Error == nil || env.Error.Code != string(kind) {
		t.Errorf("error = %+v, want code %s", env.Error, kind)
	}
}
