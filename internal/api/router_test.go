// Cafegate - Stateless Token Authentication Gateway
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cafegate

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/cafegate/internal/auth"
	"github.com/tomtom215/cafegate/internal/authz"
	"github.com/tomtom215/cafegate/internal/identity"
	"github.com/tomtom215/cafegate/internal/member"
	"github.com/tomtom215/cafegate/internal/oauth"
	"github.com/tomtom215/cafegate/internal/response"
	"github.com/tomtom215/cafegate/internal/token"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time { return c.t }

// stubProvider redirects to a fixed authorization URL and accepts the
// code "good-code".
type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) AuthURL(req oauth.AuthRequest) (string, error) {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(req.State), nil
}

func (stubProvider) Exchange(_ context.Context, code string, _ oauth.AuthRequest) (identity.ExternalProfile, error) {
	if code != "good-code" {
		return identity.ExternalProfile{}, oauth.ErrExchangeFailed
	}
	return identity.ExternalProfile{Subject: "stub-user-1", DisplayName: "Stub User"}, nil
}

type server struct {
	handler http.Handler
	store   *member.MemoryStore
	codec   *token.Codec
	clock   *testClock
	base    string
}

// path joins rel onto the server's base path.
func (s *server) path(rel string) string {
	return path.Join(s.base, rel)
}

func newServer(t *testing.T, mwConfig *ChiMiddlewareConfig) *server {
	t.Helper()
	return newServerAt(t, DefaultBasePath, mwConfig)
}

func newServerAt(t *testing.T, basePath string, mwConfig *ChiMiddlewareConfig) *server {
	t.Helper()
	clock := &testClock{t: time.Now()}
	codec, err := token.NewCodec(token.Config{
		Secret:     []byte("router-test-secret-with-32-bytes-or-more"),
		Issuer:     "cafegate-test",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 14 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	store := member.NewMemoryStore()
	hasher := member.NewHasher(bcrypt.MinCost)
	issuer := auth.NewTokenIssuer(codec)

	engine, err := authz.NewEngine(authz.DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}

	if mwConfig == nil {
		mwConfig = DefaultChiMiddlewareConfig()
		mwConfig.AuthRateLimitDisabled = true
	}

	flow, err := oauth.NewFlow([]oauth.Provider{stubProvider{}}, oauth.NewMemoryStateStore(),
		auth.NewIdentityBridge(store, issuer), oauth.FlowConfig{})
	if err != nil {
		t.Fatalf("NewFlow: %v", err)
	}

	router, err := NewRouter(basePath, mwConfig, Deps{
		Login:      auth.NewLoginAuthenticator(member.NewPasswordVerifier(store, hasher), issuer),
		Refresh:    auth.NewRefreshHandler(codec, issuer, store),
		Verifier:   auth.NewMiddleware(codec),
		Authorizer: authz.NewMiddleware(engine, basePath),
		Handler:    NewHandler(store, hasher, nil),
		OAuth:      flow,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &server{handler: router.SetupChi(), store: store, codec: codec, clock: clock, base: basePath}
}

func (s *server) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func bearer(tok string) map[string]string {
	return map[string]string{auth.HeaderAuthorization: "Bearer " + tok}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env response.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	if env.Error == nil {
		return ""
	}
	return env.Error.Code
}

func (s *server) signUpAndLogin(t *testing.T, kind, username string) string {
	t.Helper()
	body := `{"username":"` + username + `","password":"s3cret-pass"}`
	if rec := s.do(http.MethodPost, s.path(kind+"/sign-up"), body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("sign-up status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, s.path("users/log-in"), body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", rec.Code, rec.Body.String())
	}
	return strings.TrimPrefix(rec.Header().Get(auth.HeaderAuthorization), "Bearer ")
}

func TestRouter_SignUpLoginMyPage(t *testing.T) {
	s := newServer(t, nil)
	access := s.signUpAndLogin(t, "members", "alice")

	rec := s.do(http.MethodGet, "/api/members/mypage", "", bearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("mypage status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"username":"alice"`) {
		t.Errorf("mypage body = %s", rec.Body.String())
	}

	rec = s.do(http.MethodPatch, "/api/members/update", `{"display_name":"Alice L."}`, bearer(access))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body.String())
	}
	m, err := s.store.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if m.DisplayName != "Alice L." {
		t.Errorf("DisplayName = %q", m.DisplayName)
	}
}

func TestRouter_DuplicateSignUp(t *testing.T) {
	s := newServer(t, nil)
	body := `{"username":"bob","password":"s3cret-pass"}`
	s.do(http.MethodPost, "/api/members/sign-up", body, nil)
	rec := s.do(http.MethodPost, "/api/owners/sign-up", body, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRouter_SignUpValidation(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(http.MethodPost, "/api/members/sign-up", `{"username":"x","password":"short"}`, nil)
	if rec.Code != http.StatusBadRequest || errorCode(t, rec) != response.CodeValidationFailed {
		t.Errorf("status = %d, code = %s", rec.Code, errorCode(t, rec))
	}
}

func TestRouter_Scenarios(t *testing.T) {
	s := newServer(t, nil)
	memberToken := s.signUpAndLogin(t, "members", "carol")
	ownerToken := s.signUpAndLogin(t, "owners", "dave")

	tests := []struct {
		name     string
		method   string
		target   string
		headers  map[string]string
		status   int
		wantCode string
	}{
		{"cafe detail without token", http.MethodGet, "/api/cafes/7", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"members area without token", http.MethodGet, "/api/members/mypage", nil, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{"owner area as member", http.MethodGet, "/api/owners/cafes", bearer(memberToken), http.StatusForbidden, "FORBIDDEN"},
		{"owner area as owner", http.MethodGet, "/api/owners/cafes", bearer(ownerToken), http.StatusNotFound, response.CodeNotFound},
		{"members area as owner", http.MethodGet, "/api/members/mypage", bearer(ownerToken), http.StatusForbidden, "FORBIDDEN"},
		{"public read", http.MethodGet, "/api/notices", nil, http.StatusNotFound, response.CodeNotFound},
		{"garbage token on public route", http.MethodGet, "/api/notices", bearer("garbage"), http.StatusUnauthorized, "MALFORMED_TOKEN"},
		{"refresh token as access", http.MethodGet, "/api/members/mypage", bearer(s.mustIssue(t, "1", token.KindRefresh)), http.StatusUnauthorized, "MALFORMED_TOKEN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.target, "", tt.headers)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Errorf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func (s *server) mustIssue(t *testing.T, subject string, kind token.Kind) string {
	t.Helper()
	tok, err := s.codec.Issue(subject, identity.RoleMember, kind)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok.Value
}

func TestRouter_ExpiredTokenNeverReachesAuthorization(t *testing.T) {
	s := newServer(t, nil)
	access := s.signUpAndLogin(t, "members", "erin")
	s.clock.t = s.clock.t.Add(31 * time.Minute)

	before := s.store.Len()
	rec := s.do(http.MethodPatch, "/api/members/update", `{"display_name":"x"}`, bearer(access))
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "EXPIRED_TOKEN" {
		t.Errorf("status = %d, code = %s, want 401 EXPIRED_TOKEN", rec.Code, errorCode(t, rec))
	}
	if s.store.Len() != before {
		t.Error("store changed")
	}
}

func TestRouter_Refresh(t *testing.T) {
	s := newServer(t, nil)
	body := `{"username":"frank","password":"s3cret-pass"}`
	s.do(http.MethodPost, "/api/members/sign-up", body, nil)
	login := s.do(http.MethodPost, "/api/users/log-in", body, nil)

	rec := s.do(http.MethodPost, "/api/users/refresh", "", map[string]string{auth.HeaderRefresh: login.Header().Get(auth.HeaderRefresh)})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}
	access := strings.TrimPrefix(rec.Header().Get(auth.HeaderAuthorization), "Bearer ")
	if rec := s.do(http.MethodGet, "/api/members/mypage", "", bearer(access)); rec.Code != http.StatusOK {
		t.Errorf("mypage with refreshed token = %d", rec.Code)
	}

	rec = s.do(http.MethodPost, "/api/users/refresh", "", map[string]string{auth.HeaderRefresh: access})
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "MALFORMED_TOKEN" {
		t.Errorf("access token as refresh: status = %d, code = %s", rec.Code, errorCode(t, rec))
	}
}

func TestRouter_LoginFailure(t *testing.T) {
	s := newServer(t, nil)
	rec := s.do(http.MethodPost, "/api/users/log-in", `{"username":"ghost","password":"whatever1"}`, nil)
	if rec.Code != http.StatusUnauthorized || errorCode(t, rec) != "CREDENTIAL_REJECTED" {
		t.Errorf("status = %d, code = %s", rec.Code, errorCode(t, rec))
	}
}

func TestRouter_CORS(t *testing.T) {
	s := newServer(t, nil)

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec := s.do(http.MethodOptions, "/api/users/log-in", "", map[string]string{
			"Origin":                         "https://cafein34.vercel.app",
			"Access-Control-Request-Method":  "POST",
			"Access-Control-Request-Headers": "Content-Type",
		})
		if rec.Code >= 300 {
			t.Errorf("preflight status = %d", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://cafein34.vercel.app" {
			t.Errorf("Allow-Origin = %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Allow-Credentials = %q", got)
		}
	})

	t.Run("preflight on guarded route skips verification", func(t *testing.T) {
		rec := s.do(http.MethodOptions, "/api/members/update", "", map[string]string{
			"Origin":                        "http://localhost:5173",
			"Access-Control-Request-Method": "PATCH",
			auth.HeaderAuthorization:        "Bearer garbage",
		})
		if rec.Code >= 300 {
			t.Errorf("preflight status = %d", rec.Code)
		}
	})

	t.Run("token headers exposed", func(t *testing.T) {
		body := `{"username":"gina","password":"s3cret-pass"}`
		s.do(http.MethodPost, "/api/members/sign-up", body, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/users/log-in", strings.NewReader(body))
		req.Header.Set("Origin", "https://cafein-3780c.web.app")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)

		exposed := rec.Header().Get("Access-Control-Expose-Headers")
		for _, h := range auth.ExposedHeaders {
			if !strings.Contains(exposed, h) {
				t.Errorf("Expose-Headers %q lacks %s", exposed, h)
			}
		}
	})

	t.Run("unknown origin", func(t *testing.T) {
		rec := s.do(http.MethodGet, "/healthz", "", map[string]string{"Origin": "https://evil.example"})
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q for unknown origin", got)
		}
	})
}

func TestRouter_Ops(t *testing.T) {
	s := newServer(t, nil)
	if rec := s.do(http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics = %d", rec.Code)
	}
}

func TestRouter_LoginRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.AuthRateLimitRequests = 2
	cfg.AuthRateLimitWindow = time.Minute
	s := newServer(t, cfg)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = s.do(http.MethodPost, "/api/users/log-in", `{"username":"x1y","password":"pw"}`, nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("third attempt status = %d, want 429", last.Code)
	}
}

func TestRouter_OAuthRateLimit(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.AuthRateLimitRequests = 2
	cfg.AuthRateLimitWindow = time.Minute
	s := newServer(t, cfg)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = s.do(http.MethodGet, "/api/oauth2/authorization/stub", "", nil)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Errorf("third redirect status = %d, want 429", last.Code)
	}
	rec := s.do(http.MethodGet, "/api/login/oauth2/code/stub?code=good-code&state=x", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("callback status = %d, want 429", rec.Code)
	}
}

func TestRouter_RootBasePath(t *testing.T) {
	s := newServerAt(t, "/", nil)

	body := `{"username":"rootie","password":"s3cret-pass"}`
	if rec := s.do(http.MethodPost, "/members/sign-up", body, nil); rec.Code != http.StatusCreated {
		t.Fatalf("sign-up status = %d, body = %s", rec.Code, rec.Body.String())
	}
	login := s.do(http.MethodPost, "/users/log-in", body, nil)
	if login.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", login.Code, login.Body.String())
	}
	access := strings.TrimPrefix(login.Header().Get(auth.HeaderAuthorization), "Bearer ")
	if rec := s.do(http.MethodGet, "/members/mypage", "", bearer(access)); rec.Code != http.StatusOK {
		t.Fatalf("mypage status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodPost, "/users/refresh", "", map[string]string{auth.HeaderRefresh: login.Header().Get(auth.HeaderRefresh)})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/oauth2/authorization/stub", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("oauth start status = %d, body = %s", rec.Code, rec.Body.String())
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse Location: %v", err)
	}
	state := loc.Query().Get("state")
	rec = s.do(http.MethodGet, "/login/oauth2/code/stub?code=good-code&state="+url.QueryEscape(state), "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("oauth callback status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(auth.HeaderAuthorization) == "" {
		t.Error("oauth callback issued no access token")
	}

	if rec := s.do(http.MethodGet, "/cafes/7", "", nil); errorCode(t, rec) != string(auth.KindUnauthenticated) {
		t.Errorf("anonymous cafe read code = %s", errorCode(t, rec))
	}
}

func TestNewRouter_RequiresDeps(t *testing.T) {
	_, err := NewRouter(DefaultBasePath, nil, Deps{})
	if err == nil {
		t.Fatal("NewRouter accepted empty deps")
	}
	if errors.Is(err, ErrPipelineOrder) {
		t.Error("missing deps reported as pipeline order error")
	}
}
