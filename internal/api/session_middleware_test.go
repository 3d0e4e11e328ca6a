package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campusgo/internal/constants"
	"campusgo/internal/session"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

// sessionCookies starts a session for the account and stamps its last
// activity at the given time, returning the cookies a client would hold.
func sessionCookies(t *testing.T, env *testEnv, accountID int64, lastActivity time.Time) []*http.Cookie {
	t.Helper()

	initReq := httptest.NewRequest(http.MethodGet, "/", nil)
	initRec := httptest.NewRecorder()
	if err := env.sessions.Init(initRec, initReq, accountID); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	touchReq := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range initRec.Result().Cookies() {
		touchReq.AddCookie(c)
	}
	touchRec := httptest.NewRecorder()
	if err := env.sessions.Touch(touchRec, touchReq, lastActivity); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	return touchRec.Result().Cookies()
}

func TestInactivityGatePassesWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/countries", nil)
	rr := httptest.NewRecorder()
	mw.InactivityGate(next).ServeHTTP(rr, req)

	if !*called {
		t.Fatal("request without a session should pass through")
	}
}

func TestInactivityGateSkipsBypassedPaths(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	// An hour of inactivity would normally expire the session, but the
	// path is on the bypass list.
	cookies := sessionCookies(t, env, account.ID, time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	mw.InactivityGate(next).ServeHTTP(rr, req)

	if !*called {
		t.Fatal("bypassed path should not be gated")
	}
}

func TestInactivityGateExpiresIdleSession(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	loginToken(t, env, "ada@example.com", "hunter2secret")
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	cookies := sessionCookies(t, env, account.ID, time.Now().Add(-time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/countries", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	mw.InactivityGate(next).ServeHTTP(rr, req)

	if *called {
		t.Fatal("expired session should not reach the handler")
	}
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%q", rr.Code, rr.Body.String())
	}

	var resp struct {
		Error    ErrorDetail `json:"error"`
		Redirect string      `json:"redirect"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Error.Code != constants.ErrCodeSessionExpired {
		t.Fatalf("error code = %q, want %q", resp.Error.Code, constants.ErrCodeSessionExpired)
	}
	if resp.Redirect != "/" {
		t.Fatalf("redirect = %q, want %q", resp.Redirect, "/")
	}

	// Invalidation also revokes the stored bearer token.
	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CurrentToken != "" {
		t.Fatal("expired session must clear the stored bearer token")
	}
}

func TestInactivityGateTouchesFreshSession(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	cookies := sessionCookies(t, env, account.ID, time.Now().Add(-time.Minute))
	req := httptest.NewRequest(http.MethodGet, "/api/v1/countries", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	mw.InactivityGate(next).ServeHTTP(rr, req)

	if !*called {
		t.Fatalf("fresh session should pass, got status %d body=%q", rr.Code, rr.Body.String())
	}
	if len(rr.Result().Cookies()) == 0 {
		t.Fatal("passing the gate should re-issue the session cookie")
	}
}

func TestRequireSessionRedirectsWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	req := httptest.NewRequest(http.MethodGet, "/upload/profile/img.png", nil)
	rr := httptest.NewRecorder()
	mw.RequireSession(next).ServeHTTP(rr, req)

	if *called {
		t.Fatal("request without a session should not reach the handler")
	}
	if rr.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Fatalf("Location = %q, want %q", loc, "/")
	}
}

func TestRequireSessionAllowsActiveSession(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	mw := NewSessionMiddleware(env.sessions, session.DefaultBypassList())
	next, called := okHandler()

	cookies := sessionCookies(t, env, account.ID, time.Now())
	req := httptest.NewRequest(http.MethodGet, "/upload/profile/img.png", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	mw.RequireSession(next).ServeHTTP(rr, req)

	if !*called {
		t.Fatalf("active session should pass, got status %d", rr.Code)
	}
}
