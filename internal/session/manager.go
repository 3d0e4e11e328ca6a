// Package session manages the server-side cookie session: an opaque cookie
// holding the logged-in account id and a last-activity timestamp. Its
// lifetime is independent of the bearer token, but invalidation couples the
// two: destroying a session also clears the account's stored token.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"campusgo/internal/db"
)

const (
	keyAccountID    = "account_id"
	keyLastActivity = "last_activity"
)

type Manager struct {
	store             *sessions.CookieStore
	cookieName        string
	accounts          *db.AccountRepository
	inactivityTimeout time.Duration
}

func NewManager(secret, cookieName string, maxAge time.Duration, secure bool, inactivityTimeout time.Duration, accounts *db.AccountRepository) *Manager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store:             store,
		cookieName:        cookieName,
		accounts:          accounts,
		inactivityTimeout: inactivityTimeout,
	}
}

// Init starts a session for the account: stores its id and stamps activity.
// Called on login.
func (m *Manager) Init(w http.ResponseWriter, r *http.Request, accountID int64) error {
	sess, _ := m.store.Get(r, m.cookieName)
	sess.Values[keyAccountID] = accountID
	sess.Values[keyLastActivity] = time.Now().UnixMilli()

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// AccountID returns the logged-in account id, or false when no session is
// active.
func (m *Manager) AccountID(r *http.Request) (int64, bool) {
	sess, _ := m.store.Get(r, m.cookieName)
	id, ok := sess.Values[keyAccountID].(int64)
	if !ok || id == 0 {
		return 0, false
	}
	return id, true
}

// InactivityExceeded reports whether the session's last activity is older
// than the inactivity timeout. Sessions without an activity stamp are not
// considered expired.
func (m *Manager) InactivityExceeded(r *http.Request, now time.Time) bool {
	sess, _ := m.store.Get(r, m.cookieName)
	last, ok := sess.Values[keyLastActivity].(int64)
	if !ok {
		return false
	}
	return now.Sub(time.UnixMilli(last)) > m.inactivityTimeout
}

// Touch bumps last activity to now, giving the inactivity window its sliding
// semantics. Saving also refreshes the cookie max-age (rolling expiry).
func (m *Manager) Touch(w http.ResponseWriter, r *http.Request, now time.Time) error {
	sess, _ := m.store.Get(r, m.cookieName)
	sess.Values[keyLastActivity] = now.UnixMilli()

	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Invalidate destroys the cookie session and clears the account's stored
// bearer token and online flag. The two effects belong together: a session
// expiry must also invalidate the token (and vice versa on logout), so no
// caller ever performs one without the other.
func (m *Manager) Invalidate(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.cookieName)

	if id, ok := sess.Values[keyAccountID].(int64); ok && id != 0 {
		if err := m.accounts.ClearToken(id); err != nil {
			return fmt.Errorf("clearing account token: %w", err)
		}
	}

	sess.Options.MaxAge = -1
	sess.Values = make(map[any]any)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("destroying session: %w", err)
	}
	return nil
}
