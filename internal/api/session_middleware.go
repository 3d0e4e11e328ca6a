package api

import (
	"log/slog"
	"net/http"
	"time"

	"campusgo/internal/constants"
	"campusgo/internal/session"
)

// SessionMiddleware enforces the sliding inactivity window on requests that
// carry an active cookie session. API routes get a JSON error with a
// redirect hint, protected static routes get a plain redirect.
type SessionMiddleware struct {
	manager *session.Manager
	bypass  session.BypassList
}

func NewSessionMiddleware(manager *session.Manager, bypass session.BypassList) *SessionMiddleware {
	return &SessionMiddleware{manager: manager, bypass: bypass}
}

// InactivityGate checks the cookie session's last activity. Requests without
// a session pass through untouched; the bearer-token middleware still guards
// the route. Expired sessions are invalidated, which also clears the stored
// bearer token, then denied.
func (m *SessionMiddleware) InactivityGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.bypass.Matches(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := m.manager.AccountID(r); !ok {
			next.ServeHTTP(w, r)
			return
		}

		now := time.Now()
		if m.manager.InactivityExceeded(r, now) {
			if err := m.manager.Invalidate(w, r); err != nil {
				slog.Error("error invalidating expired session", "error", err)
				internalError(w)
				return
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": ErrorDetail{
					Code:    constants.ErrCodeSessionExpired,
					Message: "Session expired due to inactivity",
				},
				"redirect": "/",
			})
			return
		}

		if err := m.manager.Touch(w, r, now); err != nil {
			slog.Error("error refreshing session activity", "error", err)
			internalError(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireSession guards protected static content. Unlike the API gate it
// never answers JSON: a missing or expired session redirects to the root.
func (m *SessionMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.manager.AccountID(r); !ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		now := time.Now()
		if m.manager.InactivityExceeded(r, now) {
			if err := m.manager.Invalidate(w, r); err != nil {
				slog.Error("error invalidating expired session", "error", err)
				internalError(w)
				return
			}
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		if err := m.manager.Touch(w, r, now); err != nil {
			slog.Error("error refreshing session activity", "error", err)
			internalError(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}
