package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"campusgo/internal/auth"
	"campusgo/internal/constants"
	"campusgo/internal/db"
	"campusgo/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

type AuthMiddleware struct {
	tokens   *auth.TokenService
	accounts *db.AccountRepository
}

func NewAuthMiddleware(tokens *auth.TokenService, accounts *db.AccountRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, accounts: accounts}
}

// RequireAuth verifies the bearer token and cross-checks it against the
// account's stored token. A signature-valid token that has been superseded
// by a newer login or refresh is rejected as stale.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, errCode, errMessage := m.authenticate(r)
		if account == nil {
			writeError(w, http.StatusUnauthorized, errCode, errMessage)
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, account.Identity())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := GetIdentity(r)
		if !ok || identity.Role != models.RoleAdmin {
			forbidden(w, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*models.Account, string, string) {
	token, ok := bearerToken(r)
	if !ok {
		return nil, constants.ErrCodeTokenMissing, "Authorization header required"
	}

	claims, err := m.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, constants.ErrCodeTokenExpired, "Token has expired"
		}
		return nil, constants.ErrCodeTokenInvalid, "Invalid token"
	}

	account, err := m.accounts.FindByID(claims.AccountID)
	if err != nil {
		return nil, constants.ErrCodeUnauthorized, "Account not found"
	}

	if subtle.ConstantTimeCompare([]byte(account.CurrentToken), []byte(token)) != 1 {
		return nil, constants.ErrCodeTokenStale, "Token has been superseded"
	}

	return account, "", ""
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}

	return parts[1], true
}

func GetIdentity(r *http.Request) (models.Identity, bool) {
	v := r.Context().Value(identityKey)
	if v == nil {
		return models.Identity{}, false
	}
	identity, ok := v.(models.Identity)
	return identity, ok
}
