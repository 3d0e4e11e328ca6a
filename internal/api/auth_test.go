package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"campusgo/internal/auth"
	"campusgo/internal/constants"
	"campusgo/internal/db"
	"campusgo/internal/models"
	"campusgo/internal/session"
)

const testJWTSecret = "test-secret-test-secret-test-secret!"

type fakeEmailSender struct {
	lastResetCode        string
	lastConfirmationCode string
	welcomeSent          bool
	fail                 bool
}

func (f *fakeEmailSender) SendPasswordResetCode(to, firstName, code string, ttl time.Duration) error {
	if f.fail {
		return fmt.Errorf("smtp unavailable")
	}
	f.lastResetCode = code
	return nil
}

func (f *fakeEmailSender) SendConfirmationCode(to, firstName, code string) error {
	if f.fail {
		return fmt.Errorf("smtp unavailable")
	}
	f.lastConfirmationCode = code
	return nil
}

func (f *fakeEmailSender) SendWelcome(to, firstName string) error {
	f.welcomeSent = true
	return nil
}

type testEnv struct {
	accounts *db.AccountRepository
	tokens   *auth.TokenService
	sessions *session.Manager
	email    *fakeEmailSender
	handler  *AuthHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close()
	})

	accounts := db.NewAccountRepository(database)
	tokens := auth.NewTokenService(testJWTSecret)
	sessions := session.NewManager("session-secret", "campusgo_session", time.Hour, false, 30*time.Minute, accounts)
	emailSender := &fakeEmailSender{}

	return &testEnv{
		accounts: accounts,
		tokens:   tokens,
		sessions: sessions,
		email:    emailSender,
		handler:  NewAuthHandler(accounts, tokens, emailSender, sessions),
	}
}

func createTestAccount(t *testing.T, accounts *db.AccountRepository, email, password string, active bool) *models.Account {
	t.Helper()

	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	account := &models.Account{
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Language:     "fr",
		Active:       active,
	}
	if err := accounts.Create(account); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return account
}

func doLogin(t *testing.T, env *testEnv, email, password string) *httptest.ResponseRecorder {
	t.Helper()

	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	env.handler.Login(rr, req)
	return rr
}

func loginToken(t *testing.T, env *testEnv, email, password string) string {
	t.Helper()

	rr := doLogin(t, env, email, password)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	return resp.Token
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	rr := doLogin(t, env, "ada@example.com", "hunter2secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp LoginResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Token == "" {
		t.Fatal("expected a token in the response")
	}
	if resp.User == nil || resp.User.ID != account.ID {
		t.Fatalf("user = %+v, want account %d", resp.User, account.ID)
	}

	wantExpiry := time.Now().Add(auth.TokenTTL).UnixMilli()
	if diff := resp.TokenExpiry - wantExpiry; diff < -5000 || diff > 5000 {
		t.Fatalf("tokenExpiry = %d, want ~%d", resp.TokenExpiry, wantExpiry)
	}

	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CurrentToken != resp.Token {
		t.Fatal("stored token does not match issued token")
	}
	if !stored.Online {
		t.Fatal("account should be flagged online after login")
	}

	if len(rr.Result().Cookies()) == 0 {
		t.Fatal("login should set a session cookie")
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	createTestAccount(t, env.accounts, "inactive@example.com", "hunter2secret", false)

	tests := []struct {
		name       string
		email      string
		password   string
		wantStatus int
	}{
		{"unknown email", "nobody@example.com", "hunter2secret", http.StatusNotFound},
		{"inactive account", "inactive@example.com", "hunter2secret", http.StatusForbidden},
		{"inactive account with wrong password", "inactive@example.com", "wrong-password", http.StatusForbidden},
		{"wrong password", "ada@example.com", "wrong-password", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doLogin(t, env, tt.email, tt.password)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body=%q", rr.Code, tt.wantStatus, rr.Body.String())
			}
		})
	}
}

func TestLoginFailurePathsIssueNoToken(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	doLogin(t, env, "ada@example.com", "wrong-password")

	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CurrentToken != "" {
		t.Fatal("failed login must not store a token")
	}
}

func verifyToken(env *testEnv, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-token", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.handler.VerifyToken(rr, req)
	return rr
}

func verifyFailureCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp struct {
		Valid bool        `json:"valid"`
		Error ErrorDetail `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	if resp.Valid {
		t.Fatal("valid = true on a failure response")
	}
	return resp.Error.Code
}

func TestVerifyTokenDistinguishesFailures(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	token := loginToken(t, env, "ada@example.com", "hunter2secret")

	t.Run("valid token", func(t *testing.T) {
		rr := verifyToken(env, token)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
		}
		var resp VerifyTokenResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		if !resp.Valid || resp.User.Email != "ada@example.com" {
			t.Fatalf("resp = %+v, want valid identity", resp)
		}
	})

	t.Run("missing token", func(t *testing.T) {
		rr := verifyToken(env, "")
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rr.Code)
		}
		if code := verifyFailureCode(t, rr); code != constants.ErrCodeTokenMissing {
			t.Fatalf("error code = %q, want %q", code, constants.ErrCodeTokenMissing)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		rr := verifyToken(env, "not-a-token")
		if code := verifyFailureCode(t, rr); code != constants.ErrCodeTokenInvalid {
			t.Fatalf("error code = %q, want %q", code, constants.ErrCodeTokenInvalid)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		rr := verifyToken(env, signTestToken(t, 1, "ada@example.com", -time.Hour))
		if code := verifyFailureCode(t, rr); code != constants.ErrCodeTokenExpired {
			t.Fatalf("error code = %q, want %q", code, constants.ErrCodeTokenExpired)
		}
	})
}

func TestLoginInvalidatesPreviousToken(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	first := loginToken(t, env, "ada@example.com", "hunter2secret")
	second := loginToken(t, env, "ada@example.com", "hunter2secret")

	rr := verifyToken(env, first)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("old token status = %d, want 401", rr.Code)
	}
	if code := verifyFailureCode(t, rr); code != constants.ErrCodeTokenStale {
		t.Fatalf("error code = %q, want %q", code, constants.ErrCodeTokenStale)
	}

	if rr := verifyToken(env, second); rr.Code != http.StatusOK {
		t.Fatalf("new token status = %d, want 200", rr.Code)
	}
}

func refreshToken(env *testEnv, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh-token", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	env.handler.RefreshToken(rr, req)
	return rr
}

func TestRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	old := loginToken(t, env, "ada@example.com", "hunter2secret")

	rr := refreshToken(env, old)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200, body=%q", rr.Code, rr.Body.String())
	}

	var resp RefreshResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.Token == "" || resp.Token == old {
		t.Fatal("refresh must issue a new token")
	}

	if rr := verifyToken(env, old); rr.Code != http.StatusUnauthorized {
		t.Fatalf("old token status after refresh = %d, want 401", rr.Code)
	}
	if rr := verifyToken(env, resp.Token); rr.Code != http.StatusOK {
		t.Fatalf("new token status = %d, want 200", rr.Code)
	}
}

func TestRefreshAcceptsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	expired := signTestToken(t, account.ID, account.Email, -time.Hour)
	if err := env.accounts.StoreToken(account.ID, expired); err != nil {
		t.Fatalf("StoreToken() error = %v", err)
	}

	rr := refreshToken(env, expired)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200, body=%q", rr.Code, rr.Body.String())
	}
}

func TestRefreshRejectsStaleToken(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	old := loginToken(t, env, "ada@example.com", "hunter2secret")
	loginToken(t, env, "ada@example.com", "hunter2secret")

	rr := refreshToken(env, old)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401, body=%q", rr.Code, rr.Body.String())
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if resp.Error.Code != constants.ErrCodeTokenStale {
		t.Fatalf("error code = %q, want %q", resp.Error.Code, constants.ErrCodeTokenStale)
	}
}

func TestLogoutWithoutSessionIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	rr := httptest.NewRecorder()
	env.handler.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Not connected") {
		t.Fatalf("body = %q, want a not-connected message", rr.Body.String())
	}
}

func TestLogoutClearsSessionAndToken(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	loginToken(t, env, "ada@example.com", "hunter2secret")

	initReq := httptest.NewRequest(http.MethodGet, "/", nil)
	initRec := httptest.NewRecorder()
	if err := env.sessions.Init(initRec, initReq, account.ID); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	for _, c := range initRec.Result().Cookies() {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	env.handler.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%q", rr.Code, rr.Body.String())
	}

	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.CurrentToken != "" {
		t.Fatal("logout must clear the stored token")
	}
	if stored.Online {
		t.Fatal("logout must clear the online flag")
	}
}

func postJSON(handler http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func TestForgotPasswordAntiEnumeration(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	known := postJSON(env.handler.ForgotPassword, "/api/v1/auth/forgot-password", `{"email":"ada@example.com"}`)
	unknown := postJSON(env.handler.ForgotPassword, "/api/v1/auth/forgot-password", `{"email":"nobody@example.com"}`)

	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("status = %d/%d, want 200/200", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ: %q vs %q", known.Body.String(), unknown.Body.String())
	}
}

func TestForgotPasswordEmailFailureIsHardError(t *testing.T) {
	env := newTestEnv(t)
	createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)
	env.email.fail = true

	rr := postJSON(env.handler.ForgotPassword, "/api/v1/auth/forgot-password", `{"email":"ada@example.com"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500, body=%q", rr.Code, rr.Body.String())
	}
}

func TestResetCodeLifecycle(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	rr := postJSON(env.handler.ForgotPassword, "/api/v1/auth/forgot-password", `{"email":"Ada@Example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("forgot-password status = %d, body=%q", rr.Code, rr.Body.String())
	}
	code := env.email.lastResetCode
	if len(code) != 6 {
		t.Fatalf("reset code = %q, want 6 digits", code)
	}

	wrong := postJSON(env.handler.VerifyResetCode, "/api/v1/auth/verify-reset-code",
		fmt.Sprintf(`{"email":"ada@example.com","code":%q}`, wrongCode(code)))
	if wrong.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d, want 400", wrong.Code)
	}

	rr = postJSON(env.handler.VerifyResetCode, "/api/v1/auth/verify-reset-code",
		fmt.Sprintf(`{"email":"ada@example.com","code":%q}`, code))
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-reset-code status = %d, body=%q", rr.Code, rr.Body.String())
	}

	var resp VerifyResetCodeResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if len(resp.ResetToken) != 64 {
		t.Fatalf("resetToken length = %d, want 64 hex chars", len(resp.ResetToken))
	}
	if resp.ExpiresIn != int64(auth.ResetTokenTTL.Seconds()) {
		t.Fatalf("expiresIn = %d, want %d", resp.ExpiresIn, int64(auth.ResetTokenTTL.Seconds()))
	}

	// The code was consumed by the verification, so a second attempt finds
	// no code in progress.
	again := postJSON(env.handler.VerifyResetCode, "/api/v1/auth/verify-reset-code",
		fmt.Sprintf(`{"email":"ada@example.com","code":%q}`, code))
	if again.Code != http.StatusBadRequest {
		t.Fatalf("second verify status = %d, want 400", again.Code)
	}
	if !strings.Contains(again.Body.String(), "No reset code in progress") {
		t.Fatalf("second verify body = %q, want no-code-in-progress", again.Body.String())
	}

	rr = postJSON(env.handler.ResetPassword, "/api/v1/auth/reset-password",
		fmt.Sprintf(`{"email":"ada@example.com","resetToken":%q,"newPassword":"brand-new-password"}`, resp.ResetToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("reset-password status = %d, body=%q", rr.Code, rr.Body.String())
	}

	if rr := doLogin(t, env, "ada@example.com", "brand-new-password"); rr.Code != http.StatusOK {
		t.Fatalf("login with new password status = %d, body=%q", rr.Code, rr.Body.String())
	}

	// The consumed token cannot be replayed.
	rr = postJSON(env.handler.ResetPassword, "/api/v1/auth/reset-password",
		fmt.Sprintf(`{"email":"ada@example.com","resetToken":%q,"newPassword":"other-password-1"}`, resp.ResetToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("replayed reset-password status = %d, want 400", rr.Code)
	}

	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if stored.ResetSecret != nil {
		t.Fatal("reset secret must be cleared after consumption")
	}
}

func TestExpiredResetCodeIsCleared(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", true)

	if err := env.accounts.SetResetSecret(account.ID, "123456", models.ResetSecretCode, time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetResetSecret() error = %v", err)
	}

	rr := postJSON(env.handler.VerifyResetCode, "/api/v1/auth/verify-reset-code",
		`{"email":"ada@example.com","code":"123456"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "expired") {
		t.Fatalf("body = %q, want an expiry message", rr.Body.String())
	}

	// The expired code was cleared, so retrying reports no code in
	// progress rather than expired.
	rr = postJSON(env.handler.VerifyResetCode, "/api/v1/auth/verify-reset-code",
		`{"email":"ada@example.com","code":"123456"}`)
	if !strings.Contains(rr.Body.String(), "No reset code in progress") {
		t.Fatalf("retry body = %q, want no-code-in-progress", rr.Body.String())
	}
}

func TestConfirmationCodeActivatesAccount(t *testing.T) {
	env := newTestEnv(t)
	account := createTestAccount(t, env.accounts, "ada@example.com", "hunter2secret", false)

	rr := postJSON(env.handler.SendConfirmationCode, "/api/v1/auth/send-confirmation-code",
		`{"email":"ada@example.com"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("send status = %d, body=%q", rr.Code, rr.Body.String())
	}
	code := env.email.lastConfirmationCode
	if len(code) != 6 {
		t.Fatalf("confirmation code = %q, want 6 digits", code)
	}

	wrong := postJSON(env.handler.VerifyConfirmationCode, "/api/v1/auth/verify-confirmation-code",
		fmt.Sprintf(`{"email":"ada@example.com","code":%q}`, wrongCode(code)))
	if wrong.Code != http.StatusBadRequest {
		t.Fatalf("wrong code status = %d, want 400", wrong.Code)
	}

	rr = postJSON(env.handler.VerifyConfirmationCode, "/api/v1/auth/verify-confirmation-code",
		fmt.Sprintf(`{"email":"ada@example.com","code":%q}`, code))
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body=%q", rr.Code, rr.Body.String())
	}

	stored, err := env.accounts.FindByID(account.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !stored.Active {
		t.Fatal("account should be active after confirmation")
	}
	if stored.ConfirmationCode != nil {
		t.Fatal("confirmation code should be cleared after use")
	}
	if !env.email.welcomeSent {
		t.Fatal("welcome email should be sent after activation")
	}
}

func signTestToken(t *testing.T, accountID int64, email string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := auth.Claims{
		AccountID: accountID,
		Email:     email,
		Role:      models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", accountID),
			Issuer:    "campusgo-api",
			Audience:  jwt.ClaimStrings{"campusgo-clients"},
			IssuedAt:  jwt.NewNumericDate(now.Add(ttl - time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func wrongCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}
