package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"campusgo/internal/auth"
	"campusgo/internal/constants"
	"campusgo/internal/db"
	"campusgo/internal/models"
	"campusgo/internal/session"
)

type AuthHandler struct {
	accounts     *db.AccountRepository
	tokens       *auth.TokenService
	emailService EmailSender
	sessions     *session.Manager
}

func NewAuthHandler(
	accounts *db.AccountRepository,
	tokens *auth.TokenService,
	emailService EmailSender,
	sessions *session.Manager,
) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		tokens:       tokens,
		emailService: emailService,
		sessions:     sessions,
	}
}

// POST /api/v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=128"`
}

type LoginResponse struct {
	User        *models.Account `json:"user"`
	Token       string          `json:"token"`
	TokenExpiry int64           `json:"tokenExpiry"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	// Email is matched exactly as stored; only the reset and confirmation
	// flows normalize their input.
	account, err := h.accounts.FindByEmail(req.Email)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account for login", "error", err)
		internalError(w)
		return
	}

	if !account.Active {
		forbidden(w, "Account is not activated")
		return
	}

	if err := auth.CheckPassword(account.PasswordHash, req.Password); err != nil {
		unauthorized(w, "Invalid credentials")
		return
	}

	token, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		slog.Error("error issuing token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	// Single-active-token enforcement point: any previously issued token
	// for this account goes stale here.
	if err := h.accounts.StoreToken(account.ID, token); err != nil {
		slog.Error("error storing token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}
	account.CurrentToken = token
	account.Online = true

	if err := h.sessions.Init(w, r, account.ID); err != nil {
		slog.Error("error initializing session", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		User:        account,
		Token:       token,
		TokenExpiry: expiresAt.UnixMilli(),
	})
}

// GET /api/v1/auth/verify-token
type VerifyTokenResponse struct {
	Valid bool            `json:"valid"`
	User  models.Identity `json:"user"`
}

func (h *AuthHandler) VerifyToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeVerifyFailure(w, constants.ErrCodeTokenMissing, "Authorization header required")
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			writeVerifyFailure(w, constants.ErrCodeTokenExpired, "Token has expired")
			return
		}
		writeVerifyFailure(w, constants.ErrCodeTokenInvalid, "Invalid token")
		return
	}

	account, err := h.accounts.FindByID(claims.AccountID)
	if errors.Is(err, db.ErrNotFound) {
		writeVerifyFailure(w, constants.ErrCodeUnauthorized, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account for token verification", "error", err)
		internalError(w)
		return
	}

	if subtle.ConstantTimeCompare([]byte(account.CurrentToken), []byte(token)) != 1 {
		writeVerifyFailure(w, constants.ErrCodeTokenStale, "Token has been superseded")
		return
	}

	writeJSON(w, http.StatusOK, VerifyTokenResponse{
		Valid: true,
		User:  account.Identity(),
	})
}

func writeVerifyFailure(w http.ResponseWriter, code, message string) {
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"valid": false,
		"error": ErrorDetail{Code: code, Message: message},
	})
}

// POST /api/v1/auth/refresh-token
type RefreshResponse struct {
	Token       string          `json:"token"`
	TokenExpiry int64           `json:"tokenExpiry"`
	User        *models.Account `json:"user"`
}

// RefreshToken accepts an expired-but-genuine token: the signature and
// issuer/audience claims are checked, the expiry is not. The staleness check
// still applies, so a token superseded by a newer login cannot be refreshed.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeTokenMissing, "Authorization header required")
		return
	}

	claims, err := h.tokens.VerifySignatureOnly(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeTokenInvalid, "Invalid token")
		return
	}

	account, err := h.accounts.FindByID(claims.AccountID)
	if errors.Is(err, db.ErrNotFound) {
		unauthorized(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account for refresh", "error", err)
		internalError(w)
		return
	}

	if subtle.ConstantTimeCompare([]byte(account.CurrentToken), []byte(token)) != 1 {
		writeError(w, http.StatusUnauthorized, constants.ErrCodeTokenStale, "Token has been superseded")
		return
	}

	newToken, expiresAt, err := h.tokens.Issue(account)
	if err != nil {
		slog.Error("error issuing refreshed token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	// Rotation: the old token goes permanently stale the instant the new
	// one is stored.
	if err := h.accounts.StoreToken(account.ID, newToken); err != nil {
		slog.Error("error storing refreshed token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}
	account.CurrentToken = newToken
	account.Online = true

	writeJSON(w, http.StatusOK, RefreshResponse{
		Token:       newToken,
		TokenExpiry: expiresAt.UnixMilli(),
		User:        account,
	})
}

// POST /api/v1/auth/logout
type LogoutRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

// Logout is idempotent: with no active cookie session it reports "not
// connected" instead of erroring. The optional email in the body is only
// used for logging.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := decodeAndValidate(r.Body, &req); err != nil {
			badRequest(w, err.Error())
			return
		}
	}

	accountID, ok := h.sessions.AccountID(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":  "Not connected",
			"redirect": "/",
		})
		return
	}

	if err := h.sessions.Invalidate(w, r); err != nil {
		slog.Error("error invalidating session on logout", "error", err, "account_id", accountID, "email", req.Email)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Logged out successfully",
		"redirect": "/",
	})
}

// POST /api/v1/auth/forgot-password
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

const forgotPasswordMessage = "If an account exists with this email, a reset code has been sent"

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByEmail(normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		// Identical response for unknown emails, so the endpoint cannot be
		// used to probe which accounts exist.
		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
		return
	}
	if err != nil {
		slog.Error("error finding account for password reset", "error", err)
		internalError(w)
		return
	}

	code, err := auth.GenerateCode()
	if err != nil {
		slog.Error("error generating reset code", "error", err)
		internalError(w)
		return
	}

	expiresAt := time.Now().Add(auth.ResetCodeTTL)
	if err := h.accounts.SetResetSecret(account.ID, code, models.ResetSecretCode, expiresAt); err != nil {
		slog.Error("error storing reset code", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	// The reset email is essential to the flow, so a delivery failure is a
	// hard error rather than a logged warning.
	if err := h.emailService.SendPasswordResetCode(account.Email, account.FirstName, code, auth.ResetCodeTTL); err != nil {
		slog.Error("error sending reset code email", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
}

// POST /api/v1/auth/verify-reset-code
type VerifyResetCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type VerifyResetCodeResponse struct {
	ResetToken string `json:"resetToken"`
	ExpiresIn  int64  `json:"expiresIn"`
}

func (h *AuthHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyResetCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByEmail(normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "No reset code in progress")
		return
	}
	if err != nil {
		slog.Error("error finding account for code verification", "error", err)
		internalError(w)
		return
	}

	if account.ResetSecret == nil || account.ResetSecretKind == nil || *account.ResetSecretKind != models.ResetSecretCode {
		badRequest(w, "No reset code in progress")
		return
	}

	if account.ResetSecretExpiresAt == nil || time.Now().After(*account.ResetSecretExpiresAt) {
		// Clear before reporting, so a retry with the same code gets
		// "no code in progress" rather than "expired".
		if err := h.accounts.ClearResetSecret(account.ID); err != nil {
			slog.Error("error clearing expired reset code", "error", err, "account_id", account.ID)
			internalError(w)
			return
		}
		badRequest(w, "Reset code has expired")
		return
	}

	if subtle.ConstantTimeCompare([]byte(*account.ResetSecret), []byte(req.Code)) != 1 {
		badRequest(w, "Invalid reset code")
		return
	}

	// Two-stage handoff: the verified 6-digit code is replaced in place by
	// an opaque token with its own shorter expiry, consumed by the final
	// password-set call.
	resetToken, err := auth.GenerateOpaqueToken(32)
	if err != nil {
		slog.Error("error generating reset token", "error", err)
		internalError(w)
		return
	}

	expiresAt := time.Now().Add(auth.ResetTokenTTL)
	if err := h.accounts.SetResetSecret(account.ID, resetToken, models.ResetSecretToken, expiresAt); err != nil {
		slog.Error("error storing reset token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, VerifyResetCodeResponse{
		ResetToken: resetToken,
		ExpiresIn:  int64(auth.ResetTokenTTL.Seconds()),
	})
}

// POST /api/v1/auth/reset-password
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByEmail(normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid reset token")
		return
	}
	if err != nil {
		slog.Error("error finding account for password reset", "error", err)
		internalError(w)
		return
	}

	if account.ResetSecret == nil || account.ResetSecretKind == nil || *account.ResetSecretKind != models.ResetSecretToken {
		badRequest(w, "Invalid reset token")
		return
	}

	if account.ResetSecretExpiresAt == nil || time.Now().After(*account.ResetSecretExpiresAt) {
		if err := h.accounts.ClearResetSecret(account.ID); err != nil {
			slog.Error("error clearing expired reset token", "error", err, "account_id", account.ID)
			internalError(w)
			return
		}
		badRequest(w, "Reset token has expired")
		return
	}

	if subtle.ConstantTimeCompare([]byte(*account.ResetSecret), []byte(req.ResetToken)) != 1 {
		badRequest(w, "Invalid reset token")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.Error("error hashing new password", "error", err)
		internalError(w)
		return
	}

	if err := h.accounts.UpdatePassword(account.ID, hash); err != nil {
		slog.Error("error updating password", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	if err := h.accounts.ClearResetSecret(account.ID); err != nil {
		slog.Error("error consuming reset token", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	// A password change invalidates whatever bearer token was active.
	if err := h.accounts.ClearToken(account.ID); err != nil {
		slog.Error("error clearing token after password reset", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
}

// POST /api/v1/auth/send-confirmation-code
type SendConfirmationCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

const confirmationCodeMessage = "If an account exists with this email, a confirmation code has been sent"

func (h *AuthHandler) SendConfirmationCode(w http.ResponseWriter, r *http.Request) {
	var req SendConfirmationCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByEmail(normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]string{"message": confirmationCodeMessage})
		return
	}
	if err != nil {
		slog.Error("error finding account for confirmation", "error", err)
		internalError(w)
		return
	}

	code, err := auth.GenerateCode()
	if err != nil {
		slog.Error("error generating confirmation code", "error", err)
		internalError(w)
		return
	}

	if err := h.accounts.SetConfirmationCode(account.ID, code); err != nil {
		slog.Error("error storing confirmation code", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	if err := h.emailService.SendConfirmationCode(account.Email, account.FirstName, code); err != nil {
		slog.Error("error sending confirmation code email", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": confirmationCodeMessage})
}

// POST /api/v1/auth/verify-confirmation-code
type VerifyConfirmationCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyConfirmationCode activates the account on an exact code match.
// Unlike the reset flow, stored confirmation codes carry no expiry.
func (h *AuthHandler) VerifyConfirmationCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyConfirmationCodeRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByEmail(normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		badRequest(w, "Invalid confirmation code")
		return
	}
	if err != nil {
		slog.Error("error finding account for confirmation", "error", err)
		internalError(w)
		return
	}

	if account.ConfirmationCode == nil {
		badRequest(w, "No confirmation code in progress")
		return
	}

	if subtle.ConstantTimeCompare([]byte(*account.ConfirmationCode), []byte(req.Code)) != 1 {
		badRequest(w, "Invalid confirmation code")
		return
	}

	if err := h.accounts.Activate(account.ID); err != nil {
		slog.Error("error activating account", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	if err := h.accounts.ClearConfirmationCode(account.ID); err != nil {
		slog.Error("error clearing confirmation code", "error", err, "account_id", account.ID)
		internalError(w)
		return
	}

	if err := h.emailService.SendWelcome(account.Email, account.FirstName); err != nil {
		slog.Warn("error sending welcome email", "error", err, "account_id", account.ID)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account activated"})
}
