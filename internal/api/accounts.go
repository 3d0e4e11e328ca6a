package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"campusgo/internal/auth"
	"campusgo/internal/blob"
	"campusgo/internal/db"
	"campusgo/internal/models"
)

var supportedLanguages = []string{"fr", "en"}

type AccountHandler struct {
	accounts     *db.AccountRepository
	emailService EmailSender
	blobs        *blob.Service
}

func NewAccountHandler(accounts *db.AccountRepository, emailService EmailSender, blobs *blob.Service) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		emailService: emailService,
		blobs:        blobs,
	}
}

// POST /api/v1/accounts/register
type RegisterRequest struct {
	FirstName string  `json:"firstName" validate:"required,min=1,max=100"`
	LastName  string  `json:"lastName" validate:"required,min=1,max=100"`
	Email     string  `json:"email" validate:"required,email,max=254"`
	Password  string  `json:"password" validate:"required,min=8,max=128"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	BirthDate *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	Language  string  `json:"language" validate:"omitempty,oneof=fr en"`
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, models.RoleStudent)
}

// RegisterAdmin creates an already-activated admin account. Reachable only
// behind the admin guard.
func (h *AccountHandler) RegisterAdmin(w http.ResponseWriter, r *http.Request) {
	h.register(w, r, models.RoleAdmin)
}

func (h *AccountHandler) register(w http.ResponseWriter, r *http.Request, role models.Role) {
	var req RegisterRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	language := req.Language
	if language == "" {
		language = "fr"
	}

	account := &models.Account{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        req.Phone,
		Country:      req.Country,
		City:         req.City,
		Role:         role,
		Language:     language,
		Active:       role == models.RoleAdmin,
	}
	if req.BirthDate != nil {
		birthDate, parseErr := time.Parse("2006-01-02", *req.BirthDate)
		if parseErr != nil {
			badRequest(w, "invalid birthDate format")
			return
		}
		account.BirthDate = &birthDate
	}

	if err := h.accounts.Create(account); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "Email already registered")
			return
		}
		slog.Error("error creating account", "error", err)
		internalError(w)
		return
	}

	// Students start inactive and confirm by code before they can log in.
	if role == models.RoleStudent {
		code, codeErr := auth.GenerateCode()
		if codeErr != nil {
			slog.Error("error generating confirmation code", "error", codeErr)
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
	}

	writeJSON(w, http.StatusCreated, account)
}

// GET /api/v1/accounts/{id}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeAccountAccess(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// GET /api/v1/accounts
func (h *AccountHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := db.AccountFilter{
		Search: r.URL.Query().Get("search"),
		Role:   r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("active"); v != "" {
		active := v == "true"
		filter.Active = &active
	}

	accounts, err := h.accounts.List(filter)
	if err != nil {
		slog.Error("error listing accounts", "error", err)
		internalError(w)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

// GET /api/v1/accounts/search?q=
func (h *AccountHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		badRequest(w, "q is required")
		return
	}

	accounts, err := h.accounts.List(db.AccountFilter{Search: q})
	if err != nil {
		slog.Error("error searching accounts", "error", err)
		internalError(w)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}

	writeJSON(w, http.StatusOK, accounts)
}

// PUT /api/v1/accounts/{id}
type UpdateAccountRequest struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Phone     *string `json:"phone" validate:"omitempty,max=32"`
	BirthDate *string `json:"birthDate" validate:"omitempty,datetime=2006-01-02"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
	City      *string `json:"city" validate:"omitempty,max=100"`
	ImageURL  *string `json:"imageUrl" validate:"omitempty,max=512"`
}

func (h *AccountHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeAccountAccess(w, r)
	if !ok {
		return
	}

	var req UpdateAccountRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	current, err := h.accounts.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return
	}

	if req.Email != nil && *req.Email != current.Email {
		exists, existsErr := h.accounts.EmailExists(*req.Email)
		if existsErr != nil {
			slog.Error("error checking email availability", "error", existsErr)
			internalError(w)
			return
		}
		if exists {
			conflict(w, "Email already registered")
			return
		}
	}

	upd := db.AccountUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Country:   req.Country,
		City:      req.City,
		ImageURL:  req.ImageURL,
	}
	if req.BirthDate != nil {
		birthDate, parseErr := time.Parse("2006-01-02", *req.BirthDate)
		if parseErr != nil {
			badRequest(w, "invalid birthDate format")
			return
		}
		upd.BirthDate = &birthDate
	}

	// A replaced profile image leaves an orphan file otherwise.
	if req.ImageURL != nil && current.ImageURL != nil && *current.ImageURL != *req.ImageURL {
		if relPath, ok := uploadRelativePath(*current.ImageURL); ok {
			if err := h.blobs.Delete(relPath); err != nil {
				slog.Warn("error deleting replaced profile image", "error", err, "account_id", id)
			}
		}
	}

	if err := h.accounts.Update(id, upd); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			conflict(w, "Email already registered")
			return
		}
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Account not found")
			return
		}
		slog.Error("error updating account", "error", err, "account_id", id)
		internalError(w)
		return
	}

	account, err := h.accounts.FindByID(id)
	if err != nil {
		slog.Error("error reloading account", "error", err, "account_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// PUT /api/v1/accounts/{id}/password
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

func (h *AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return
	}

	identity, ok := GetIdentity(r)
	if !ok || identity.ID != id {
		forbidden(w, "Cannot change another account's password")
		return
	}

	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	account, err := h.accounts.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return
	}

	if err := auth.CheckPassword(account.PasswordHash, req.OldPassword); err != nil {
		unauthorized(w, "Current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		slog.Error("error hashing new password", "error", err)
		internalError(w)
		return
	}

	if err := h.accounts.UpdatePassword(id, hash); err != nil {
		slog.Error("error updating password", "error", err, "account_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

// DELETE /api/v1/accounts/{id}
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeAccountAccess(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return
	}

	if account.ImageURL != nil {
		if relPath, ok := uploadRelativePath(*account.ImageURL); ok {
			if err := h.blobs.Delete(relPath); err != nil {
				slog.Warn("error deleting profile image", "error", err, "account_id", id)
			}
		}
	}

	if err := h.accounts.Delete(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Account not found")
			return
		}
		slog.Error("error deleting account", "error", err, "account_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

// POST /api/v1/accounts/delete-many
type DeleteManyRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=100,dive,gt=0"`
}

func (h *AccountHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	var req DeleteManyRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	for _, id := range req.IDs {
		account, err := h.accounts.FindByID(id)
		if err != nil {
			continue
		}
		if account.ImageURL != nil {
			if relPath, ok := uploadRelativePath(*account.ImageURL); ok {
				if err := h.blobs.Delete(relPath); err != nil {
					slog.Warn("error deleting profile image", "error", err, "account_id", id)
				}
			}
		}
	}

	deleted, err := h.accounts.DeleteMany(req.IDs)
	if err != nil {
		slog.Error("error deleting accounts", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// GET /api/v1/accounts/stats/overview
func (h *AccountHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.accounts.Stats()
	if err != nil {
		slog.Error("error computing account stats", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// GET /api/v1/accounts/email-exists?email=
func (h *AccountHandler) EmailExists(w http.ResponseWriter, r *http.Request) {
	emailParam := r.URL.Query().Get("email")
	if emailParam == "" {
		badRequest(w, "email is required")
		return
	}

	exists, err := h.accounts.EmailExists(emailParam)
	if err != nil {
		slog.Error("error checking email existence", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// GET /api/v1/accounts/{id}/language
func (h *AccountHandler) GetLanguage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeAccountAccess(w, r)
	if !ok {
		return
	}

	account, err := h.accounts.FindByID(id)
	if errors.Is(err, db.ErrNotFound) {
		notFound(w, "Account not found")
		return
	}
	if err != nil {
		slog.Error("error finding account", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"language": account.Language})
}

// PUT /api/v1/accounts/{id}/language
type UpdateLanguageRequest struct {
	Language string `json:"language" validate:"required,max=5"`
}

func (h *AccountHandler) UpdateLanguage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeAccountAccess(w, r)
	if !ok {
		return
	}

	var req UpdateLanguageRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if !languageSupported(req.Language) {
		badRequest(w, "unsupported language")
		return
	}

	if err := h.accounts.UpdateLanguage(id, req.Language); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			notFound(w, "Account not found")
			return
		}
		slog.Error("error updating language", "error", err, "account_id", id)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"language": req.Language})
}

// authorizeAccountAccess parses the id path param and allows the request
// only for the account owner or an admin.
func (h *AccountHandler) authorizeAccountAccess(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := idParam(r)
	if err != nil {
		badRequest(w, "invalid account id")
		return 0, false
	}

	identity, ok := GetIdentity(r)
	if !ok {
		unauthorized(w, "Account not found in context")
		return 0, false
	}
	if identity.ID != id && identity.Role != models.RoleAdmin {
		forbidden(w, "Access to this account is not allowed")
		return 0, false
	}

	return id, true
}

func languageSupported(language string) bool {
	for _, l := range supportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}
