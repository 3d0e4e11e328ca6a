package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusgo/internal/models"
)

const accountColumns = `id, first_name, last_name, email, password_hash, phone, birth_date,
	country, city, image_url, role, language, active, online, current_token,
	reset_secret, reset_secret_kind, reset_secret_expires_at, confirmation_code,
	created_at, updated_at`

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(a *models.Account) error {
	now := time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO accounts (first_name, last_name, email, password_hash, phone, birth_date,
			country, city, image_url, role, language, active, current_token, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.FirstName, a.LastName, a.Email, a.PasswordHash, a.Phone, a.BirthDate,
		a.Country, a.City, a.ImageURL, a.Role, a.Language, a.Active, a.CurrentToken, now,
	)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("creating account: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new account id: %w", err)
	}

	a.ID = id
	a.CreatedAt = now
	return nil
}

func (r *AccountRepository) FindByID(id int64) (*models.Account, error) {
	return r.findOne(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// FindByEmail matches the email exactly as stored. Reset and confirmation
// flows normalize the input before calling; login does not.
func (r *AccountRepository) FindByEmail(email string) (*models.Account, error) {
	return r.findOne(`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, email)
}

func (r *AccountRepository) EmailExists(email string) (bool, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE email = ?`, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return count > 0, nil
}

type AccountFilter struct {
	Search string
	Role   string
	Active *bool
}

func (r *AccountRepository) List(filter AccountFilter) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	var conditions []string
	var args []any

	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions,
			`(first_name LIKE ? OR last_name LIKE ? OR email LIKE ? OR country LIKE ? OR city LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	if filter.Role != "" {
		conditions = append(conditions, `role = ?`)
		args = append(args, filter.Role)
	}
	if filter.Active != nil {
		conditions = append(conditions, `active = ?`)
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

type AccountUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	BirthDate *time.Time
	Country   *string
	City      *string
	ImageURL  *string
}

func (r *AccountRepository) Update(id int64, upd AccountUpdate) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if upd.FirstName != nil {
		add("first_name", *upd.FirstName)
	}
	if upd.LastName != nil {
		add("last_name", *upd.LastName)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.Phone != nil {
		add("phone", *upd.Phone)
	}
	if upd.BirthDate != nil {
		add("birth_date", *upd.BirthDate)
	}
	if upd.Country != nil {
		add("country", *upd.Country)
	}
	if upd.City != nil {
		add("city", *upd.City)
	}
	if upd.ImageURL != nil {
		add("image_url", *upd.ImageURL)
	}

	if len(sets) == 0 {
		return nil
	}

	add("updated_at", time.Now().UTC())
	args = append(args, id)

	result, err := r.db.Exec(`UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if IsUniqueConstraintError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("updating account: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) UpdatePassword(id int64, passwordHash string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return checkRowsAffected(result)
}

// StoreToken persists a freshly issued bearer token as the account's single
// active token. Plain last-write-wins: a concurrent login or refresh for the
// same account overwrites, and the older token goes stale.
func (r *AccountRepository) StoreToken(id int64, token string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET current_token = ?, online = 1 WHERE id = ?`,
		token, id,
	)
	if err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	return checkRowsAffected(result)
}

// ClearToken empties the stored token and drops the online flag, for logout
// and session-expiry invalidation.
func (r *AccountRepository) ClearToken(id int64) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET current_token = '', online = 0 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clearing token: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetResetSecret(id int64, secret string, kind models.ResetSecretKind, expiresAt time.Time) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET reset_secret = ?, reset_secret_kind = ?, reset_secret_expires_at = ? WHERE id = ?`,
		secret, kind, expiresAt.UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("setting reset secret: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) ClearResetSecret(id int64) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET reset_secret = NULL, reset_secret_kind = NULL, reset_secret_expires_at = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clearing reset secret: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) SetConfirmationCode(id int64, code string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET confirmation_code = ? WHERE id = ?`,
		code, id,
	)
	if err != nil {
		return fmt.Errorf("setting confirmation code: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) ClearConfirmationCode(id int64) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET confirmation_code = NULL WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("clearing confirmation code: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) Activate(id int64) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET active = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("activating account: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) UpdateLanguage(id int64, language string) error {
	result, err := r.db.Exec(
		`UPDATE accounts SET language = ?, updated_at = ? WHERE id = ?`,
		language, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating language: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) Delete(id int64) error {
	result, err := r.db.Exec(`DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return checkRowsAffected(result)
}

func (r *AccountRepository) DeleteMany(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	result, err := r.db.Exec(`DELETE FROM accounts WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting accounts: %w", err)
	}
	return result.RowsAffected()
}

func (r *AccountRepository) Count() (int64, error) {
	var total int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return total, nil
}

type RoleCount struct {
	Role  models.Role `json:"role"`
	Count int64       `json:"count"`
}

type CountryCount struct {
	Country string `json:"country"`
	Count   int64  `json:"count"`
}

type AccountStats struct {
	Total          int64          `json:"total"`
	Online         int64          `json:"onlineUsers"`
	Active         int64          `json:"activeUsers"`
	NewToday       int64          `json:"newUsersToday"`
	NewThisWeek    int64          `json:"newUsersThisWeek"`
	NewThisMonth   int64          `json:"newUsersThisMonth"`
	ByRole         []RoleCount    `json:"byRole"`
	ByCountry      []CountryCount `json:"byCountry"`
	ConversionRate int64          `json:"conversionRate"`
}

func (r *AccountRepository) Stats() (*AccountStats, error) {
	var stats AccountStats

	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := now.Add(-7 * 24 * time.Hour)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.Total, `SELECT COUNT(*) FROM accounts`, nil},
		{&stats.Online, `SELECT COUNT(*) FROM accounts WHERE online = 1`, nil},
		{&stats.Active, `SELECT COUNT(*) FROM accounts WHERE active = 1`, nil},
		{&stats.NewToday, `SELECT COUNT(*) FROM accounts WHERE created_at >= ?`, []any{dayStart}},
		{&stats.NewThisWeek, `SELECT COUNT(*) FROM accounts WHERE created_at >= ?`, []any{weekStart}},
		{&stats.NewThisMonth, `SELECT COUNT(*) FROM accounts WHERE created_at >= ?`, []any{monthStart}},
	}
	for _, c := range counts {
		if err := r.db.QueryRow(c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("counting account stats: %w", err)
		}
	}

	roleRows, err := r.db.Query(`SELECT role, COUNT(*) FROM accounts GROUP BY role ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, fmt.Errorf("grouping accounts by role: %w", err)
	}
	defer roleRows.Close()
	for roleRows.Next() {
		var rc RoleCount
		if err := roleRows.Scan(&rc.Role, &rc.Count); err != nil {
			return nil, fmt.Errorf("scanning role count: %w", err)
		}
		stats.ByRole = append(stats.ByRole, rc)
	}
	if err := roleRows.Err(); err != nil {
		return nil, err
	}

	countryRows, err := r.db.Query(
		`SELECT country, COUNT(*) FROM accounts WHERE country IS NOT NULL GROUP BY country ORDER BY COUNT(*) DESC LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("grouping accounts by country: %w", err)
	}
	defer countryRows.Close()
	for countryRows.Next() {
		var cc CountryCount
		if err := countryRows.Scan(&cc.Country, &cc.Count); err != nil {
			return nil, fmt.Errorf("scanning country count: %w", err)
		}
		stats.ByCountry = append(stats.ByCountry, cc)
	}
	if err := countryRows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.ConversionRate = stats.Active * 100 / stats.Total
	}

	return &stats, nil
}

func (r *AccountRepository) findOne(query string, args ...any) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var a models.Account
	var phone, country, city, imageURL, resetSecret, resetKind, confirmationCode sql.NullString
	var birthDate, resetExpiresAt, updatedAt sql.NullTime

	err := row.Scan(
		&a.ID, &a.FirstName, &a.LastName, &a.Email, &a.PasswordHash, &phone, &birthDate,
		&country, &city, &imageURL, &a.Role, &a.Language, &a.Active, &a.Online, &a.CurrentToken,
		&resetSecret, &resetKind, &resetExpiresAt, &confirmationCode,
		&a.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Phone = nullStringToPtr(phone)
	a.BirthDate = nullTimeToPtr(birthDate)
	a.Country = nullStringToPtr(country)
	a.City = nullStringToPtr(city)
	a.ImageURL = nullStringToPtr(imageURL)
	a.ResetSecret = nullStringToPtr(resetSecret)
	if resetKind.Valid {
		kind := models.ResetSecretKind(resetKind.String)
		a.ResetSecretKind = &kind
	}
	a.ResetSecretExpiresAt = nullTimeToPtr(resetExpiresAt)
	a.ConfirmationCode = nullStringToPtr(confirmationCode)
	a.UpdatedAt = nullTimeToPtr(updatedAt)

	return &a, nil
}
