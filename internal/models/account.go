package models

import "time"

type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// ResetSecretKind tags what the reset secret columns currently hold: the
// short numeric code the user types in, or the opaque token issued after
// the code was verified.
type ResetSecretKind string

const (
	ResetSecretCode  ResetSecretKind = "code"
	ResetSecretToken ResetSecretKind = "token"
)

type Account struct {
	ID           int64      `json:"id"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        *string    `json:"phone,omitempty"`
	BirthDate    *time.Time `json:"birthDate,omitempty"`
	Country      *string    `json:"country,omitempty"`
	City         *string    `json:"city,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	Role         Role       `json:"role"`
	Language     string     `json:"language"`
	Active       bool       `json:"active"`
	Online       bool       `json:"online"`

	// CurrentToken is the single bearer token considered valid for this
	// account. Empty string means no active token.
	CurrentToken string `json:"-"`

	ResetSecret          *string          `json:"-"`
	ResetSecretKind      *ResetSecretKind `json:"-"`
	ResetSecretExpiresAt *time.Time       `json:"-"`
	ConfirmationCode     *string          `json:"-"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Identity is the minimal projection returned by token verification.
type Identity struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (a *Account) Identity() Identity {
	return Identity{ID: a.ID, Email: a.Email, Role: a.Role}
}
