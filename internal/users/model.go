package users

import (
	"strings"
	"time"
)

// Provider names recorded on a user.
const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
	ProviderFacebook = "facebook"
)

// User is an account known to the identity service.
type User struct {
	ID               string     `json:"id" db:"id"`
	Email            string     `json:"email" db:"email"`
	DisplayName      string     `json:"displayName" db:"display_name"`
	PhotoURL         string     `json:"photoUrl" db:"photo_url"`
	Provider         string     `json:"provider" db:"provider"`
	PasswordHash     string     `json:"-" db:"password_hash"`
	Disabled         bool       `json:"disabled" db:"disabled"`
	TokensValidAfter time.Time  `json:"-" db:"tokens_valid_after"`
	ResetTokenHash   string     `json:"-" db:"reset_token_hash"`
	ResetExpiresAt   *time.Time `json:"-" db:"reset_expires_at"`
	LastLoginAt      *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
