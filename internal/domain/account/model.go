package account

import (
	"time"

	"github.com/google/uuid"
)

// Account maps to the account table. PasswordHash never leaves the API.
type Account struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Email         string     `db:"email" json:"email"`
	Name          string     `db:"name" json:"name"`
	PasswordHash  string     `db:"password_hash" json:"-"`
	Role          string     `db:"role" json:"role"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	PhotoURL      *string    `db:"photo_url" json:"photo_url,omitempty"`
	Specialty     *string    `db:"specialty" json:"specialty,omitempty"`
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	Online        bool       `db:"online" json:"online"`
	LastSeenAt    *time.Time `db:"last_seen_at" json:"last_seen_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// PasswordReset maps to the password_reset table. Tokens are stored hashed;
// the plaintext token only appears in the reset email.
type PasswordReset struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	AccountID uuid.UUID  `db:"account_id" json:"account_id"`
	TokenHash string     `db:"token_hash" json:"-"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	UsedAt    *time.Time `db:"used_at" json:"used_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Session is the response body for a successful login.
type Session struct {
	Token   string   `json:"token"`
	Account *Account `json:"account"`
}
